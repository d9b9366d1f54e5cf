package site

import (
	"embed"
	"html/template"
	"io/fs"
	"net/http"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// FS returns an http.FileSystem for the embedded stylesheet and assets.
func FS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		// Only reachable if the embed directive above changes.
		return http.FS(staticFS)
	}
	return http.FS(sub)
}

func parseTemplates() (*template.Template, error) {
	return template.New("index.html").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
}
