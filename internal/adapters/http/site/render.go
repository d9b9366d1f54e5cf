package site

import (
	"fmt"
	"html/template"
	"time"

	"github.com/okian/gcpstatus/internal/adapters/http/api"
	"github.com/okian/gcpstatus/internal/domain/view"
)

// Page copy.
const (
	appTitle       = "GCP System Status"
	welcomeTitle   = "AIS GCP GenAI Platform"
	welcomeTagline = "Your Secure and Scalable AI Infrastructure for GenAI Application Development."
)

var icons = map[string]string{
	view.IconHealthy:   "♥",
	view.IconUnhealthy: "✖",
	view.IconUnknown:   "⚠",
}

var funcs = template.FuncMap{
	"icon": func(name string) string {
		if s, ok := icons[name]; ok {
			return s
		}
		return icons[view.IconUnknown]
	},
	"color": func(s view.Style) template.CSS {
		return template.CSS("color: " + s.Color)
	},
	"border": func(s view.Style) template.CSS {
		return template.CSS("border-top-color: " + s.Color)
	},
	"clock": func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format("15:04:05 MST")
	},
}

type pageData struct {
	Title        string
	Welcome      string
	Tagline      string
	View         api.View
	KeyInputType string
	// NoticeStyle delays the CSS hide animation until the notice expires.
	NoticeStyle template.CSS
	Spinner     bool
	// Reload makes the page poll itself once a second while a fetch is in
	// flight.
	Reload bool
}

func newPageData(v api.View) pageData {
	d := pageData{
		Title:        appTitle,
		Welcome:      welcomeTitle,
		Tagline:      welcomeTagline,
		View:         v,
		KeyInputType: "password",
		Spinner:      v.InFlight && !v.HasData,
		Reload:       v.InFlight,
	}
	if v.ShowKey {
		d.KeyInputType = "text"
	}
	if v.Notice != "" {
		d.NoticeStyle = template.CSS(fmt.Sprintf("animation-delay: %dms", v.NoticeRemaining.Milliseconds()))
	}
	return d
}
