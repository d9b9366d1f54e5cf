package view

import (
	"bytes"
	"encoding/json"
	"strings"
)

// PreviewLines is how many lines of pretty JSON a collapsed detail shows.
const PreviewLines = 6

const ellipsis = "…"

// Detail is a pretty-printed JSON payload with a clipped preview for the
// collapsed state.
type Detail struct {
	Pretty  string `json:"pretty"`
	Preview string `json:"preview"`
	Clipped bool   `json:"clipped"`
}

// NewDetail formats raw with two-space indentation. Input that is not valid
// JSON is shown as-is.
func NewDetail(raw json.RawMessage) Detail {
	var buf bytes.Buffer
	pretty := string(raw)
	if err := json.Indent(&buf, raw, "", "  "); err == nil {
		pretty = buf.String()
	}

	d := Detail{Pretty: pretty, Preview: pretty}
	lines := strings.Split(pretty, "\n")
	if len(lines) > PreviewLines {
		d.Preview = strings.Join(lines[:PreviewLines], "\n") + "\n" + ellipsis
		d.Clipped = true
	}
	return d
}
