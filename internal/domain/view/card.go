// Package view turns health reports into display-ready cards. Everything here
// is a pure function of its input.
package view

import (
	"fmt"

	"github.com/iancoleman/strcase"
	"github.com/okian/gcpstatus/internal/domain/health"
)

// Palette for the three status classes.
const (
	ColorHealthy   = "#4caf50"
	ColorUnhealthy = "#f44336"
	ColorUnknown   = "#ffc107"
)

// Icon names understood by the page template.
const (
	IconHealthy   = "favorite"
	IconUnhealthy = "error"
	IconUnknown   = "warning"
)

// unknownStatusText is shown when a record carries no status.
const unknownStatusText = "Unknown"

// Style is the color and icon of a status class.
type Style struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

// StyleFor returns the presentation of class.
func StyleFor(class health.Class) Style {
	switch class {
	case health.Healthy:
		return Style{Color: ColorHealthy, Icon: IconHealthy}
	case health.Unhealthy:
		return Style{Color: ColorUnhealthy, Icon: IconUnhealthy}
	default:
		return Style{Color: ColorUnknown, Icon: IconUnknown}
	}
}

// Card is one service tile of the dashboard.
type Card struct {
	ID          health.ServiceID `json:"id"`
	DOMID       string           `json:"dom_id"`
	DisplayName string           `json:"display_name"`
	Group       health.Group     `json:"group"`
	Class       health.Class     `json:"class"`
	Style       Style            `json:"style"`
	StatusText  string           `json:"status_text"`
	// Latency is "Latency: 42ms", or empty when there is nothing to show.
	Latency string `json:"latency,omitempty"`
	// Error is the backend error text, verbatim.
	Error     string  `json:"error,omitempty"`
	CheckedAt string  `json:"checked_at,omitempty"`
	Detail    *Detail `json:"detail,omitempty"`
}

// BuildCard renders the card for service id from rec, which may be nil.
func BuildCard(id health.ServiceID, rec *health.Record) Card {
	svc, ok := health.Lookup(id)
	if !ok {
		svc = health.Service{ID: id, DisplayName: string(id)}
	}

	class := rec.Class()
	c := Card{
		ID:          id,
		DOMID:       "card-" + strcase.ToKebab(string(id)),
		DisplayName: svc.DisplayName,
		Group:       svc.Group,
		Class:       class,
		Style:       StyleFor(class),
		StatusText:  unknownStatusText,
	}
	if rec == nil {
		return c
	}

	if rec.Status != "" {
		c.StatusText = rec.Status
	}
	if rec.HasLatency() {
		c.Latency = fmt.Sprintf("Latency: %dms", rec.RoundedLatency())
	}
	if rec.Error != nil {
		c.Error = *rec.Error
	}
	c.CheckedAt = rec.Timestamp
	if len(rec.Details) > 0 {
		d := NewDetail(rec.Details)
		c.Detail = &d
	}
	return c
}

// BuildGrid renders exactly one card per known service, in display order.
func BuildGrid(m health.Map) []Card {
	all := health.Services()
	cards := make([]Card, 0, len(all))
	for _, s := range all {
		cards = append(cards, BuildCard(s.ID, m.Get(s.ID)))
	}
	return cards
}

// Row is a titled group of cards.
type Row struct {
	Title health.Group `json:"title"`
	Cards []Card       `json:"cards"`
}

// Rows splits cards into rows by service group, keeping their order.
func Rows(cards []Card) []Row {
	var rows []Row
	for _, c := range cards {
		if n := len(rows); n > 0 && rows[n-1].Title == c.Group {
			rows[n-1].Cards = append(rows[n-1].Cards, c)
			continue
		}
		rows = append(rows, Row{Title: c.Group, Cards: []Card{c}})
	}
	return rows
}

// Summary counts cards per status class.
type Summary struct {
	Healthy   int `json:"healthy"`
	Unhealthy int `json:"unhealthy"`
	Unknown   int `json:"unknown"`
}

// Summarize counts the classes of cards.
func Summarize(cards []Card) Summary {
	var s Summary
	for _, c := range cards {
		switch c.Class {
		case health.Healthy:
			s.Healthy++
		case health.Unhealthy:
			s.Unhealthy++
		default:
			s.Unknown++
		}
	}
	return s
}

// Total is the number of summarized cards.
func (s Summary) Total() int { return s.Healthy + s.Unhealthy + s.Unknown }
