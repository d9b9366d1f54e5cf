package service

import (
	"context"
	"strings"
	"time"

	"github.com/okian/gcpstatus/internal/domain/health"
	"github.com/okian/gcpstatus/internal/domain/view"
)

// State is the fetch lifecycle of a session.
type State string

// Session states.
const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateReady    State = "ready"
	StateErrored  State = "errored"
)

// session is the per-browser dashboard state. All fields are guarded by
// Service.mu.
type session struct {
	id         string
	credential string
	showKey    bool
	state      State

	// results is replaced wholesale on success and kept on failure.
	results     health.Map
	lastError   string
	lastUpdated time.Time

	notice        string
	noticeExpires time.Time

	// seq is bumped by every fetch and by clearing the credential. Only the
	// completion carrying the latest value may touch results.
	seq    uint64
	cancel context.CancelFunc

	visited  bool
	lastSeen time.Time
}

func (s *session) hasCredential() bool {
	return strings.TrimSpace(s.credential) != ""
}

func (s *session) setNotice(msg string, now time.Time, ttl time.Duration) {
	s.notice = msg
	s.noticeExpires = now.Add(ttl)
}

// abort cancels the in-flight fetch, if any, and invalidates its result. A
// fetching session falls back to the state its kept results describe.
func (s *session) abort() {
	s.seq++
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	if s.state == StateFetching {
		s.state = s.settledState()
	}
}

func (s *session) settledState() State {
	switch {
	case s.lastError != "":
		return StateErrored
	case s.results != nil:
		return StateReady
	default:
		return StateIdle
	}
}

// View is a read-only snapshot of a session, ready for rendering.
type View struct {
	SessionID  string `json:"-"`
	State      State  `json:"state"`
	Credential string `json:"-"`
	ShowKey    bool   `json:"show_key"`
	InFlight   bool   `json:"in_flight"`
	// CanRefresh is false while a fetch runs or when the key is blank.
	CanRefresh bool `json:"can_refresh"`
	// NeedsCredential selects the welcome panel.
	NeedsCredential bool `json:"needs_credential"`
	// HasData is true once any service carries a record.
	HasData bool `json:"has_data"`

	Banner          string        `json:"error,omitempty"`
	Notice          string        `json:"notice,omitempty"`
	NoticeRemaining time.Duration `json:"-"`

	Cards       []view.Card  `json:"cards"`
	Rows        []view.Row   `json:"-"`
	Summary     view.Summary `json:"summary"`
	LastUpdated *time.Time   `json:"last_updated,omitempty"`
}

func (s *session) view(now time.Time) View {
	cards := view.BuildGrid(s.results)
	v := View{
		SessionID:       s.id,
		State:           s.state,
		Credential:      s.credential,
		ShowKey:         s.showKey,
		InFlight:        s.state == StateFetching,
		NeedsCredential: !s.hasCredential(),
		HasData:         s.results.Reported() > 0,
		Banner:          s.lastError,
		Cards:           cards,
		Rows:            view.Rows(cards),
		Summary:         view.Summarize(cards),
	}
	v.CanRefresh = !v.InFlight && !v.NeedsCredential
	if s.notice != "" && now.Before(s.noticeExpires) {
		v.Notice = s.notice
		v.NoticeRemaining = s.noticeExpires.Sub(now)
	}
	if !s.lastUpdated.IsZero() {
		t := s.lastUpdated
		v.LastUpdated = &t
	}
	return v
}
