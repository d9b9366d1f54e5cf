// Package service keeps the per-browser dashboard sessions and orchestrates
// health fetches for them.
package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/gcpstatus/internal/adapters/backend"
	"github.com/okian/gcpstatus/internal/domain/health"
	"github.com/okian/gcpstatus/pkg/logger"
	"github.com/okian/gcpstatus/pkg/metrics"
)

const (
	defaultMessageTTL    = 6 * time.Second
	defaultSessionTTL    = 30 * time.Minute
	defaultMaxSessions   = 10000
	defaultSweepInterval = time.Minute
)

// Service holds dashboard sessions in memory. Nothing survives a restart.
type Service struct {
	mu       sync.Mutex
	sessions map[string]*session

	fetcher backend.Fetcher

	// Configuration
	messageTTL        time.Duration
	sessionTTL        time.Duration
	sweepInterval     time.Duration
	maxSessions       int
	defaultCredential string
	now               func() time.Time

	// State
	started bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	// fetches tracks initial fetches started in the background by Visit.
	// None are started once stopped is set.
	fetches sync.WaitGroup
	stopped bool

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:      make(map[string]*session),
		messageTTL:    defaultMessageTTL,
		sessionTTL:    defaultSessionTTL,
		sweepInterval: defaultSweepInterval,
		maxSessions:   defaultMaxSessions,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}

	return s
}

// Start launches the session sweeper. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.fetcher == nil {
		return ErrNoFetcher
	}

	s.stopped = false
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.sweepLoop(s.stopCh)

	s.started = true
	s.logger.Info(ctx, "dashboard service started",
		logger.Duration("messageTTL", s.messageTTL),
		logger.Duration("sessionTTL", s.sessionTTL),
		logger.Int("maxSessions", s.maxSessions),
	)
	return nil
}

// Stop cancels in-flight fetches and stops the sweeper.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.stopped = true
	close(s.stopCh)
	for _, sess := range s.sessions {
		sess.abort()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.fetches.Wait()
	s.logger.Info(context.Background(), "dashboard service stopped")
}

// EnsureSession returns id when it names a live session, or creates a new
// session and returns its id. created reports which happened.
func (s *Service) EnsureSession(ctx context.Context, id string) (sid string, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess, ok := s.sessions[id]; ok && !s.expired(sess, now) {
		sess.lastSeen = now
		return id, false
	}

	if len(s.sessions) >= s.maxSessions {
		s.evictOldestLocked()
	}

	sess := &session{
		id:         uuid.NewString(),
		credential: s.defaultCredential,
		state:      StateIdle,
		lastSeen:   now,
	}
	s.sessions[sess.id] = sess
	metrics.UpdateActiveSessions(len(s.sessions))
	s.logger.Debug(ctx, "session created", logger.String("session", sess.id))
	return sess.id, true
}

// Visit returns the snapshot for a page view. The first visit of a session
// with a credential starts the initial fetch in the background and returns
// at once with the session fetching.
func (s *Service) Visit(ctx context.Context, id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return View{}, err
	}
	if sess.visited || s.stopped || !sess.hasCredential() {
		sess.visited = true
		return sess.view(s.now()), nil
	}
	if s.fetcher == nil {
		return View{}, ErrNoFetcher
	}
	sess.visited = true

	f := s.beginLocked(ctx, sess)
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		results, fetchErr := s.fetcher.Fetch(f.ctx, f.credential)
		f.cancel()
		s.finish(ctx, sess, f.seq, results, fetchErr)
	}()
	return sess.view(s.now()), nil
}

// Snapshot returns the current view of a session without side effects
// beyond refreshing its idle timer.
func (s *Service) Snapshot(id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return View{}, err
	}
	return sess.view(s.now()), nil
}

// SetCredential stores key and, when it is not blank, fetches with it. A
// blank key leaves the session idle without a message; earlier results stay
// on screen and any fetch still running for the old key is discarded.
func (s *Service) SetCredential(ctx context.Context, id, key string) (View, error) {
	s.mu.Lock()
	sess, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	sess.credential = key
	sess.visited = true
	if !sess.hasCredential() {
		sess.abort()
		sess.state = StateIdle
		v := sess.view(s.now())
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	return s.Refresh(ctx, id)
}

// Refresh fetches the health map with the session's credential. A blank
// credential raises a notice and returns ErrEmptyCredential without any
// network call. Fetch failures are recorded on the session, not returned:
// the banner and notice carry them and the previous results are kept.
//
// A newer Refresh of the same session cancels this one, and the result of a
// superseded fetch is discarded.
func (s *Service) Refresh(ctx context.Context, id string) (View, error) {
	s.mu.Lock()
	sess, err := s.lookupLocked(id)
	if err != nil {
		s.mu.Unlock()
		return View{}, err
	}
	if s.fetcher == nil {
		s.mu.Unlock()
		return View{}, ErrNoFetcher
	}
	if !sess.hasCredential() {
		sess.setNotice(msgEnterCredential, s.now(), s.messageTTL)
		v := sess.view(s.now())
		s.mu.Unlock()
		return v, ErrEmptyCredential
	}

	f := s.beginLocked(ctx, sess)
	s.mu.Unlock()

	results, fetchErr := s.fetcher.Fetch(f.ctx, f.credential)
	f.cancel()

	return s.finish(ctx, sess, f.seq, results, fetchErr), nil
}

// fetch is one started backend call of a session.
type fetch struct {
	ctx        context.Context
	cancel     context.CancelFunc
	seq        uint64
	credential string
}

// beginLocked supersedes any running fetch of sess and marks it fetching.
func (s *Service) beginLocked(ctx context.Context, sess *session) fetch {
	sess.abort()
	// The fetch outlives a disconnecting client; Stop and newer fetches
	// cancel it instead.
	fetchCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	sess.cancel = cancel
	sess.state = StateFetching
	return fetch{ctx: fetchCtx, cancel: cancel, seq: sess.seq, credential: sess.credential}
}

// finish applies the outcome of the fetch numbered seq unless a newer one
// superseded it.
func (s *Service) finish(ctx context.Context, sess *session, seq uint64, results health.Map, fetchErr error) View {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if sess.seq != seq {
		metrics.RecordStaleResponse()
		s.logger.Debug(ctx, "discarding superseded fetch",
			logger.String("session", sess.id),
			logger.Uint64("seq", seq),
			logger.Uint64("latest", sess.seq),
		)
		return sess.view(now)
	}
	sess.cancel = nil

	if fetchErr != nil {
		sess.state = StateErrored
		sess.lastError = fetchErr.Error()
		sess.setNotice(msgFetchFailed+fetchErr.Error(), now, s.messageTTL)
		s.logger.Warn(ctx, "health refresh failed",
			logger.String("session", sess.id),
			logger.Error(fetchErr),
		)
		return sess.view(now)
	}

	sess.state = StateReady
	sess.results = results
	sess.lastError = ""
	sess.lastUpdated = now
	recordServiceMetrics(results)
	s.logger.Debug(ctx, "health refreshed",
		logger.String("session", sess.id),
		logger.Int("reported", results.Reported()),
	)
	return sess.view(now)
}

// ToggleKeyVisibility flips whether the key field shows its content.
func (s *Service) ToggleKeyVisibility(id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return View{}, err
	}
	sess.showKey = !sess.showKey
	return sess.view(s.now()), nil
}

// DismissNotice hides the current notice before its TTL runs out.
func (s *Service) DismissNotice(id string) (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.lookupLocked(id)
	if err != nil {
		return View{}, err
	}
	sess.notice = ""
	sess.noticeExpires = time.Time{}
	return sess.view(s.now()), nil
}

// SessionCount returns the number of sessions held in memory.
func (s *Service) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Service) lookupLocked(id string) (*session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = s.now()
	return sess, nil
}

func (s *Service) expired(sess *session, now time.Time) bool {
	return now.Sub(sess.lastSeen) > s.sessionTTL
}

func (s *Service) evictOldestLocked() {
	var oldest *session
	for _, sess := range s.sessions {
		if oldest == nil || sess.lastSeen.Before(oldest.lastSeen) {
			oldest = sess
		}
	}
	if oldest == nil {
		return
	}
	oldest.abort()
	delete(s.sessions, oldest.id)
	metrics.RecordSessionsExpired(1)
}

func (s *Service) sweepLoop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops sessions idle for longer than the session TTL.
func (s *Service) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, sess := range s.sessions {
		if s.expired(sess, now) {
			sess.abort()
			delete(s.sessions, id)
			removed++
		}
	}
	metrics.RecordSessionsExpired(removed)
	metrics.UpdateActiveSessions(len(s.sessions))
	if removed > 0 {
		s.logger.Debug(context.Background(), "expired sessions removed",
			logger.Int("removed", removed),
			logger.Int("active", len(s.sessions)),
		)
	}
	return removed
}

func recordServiceMetrics(m health.Map) {
	for _, svc := range health.Services() {
		rec := m.Get(svc.ID)
		metrics.UpdateServiceStatus(string(svc.ID), string(rec.Class()))
		if rec.HasLatency() {
			metrics.UpdateServiceLatency(string(svc.ID), *rec.LatencyMS)
		}
	}
}
