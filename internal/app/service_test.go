package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/gcpstatus/internal/adapters/backend"
	service "github.com/okian/gcpstatus/internal/app"
	"github.com/okian/gcpstatus/internal/domain/health"
	"github.com/okian/gcpstatus/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeFetcher answers from a queue of canned responses.
type fakeFetcher struct {
	mu    sync.Mutex
	calls atomic.Int32
	keys  []string
	fn    func(ctx context.Context, credential string) (health.Map, error)
}

func (f *fakeFetcher) Fetch(ctx context.Context, credential string) (health.Map, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.keys = append(f.keys, credential)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, credential)
}

func (f *fakeFetcher) set(fn func(ctx context.Context, credential string) (health.Map, error)) {
	f.mu.Lock()
	f.fn = fn
	f.mu.Unlock()
}

func respond(body string) func(context.Context, string) (health.Map, error) {
	return func(context.Context, string) (health.Map, error) {
		return health.Decode([]byte(body))
	}
}

func fail(err error) func(context.Context, string) (health.Map, error) {
	return func(context.Context, string) (health.Map, error) { return nil, err }
}

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newService(f backend.Fetcher, c *clock, opts ...service.Option) *service.Service {
	base := []service.Option{
		service.WithFetcher(f),
		service.WithLogger(logger.Nop()),
		service.WithClock(c.Now),
		service.WithDefaultCredential("GCP-HEALTH-TEST-KEY"),
	}
	return service.New(append(base, opts...)...)
}

func cardByID(v service.View, id health.ServiceID) (class health.Class, latency string) {
	for _, c := range v.Cards {
		if c.ID == id {
			return c.Class, c.Latency
		}
	}
	return "", ""
}

// settle waits for the session's fetch to finish and returns its view.
func settle(svc *service.Service, id string) service.View {
	deadline := time.Now().Add(2 * time.Second)
	for {
		v, err := svc.Snapshot(id)
		So(err, ShouldBeNil)
		if !v.InFlight || time.Now().After(deadline) {
			return v
		}
		time.Sleep(time.Millisecond)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service without a fetcher", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("Then Start should fail", func() {
			So(errors.Is(svc.Start(context.Background()), service.ErrNoFetcher), ShouldBeTrue)
		})
	})

	Convey("Given a service with a fetcher", t, func() {
		svc := newService(&fakeFetcher{fn: respond(`{}`)}, &clock{now: time.Unix(0, 0)})

		Convey("When started twice and stopped twice", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
			So(svc.Start(context.Background()), ShouldBeNil)
			svc.Stop()
			svc.Stop()

			Convey("Then it should not leak the sweeper", func() {
				So(svc.SessionCount(), ShouldEqual, 0)
			})
		})
	})
}

func TestService_Sessions(t *testing.T) {
	Convey("Given a running service", t, func() {
		c := &clock{now: time.Unix(1_700_000_000, 0)}
		svc := newService(&fakeFetcher{fn: respond(`{}`)}, c,
			service.WithSessionTTL(time.Minute),
			service.WithMaxSessions(2),
		)
		ctx := context.Background()

		Convey("When an unknown id is presented", func() {
			id, created := svc.EnsureSession(ctx, "not-a-session")

			Convey("Then a new session is created with the default key", func() {
				So(created, ShouldBeTrue)
				So(id, ShouldNotEqual, "not-a-session")
				v, err := svc.Snapshot(id)
				So(err, ShouldBeNil)
				So(v.Credential, ShouldEqual, "GCP-HEALTH-TEST-KEY")
				So(v.State, ShouldEqual, service.StateIdle)
				So(v.Cards, ShouldHaveLength, 7)
			})

			Convey("And presenting it again reuses it", func() {
				again, created := svc.EnsureSession(ctx, id)
				So(created, ShouldBeFalse)
				So(again, ShouldEqual, id)
			})
		})

		Convey("When a session stays idle past its TTL", func() {
			id, _ := svc.EnsureSession(ctx, "")
			c.Advance(2 * time.Minute)
			again, created := svc.EnsureSession(ctx, id)

			Convey("Then a fresh session replaces it", func() {
				So(created, ShouldBeTrue)
				So(again, ShouldNotEqual, id)
			})
		})

		Convey("When the session cap is reached", func() {
			first, _ := svc.EnsureSession(ctx, "")
			c.Advance(time.Second)
			second, _ := svc.EnsureSession(ctx, "")
			c.Advance(time.Second)
			_, _ = svc.EnsureSession(ctx, "")

			Convey("Then the least recently used session is evicted", func() {
				So(svc.SessionCount(), ShouldEqual, 2)
				_, err := svc.Snapshot(first)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				_, err = svc.Snapshot(second)
				So(err, ShouldBeNil)
			})
		})

		Convey("When operating on a missing session", func() {
			_, err := svc.Refresh(ctx, "missing")
			So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
			_, err = svc.ToggleKeyVisibility("missing")
			So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
			_, err = svc.DismissNotice("missing")
			So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
		})
	})
}

func TestService_Sweeper(t *testing.T) {
	Convey("Given a started service with a short sweep interval", t, func() {
		c := &clock{now: time.Unix(1_700_000_000, 0)}
		svc := newService(&fakeFetcher{fn: respond(`{}`)}, c,
			service.WithSessionTTL(time.Minute),
			service.WithSweepInterval(5*time.Millisecond),
		)
		So(svc.Start(context.Background()), ShouldBeNil)
		defer svc.Stop()

		_, _ = svc.EnsureSession(context.Background(), "")
		So(svc.SessionCount(), ShouldEqual, 1)

		Convey("When the session expires", func() {
			c.Advance(time.Hour)

			Convey("Then the sweeper removes it", func() {
				deadline := time.Now().Add(2 * time.Second)
				for svc.SessionCount() > 0 && time.Now().Before(deadline) {
					time.Sleep(5 * time.Millisecond)
				}
				So(svc.SessionCount(), ShouldEqual, 0)
			})
		})
	})
}

func TestService_Refresh(t *testing.T) {
	Convey("Given a session", t, func() {
		c := &clock{now: time.Unix(1_700_000_000, 0)}
		f := &fakeFetcher{fn: respond(`{"cloud_storage": {"status": "Healthy", "latency_ms": 42}}`)}
		svc := newService(f, c)
		ctx := context.Background()
		id, _ := svc.EnsureSession(ctx, "")

		Convey("When the page is first visited", func() {
			first, err := svc.Visit(ctx, id)
			So(err, ShouldBeNil)
			v := settle(svc, id)

			Convey("Then the view comes back while the initial fetch runs", func() {
				So(first.State, ShouldEqual, service.StateFetching)
				So(first.InFlight, ShouldBeTrue)
				So(first.CanRefresh, ShouldBeFalse)
				So(first.HasData, ShouldBeFalse)
			})

			Convey("And the initial fetch runs with the default key", func() {
				So(f.calls.Load(), ShouldEqual, 1)
				So(f.keys[0], ShouldEqual, "GCP-HEALTH-TEST-KEY")
				So(v.State, ShouldEqual, service.StateReady)
				So(v.HasData, ShouldBeTrue)
				So(v.LastUpdated, ShouldNotBeNil)
			})

			Convey("And one service is healthy and six are unknown", func() {
				class, latency := cardByID(v, health.CloudStorage)
				So(class, ShouldEqual, health.Healthy)
				So(latency, ShouldEqual, "Latency: 42ms")
				So(v.Summary.Healthy, ShouldEqual, 1)
				So(v.Summary.Unknown, ShouldEqual, 6)
			})

			Convey("And a second visit does not fetch again", func() {
				_, err := svc.Visit(ctx, id)
				So(err, ShouldBeNil)
				So(f.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When a later refresh fails", func() {
			_, err := svc.Refresh(ctx, id)
			So(err, ShouldBeNil)
			f.set(fail(&backend.RequestFailedError{StatusCode: 401}))

			v, err := svc.Refresh(ctx, id)

			Convey("Then the previous results are kept and the error surfaces", func() {
				So(err, ShouldBeNil)
				So(v.State, ShouldEqual, service.StateErrored)
				So(v.Banner, ShouldContainSubstring, "401")
				So(v.Notice, ShouldStartWith, "Failed to fetch health status: ")
				So(v.Notice, ShouldContainSubstring, "401")
				class, _ := cardByID(v, health.CloudStorage)
				So(class, ShouldEqual, health.Healthy)
			})

			Convey("And a following success clears the banner", func() {
				f.set(respond(`{"cloud_sql": {"status": "unhealthy"}}`))
				v, err := svc.Refresh(ctx, id)
				So(err, ShouldBeNil)
				So(v.Banner, ShouldBeEmpty)
				So(v.State, ShouldEqual, service.StateReady)

				Convey("And the results were replaced wholesale", func() {
					storage, _ := cardByID(v, health.CloudStorage)
					sql, _ := cardByID(v, health.CloudSQL)
					So(storage, ShouldEqual, health.Unknown)
					So(sql, ShouldEqual, health.Unhealthy)
				})
			})
		})

		Convey("When the credential is blank", func() {
			_, err := svc.SetCredential(ctx, id, "   ")
			So(err, ShouldBeNil)

			v, err := svc.Refresh(ctx, id)

			Convey("Then no request is sent and the user is prompted", func() {
				So(errors.Is(err, service.ErrEmptyCredential), ShouldBeTrue)
				So(f.calls.Load(), ShouldEqual, 0)
				So(v.Notice, ShouldEqual, "Please enter an API key")
				So(v.NeedsCredential, ShouldBeTrue)
				So(v.CanRefresh, ShouldBeFalse)
			})

			Convey("And the notice disappears after its TTL", func() {
				c.Advance(7 * time.Second)
				v, err := svc.Snapshot(id)
				So(err, ShouldBeNil)
				So(v.Notice, ShouldBeEmpty)
			})

			Convey("And the notice can be dismissed", func() {
				v, err := svc.DismissNotice(id)
				So(err, ShouldBeNil)
				So(v.Notice, ShouldBeEmpty)
			})
		})

		Convey("When the credential is cleared after a success", func() {
			_, _ = svc.Refresh(ctx, id)
			v, err := svc.SetCredential(ctx, id, "")

			Convey("Then the session goes idle, keeps results and shows no message", func() {
				So(err, ShouldBeNil)
				So(v.State, ShouldEqual, service.StateIdle)
				So(v.HasData, ShouldBeTrue)
				So(v.Notice, ShouldBeEmpty)
				So(f.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When a new credential is set", func() {
			v, err := svc.SetCredential(ctx, id, "other-key")

			Convey("Then a fetch runs with the untrimmed key", func() {
				So(err, ShouldBeNil)
				So(v.Credential, ShouldEqual, "other-key")
				So(f.keys, ShouldResemble, []string{"other-key"})
			})
		})

		Convey("When the key visibility is toggled", func() {
			v, err := svc.ToggleKeyVisibility(id)
			So(err, ShouldBeNil)
			So(v.ShowKey, ShouldBeTrue)
			v, _ = svc.ToggleKeyVisibility(id)
			So(v.ShowKey, ShouldBeFalse)
		})

		Convey("When the view is encoded", func() {
			v, _ := svc.Refresh(ctx, id)
			b, err := json.Marshal(v)

			Convey("Then the credential is never part of it", func() {
				So(err, ShouldBeNil)
				So(string(b), ShouldNotContainSubstring, "GCP-HEALTH-TEST-KEY")
				So(string(b), ShouldContainSubstring, `"state":"ready"`)
			})
		})
	})
}

func TestService_OverlappingRefresh(t *testing.T) {
	Convey("Given a fetch that blocks until cancelled", t, func() {
		c := &clock{now: time.Unix(1_700_000_000, 0)}
		started := make(chan struct{})
		f := &fakeFetcher{}
		f.set(func(ctx context.Context, _ string) (health.Map, error) {
			close(started)
			<-ctx.Done()
			return nil, &backend.NetworkError{Err: ctx.Err()}
		})
		svc := newService(f, c)
		ctx := context.Background()
		id, _ := svc.EnsureSession(ctx, "")

		var wg sync.WaitGroup
		var slow service.View
		wg.Add(1)
		go func() {
			defer wg.Done()
			slow, _ = svc.Refresh(ctx, id)
		}()
		<-started

		Convey("When the user refreshes again", func() {
			mid, err := svc.Snapshot(id)
			So(err, ShouldBeNil)
			So(mid.InFlight, ShouldBeTrue)
			So(mid.CanRefresh, ShouldBeFalse)

			f.set(respond(`{"firestore": {"status": "healthy"}}`))
			latest, err := svc.Refresh(ctx, id)
			wg.Wait()

			Convey("Then the superseded fetch is discarded", func() {
				So(err, ShouldBeNil)
				So(latest.State, ShouldEqual, service.StateReady)
				So(latest.Banner, ShouldBeEmpty)

				final, _ := svc.Snapshot(id)
				So(final.State, ShouldEqual, service.StateReady)
				So(final.Banner, ShouldBeEmpty)
				So(final.Notice, ShouldBeEmpty)
				class, _ := cardByID(final, health.Firestore)
				So(class, ShouldEqual, health.Healthy)
				So(slow.Banner, ShouldBeEmpty)
			})
		})
	})
}

func TestService_StopCancelsFetches(t *testing.T) {
	Convey("Given a started service with a fetch in flight", t, func() {
		c := &clock{now: time.Unix(1_700_000_000, 0)}
		started := make(chan struct{})
		f := &fakeFetcher{}
		f.set(func(ctx context.Context, _ string) (health.Map, error) {
			close(started)
			<-ctx.Done()
			return nil, &backend.NetworkError{Err: ctx.Err()}
		})
		svc := newService(f, c)
		So(svc.Start(context.Background()), ShouldBeNil)
		id, _ := svc.EnsureSession(context.Background(), "")

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = svc.Refresh(context.Background(), id)
		}()
		<-started

		Convey("When the service stops", func() {
			svc.Stop()

			Convey("Then the fetch returns", func() {
				returned := false
				select {
				case <-done:
					returned = true
				case <-time.After(2 * time.Second):
				}
				So(returned, ShouldBeTrue)
			})

			Convey("And the session is no longer fetching", func() {
				<-done
				v, err := svc.Snapshot(id)
				So(err, ShouldBeNil)
				So(v.State, ShouldEqual, service.StateIdle)
				So(v.InFlight, ShouldBeFalse)
				So(v.CanRefresh, ShouldBeTrue)
			})
		})
	})
}

func TestService_BackgroundInitialFetch(t *testing.T) {
	Convey("Given a slow backend and a running service", t, func() {
		c := &clock{now: time.Unix(1_700_000_000, 0)}
		release := make(chan struct{})
		f := &fakeFetcher{}
		f.set(func(ctx context.Context, _ string) (health.Map, error) {
			select {
			case <-release:
				return health.Decode([]byte(`{"document_ai": {"status": "healthy"}}`))
			case <-ctx.Done():
				return nil, &backend.NetworkError{Err: ctx.Err()}
			}
		})
		svc := newService(f, c)
		So(svc.Start(context.Background()), ShouldBeNil)
		id, _ := svc.EnsureSession(context.Background(), "")

		Convey("When the page is first visited", func() {
			v, err := svc.Visit(context.Background(), id)
			So(err, ShouldBeNil)

			Convey("Then it returns before the backend answers", func() {
				So(v.State, ShouldEqual, service.StateFetching)
				again, err := svc.Visit(context.Background(), id)
				So(err, ShouldBeNil)
				So(again.InFlight, ShouldBeTrue)
				close(release)

				done := settle(svc, id)
				So(done.State, ShouldEqual, service.StateReady)
				class, _ := cardByID(done, health.DocumentAI)
				So(class, ShouldEqual, health.Healthy)
				svc.Stop()
			})

			Convey("And stopping the service cancels it and settles the session", func() {
				svc.Stop()
				after, err := svc.Snapshot(id)
				So(err, ShouldBeNil)
				So(after.State, ShouldEqual, service.StateIdle)
				So(after.InFlight, ShouldBeFalse)
			})
		})

		Convey("When the session is evicted while fetching", func() {
			small := newService(f, c, service.WithMaxSessions(1))
			first, _ := small.EnsureSession(context.Background(), "")
			_, err := small.Visit(context.Background(), first)
			So(err, ShouldBeNil)
			_, _ = small.EnsureSession(context.Background(), "")

			Convey("Then the evicted fetch is cancelled", func() {
				So(small.SessionCount(), ShouldEqual, 1)
				_, err := small.Snapshot(first)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				svc.Stop()
			})
		})
	})
}
