package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pickem/internal/domain/event"
)

func collect(ch <-chan event.Event, n int, timeout time.Duration) []event.Event {
	var out []event.Event
	deadline := time.After(timeout)
	for len(out) < n {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestHookStream(t *testing.T) {
	Convey("Given a server streaming NDJSON frames", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/feed/stream":
				w.Header().Set("Content-Type", "application/x-ndjson")
				fmt.Fprintln(w, `{"id":1,"type":"score-update","scope":"global","payload":{"game_id":4}}`)
				fmt.Fprintln(w, `{"type":"heartbeat","ts":"2026-08-30T12:00:00Z"}`)
				fmt.Fprintln(w, `{"id":2,"type":"game-completed","scope":"global","payload":{"game_id":4}}`)
				fmt.Fprintln(w, `{"id":2,"type":"game-completed","scope":"global","payload":{"game_id":4}}`)
			case "/feed/poll":
				_ = json.NewEncoder(w).Encode(event.Page{Events: []event.Event{}})
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		Convey("When the hook consumes the stream", func() {
			h := NewHook(srv.URL,
				WithMaxAttempts(1),
				WithPollInterval(time.Hour),
			)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- h.Run(ctx) }()

			got := collect(h.Events(), 2, 2*time.Second)
			cancel()
			<-done

			Convey("Then events arrive once each, heartbeats are silent, and the cursor advances", func() {
				So(got, ShouldHaveLength, 2)
				So(got[0].ID, ShouldEqual, 1)
				So(got[0].Kind, ShouldEqual, event.KindScoreUpdate)
				So(got[1].ID, ShouldEqual, 2)
				So(h.Cursor(), ShouldEqual, 2)
			})
		})
	})
}

func TestHookResume(t *testing.T) {
	Convey("Given a persisted cursor", t, func() {
		cursors := make(chan string, 1)
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/feed/stream" {
				select {
				case cursors <- r.URL.Query().Get("lastEventId"):
				default:
				}
			}
			http.Error(w, "down", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		Convey("When the hook reconnects", func() {
			h := NewHook(srv.URL, WithCursor(41), WithMaxAttempts(1), WithPollInterval(time.Hour))
			ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer cancel()
			_ = h.Run(ctx)

			Convey("Then it asks for events after the saved id", func() {
				So(<-cursors, ShouldEqual, "41")
			})
		})
	})
}

func TestHookStalledStream(t *testing.T) {
	Convey("Given a half-open stream that sends one event and then goes silent", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/feed/stream":
				w.Header().Set("Content-Type", "application/x-ndjson")
				fmt.Fprintln(w, `{"id":1,"type":"score-update","scope":"global","payload":{"game_id":4}}`)
				if f, ok := w.(http.Flusher); ok {
					f.Flush()
				}
				// No more frames, no heartbeats, no close.
				<-r.Context().Done()
			case "/feed/poll":
				_ = json.NewEncoder(w).Encode(event.Page{
					Events: []event.Event{{
						ID:      2,
						Kind:    event.KindGameCompleted,
						Scope:   event.ScopeGlobal,
						Payload: json.RawMessage(`{"game_id":4}`),
					}},
					NextCursor: 2,
				})
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		Convey("When the silence outlasts the idle timeout", func() {
			h := NewHook(srv.URL,
				WithIdleTimeout(50*time.Millisecond),
				WithMaxAttempts(1),
				WithPollInterval(20*time.Millisecond),
			)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- h.Run(ctx) }()

			got := collect(h.Events(), 2, 2*time.Second)

			Convey("Then the watchdog breaks the read and the hook falls back to polling", func() {
				So(got, ShouldHaveLength, 2)
				So(got[0].ID, ShouldEqual, 1)
				So(got[1].ID, ShouldEqual, 2)
				So(h.State(), ShouldEqual, StatePolling)
				cancel()
				<-done
			})
		})
	})
}

func TestHookPollingDowngrade(t *testing.T) {
	Convey("Given a server whose stream endpoint stays broken", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/feed/stream":
				http.Error(w, "down", http.StatusServiceUnavailable)
			case "/feed/poll":
				_ = json.NewEncoder(w).Encode(event.Page{
					Events: []event.Event{{
						ID:      9,
						Kind:    event.KindLeaderboardUpdated,
						Scope:   event.ScopeGlobal,
						Payload: json.RawMessage(`{"season_week":3}`),
					}},
					NextCursor: 9,
				})
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		Convey("When the attempt budget runs out", func() {
			h := NewHook(srv.URL,
				WithMaxAttempts(2),
				WithBackoff(time.Millisecond),
				WithPollInterval(10*time.Millisecond),
			)
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- h.Run(ctx) }()

			got := collect(h.Events(), 1, 2*time.Second)

			Convey("Then the hook polls permanently and still delivers", func() {
				So(got, ShouldHaveLength, 1)
				So(got[0].ID, ShouldEqual, 9)
				So(h.State(), ShouldEqual, StatePolling)
				cancel()
				<-done
			})
		})
	})
}
