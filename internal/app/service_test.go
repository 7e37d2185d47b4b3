package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pickem/internal/adapters/repository"
	"github.com/okian/pickem/internal/domain/event"
	"github.com/okian/pickem/internal/domain/model"
)

func startTestService(t *testing.T, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{
		WithDBPath(filepath.Join(t.TempDir(), "test.db")),
	}, opts...)
	svc := New(opts...)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestPublish(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := startTestService(t, WithEventTTL(time.Hour))
		ctx := context.Background()

		Convey("When an event is published with the default ttl", func() {
			e, err := svc.Publish(ctx, event.KindScoreUpdate, event.ScoreUpdate{GameID: 1}, "", event.DefaultTTL)

			Convey("Then it lands in the log with an id and the configured expiry", func() {
				So(err, ShouldBeNil)
				So(e.ID, ShouldBeGreaterThan, 0)
				So(e.Scope, ShouldEqual, event.ScopeGlobal)
				So(e.ExpiresAt.Sub(e.CreatedAt), ShouldEqual, time.Hour)

				page, err := svc.EventsSince(ctx, 0, "", 10)
				So(err, ShouldBeNil)
				So(page.Events, ShouldHaveLength, 1)
				So(page.Events[0].ID, ShouldEqual, e.ID)
			})
		})

		Convey("When an event is published with a zero ttl", func() {
			_, err := svc.Publish(ctx, event.KindScoreUpdate, event.ScoreUpdate{GameID: 1}, "", 0)

			Convey("Then it expires immediately and no reader sees it", func() {
				So(err, ShouldBeNil)
				page, err := svc.EventsSince(ctx, 0, "", 10)
				So(err, ShouldBeNil)
				So(page.Events, ShouldBeEmpty)
			})
		})
	})
}

func TestEventsSinceClampsLimit(t *testing.T) {
	Convey("Given a service with a small page limit", t, func() {
		svc := startTestService(t, WithPageLimit(2))
		ctx := context.Background()

		for i := 0; i < 4; i++ {
			_, err := svc.Publish(ctx, event.KindScoreUpdate, event.ScoreUpdate{GameID: int64(i)}, "", event.DefaultTTL)
			So(err, ShouldBeNil)
		}

		Convey("When a caller asks for more than the limit", func() {
			page, err := svc.EventsSince(ctx, 0, "", 1000)

			Convey("Then the page is clamped and marked as partial", func() {
				So(err, ShouldBeNil)
				So(page.Events, ShouldHaveLength, 2)
				So(page.HasMore, ShouldBeTrue)
			})
		})
	})
}

func TestSubmitPick(t *testing.T) {
	Convey("Given a service and an upcoming game", t, func() {
		now := time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC)
		svc := startTestService(t, WithClock(func() time.Time { return now }))
		ctx := context.Background()

		gameID, err := svc.Store().CreateGame(ctx, model.Game{
			HomeTeam:   "ravens",
			AwayTeam:   "bills",
			GameTime:   now.Add(3 * time.Hour),
			LockOffset: time.Hour,
			SeasonWeek: 1,
		})
		So(err, ShouldBeNil)

		Convey("When a user picks a team that is playing", func() {
			err := svc.SubmitPick(ctx, "alice", gameID, "ravens")

			Convey("Then the pick is stored and a scoped event is emitted", func() {
				So(err, ShouldBeNil)

				p, err := svc.Store().GetPick(ctx, "alice", gameID)
				So(err, ShouldBeNil)
				So(p.Team, ShouldEqual, "ravens")
				So(p.AutoGenerated, ShouldBeFalse)

				// Invisible without alice's scope, visible with it.
				page, err := svc.EventsSince(ctx, 0, "", 10)
				So(err, ShouldBeNil)
				So(page.Events, ShouldBeEmpty)

				page, err = svc.EventsSince(ctx, 0, event.UserScope("alice"), 10)
				So(err, ShouldBeNil)
				So(page.Events, ShouldHaveLength, 1)
				So(page.Events[0].Kind, ShouldEqual, event.KindPickSubmitted)
			})
		})

		Convey("When a user changes their mind before lock", func() {
			So(svc.SubmitPick(ctx, "alice", gameID, "ravens"), ShouldBeNil)
			So(svc.SubmitPick(ctx, "alice", gameID, "bills"), ShouldBeNil)

			Convey("Then the latest team wins", func() {
				p, err := svc.Store().GetPick(ctx, "alice", gameID)
				So(err, ShouldBeNil)
				So(p.Team, ShouldEqual, "bills")
			})
		})

		Convey("When the pick names a team not in the game", func() {
			err := svc.SubmitPick(ctx, "alice", gameID, "jets")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrUnknownTeam), ShouldBeTrue)
			})
		})

		Convey("When the game does not exist", func() {
			err := svc.SubmitPick(ctx, "alice", 404, "ravens")

			Convey("Then the store error surfaces", func() {
				So(errors.Is(err, repository.ErrGameNotFound), ShouldBeTrue)
			})
		})
	})

	Convey("Given a game past its lock time", t, func() {
		now := time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC)
		svc := startTestService(t, WithClock(func() time.Time { return now }))
		ctx := context.Background()

		gameID, err := svc.Store().CreateGame(ctx, model.Game{
			HomeTeam:   "ravens",
			AwayTeam:   "bills",
			GameTime:   now.Add(30 * time.Minute),
			LockOffset: time.Hour,
			SeasonWeek: 1,
		})
		So(err, ShouldBeNil)

		Convey("When a pick arrives", func() {
			err := svc.SubmitPick(ctx, "alice", gameID, "ravens")

			Convey("Then it is rejected as closed", func() {
				So(errors.Is(err, ErrPicksClosed), ShouldBeTrue)
			})
		})
	})
}

func TestGetStats(t *testing.T) {
	Convey("Given a running service", t, func() {
		svc := startTestService(t)
		ctx := context.Background()

		_, err := svc.Publish(ctx, event.KindScoreUpdate, event.ScoreUpdate{GameID: 1}, "", event.DefaultTTL)
		So(err, ShouldBeNil)
		svc.MarkReconciled(time.Date(2026, 9, 6, 12, 0, 0, 0, time.UTC))

		Convey("When stats are read", func() {
			stats := svc.GetStats()

			Convey("Then they reflect the log and the last pass", func() {
				So(stats["started"], ShouldBeTrue)
				So(stats["eventLogSize"], ShouldEqual, 1)
				So(stats["lastReconcile"], ShouldEqual, "2026-09-06T12:00:00Z")
			})
		})
	})
}
