package service_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/domain/assignment"
	"github.com/okian/tally/internal/domain/errs"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

// startService runs a service on the given driver with a fixed clock.
func startService(t *testing.T, driver string, now time.Time) *service.Service {
	t.Helper()
	cfg := config.New(context.Background())
	cfg.StorageDriver = driver
	cfg.SQLitePath = filepath.Join(t.TempDir(), "tally.db")
	svc := service.New(
		service.WithConfig(cfg),
		service.WithClock(func() time.Time { return now }),
		service.WithLogger(logger.Nop()),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start %s service: %v", driver, err)
	}
	t.Cleanup(svc.Stop)
	return svc
}

func TestServiceIntegration(t *testing.T) {
	// Wednesday; the week runs Monday 2026-10-12 to Sunday 2026-10-18.
	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

	for _, driver := range []string{config.DriverMemory, config.DriverSQLite} {
		Convey("Given a "+driver+" service", t, func() {
			svc := startService(t, driver, now)
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			alice, err := svc.Persons().Create(ctx, "Alice")
			So(err, ShouldBeNil)
			bob, err := svc.Persons().Create(ctx, "Bob")
			So(err, ShouldBeNil)
			good, err := svc.Actions().Create(ctx, model.KindReward, "Good", 10)
			So(err, ShouldBeNil)

			Convey("When one reward is assigned to both in a single call", func() {
				rows, err := svc.Assignments().Create(ctx, assignment.CreateRequest{
					PersonIDs: []int64{bob.ID, alice.ID},
					ItemType:  model.KindReward,
					ItemID:    good.ID,
				})
				So(err, ShouldBeNil)

				Convey("Then each gets one assignment worth 10", func() {
					So(rows, ShouldHaveLength, 2)
					for _, r := range rows {
						So(r.ItemValue, ShouldEqual, 10)
						So(r.ItemName, ShouldEqual, "Good")
						So(r.AssignedAt, ShouldEqual, now)
					}
				})

				Convey("Then the tie is broken by name", func() {
					scores, err := svc.Scores().TotalScores(ctx)
					So(err, ShouldBeNil)
					So(scores, ShouldHaveLength, 2)
					So(scores[0].PersonName, ShouldEqual, "Alice")
					So(scores[0].TotalScore, ShouldEqual, 10)
					So(scores[0].Rank, ShouldEqual, 1)
					So(scores[1].PersonName, ShouldEqual, "Bob")
					So(scores[1].TotalScore, ShouldEqual, 10)
					So(scores[1].Rank, ShouldEqual, 2)
				})

				Convey("Then the weekly scores include them", func() {
					weekly, err := svc.Scores().WeeklyScores(ctx, nil)
					So(err, ShouldBeNil)
					So(weekly[0].WeeklyScore, ShouldEqual, 10)
					So(weekly[0].Start, ShouldEqual, time.Date(2026, 10, 12, 0, 0, 0, 0, time.UTC))
				})

				Convey("Then editing the reward leaves the history alone", func() {
					_, err := svc.Actions().Update(ctx, model.KindReward, good.ID, "Good", 20)
					So(err, ShouldBeNil)
					view, err := svc.Scores().PersonScore(ctx, alice.ID)
					So(err, ShouldBeNil)
					So(view.TotalScore, ShouldEqual, 10)
				})

				Convey("Then the reward cannot be deleted until its assignments are", func() {
					err := svc.Actions().Delete(ctx, model.KindReward, good.ID)
					So(errs.IsBusinessRule(err), ShouldBeTrue)

					for _, r := range rows {
						So(svc.Assignments().Delete(ctx, r.ID), ShouldBeNil)
					}
					So(svc.Actions().Delete(ctx, model.KindReward, good.ID), ShouldBeNil)
				})

				Convey("Then the person cannot be deleted while referenced", func() {
					err := svc.Persons().Delete(ctx, alice.ID)
					So(errs.IsBusinessRule(err), ShouldBeTrue)
				})

				Convey("Then stats count both rows", func() {
					stats := svc.GetStats()
					So(stats["totalAssignments"], ShouldEqual, 2)
					So(stats["totalRewards"], ShouldEqual, 1)
				})
			})

			Convey("When a punishment is created with a positive value", func() {
				_, err := svc.Actions().Create(ctx, model.KindPunishment, "Rude", 5)

				Convey("Then it is rejected", func() {
					So(errs.IsValidation(err), ShouldBeTrue)
				})

				Convey("Then the negative value is accepted", func() {
					p, err := svc.Actions().Create(ctx, model.KindPunishment, "Rude", -5)
					So(err, ShouldBeNil)
					So(p.Value, ShouldEqual, -5)
				})
			})

			Convey("When a person is compared to themself", func() {
				_, err := svc.Scores().Compare(ctx, alice.ID, alice.ID)

				Convey("Then it is a validation error", func() {
					So(errs.IsValidation(err), ShouldBeTrue)
					So(err.Error(), ShouldContainSubstring, "same person")
				})
			})
		})
	}
}

func TestServiceIntegration_EmptyStatistics(t *testing.T) {
	Convey("Given a service with nobody in it", t, func() {
		svc := startService(t, config.DriverMemory, time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC))

		Convey("When statistics are requested", func() {
			st, err := svc.Scores().Statistics(context.Background())

			Convey("Then every summary is zero and no performer is named", func() {
				So(err, ShouldBeNil)
				So(st.TotalPersons, ShouldEqual, 0)
				So(st.TotalScoreStats.Min, ShouldEqual, 0)
				So(st.TotalScoreStats.Max, ShouldEqual, 0)
				So(st.TotalScoreStats.Average, ShouldEqual, 0)
				So(st.TotalScoreStats.Median, ShouldEqual, 0)
				So(st.TopPerformer, ShouldBeNil)
				So(st.BottomPerformer, ShouldBeNil)
				So(st.TopWeeklyPerformer, ShouldBeNil)
			})
		})
	})
}
