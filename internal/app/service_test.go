package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/tally/internal/adapters/repository"
	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["storage"], ShouldEqual, config.DriverMemory)
			So(stats["timezone"], ShouldEqual, "UTC")
		})
	})

	Convey("Given a new service built from config", t, func() {
		cfg := config.New(context.Background())
		cfg.Timezone = "Europe/Stockholm"
		cfg.CollationLocale = "sv"
		svc := service.New(service.WithConfig(cfg))

		Convey("Then it should carry the configured zone and collation", func() {
			stats := svc.GetStats()
			So(stats["timezone"], ShouldEqual, "Europe/Stockholm")
			So(stats["collation"], ShouldEqual, "sv")
		})
	})
}

func TestService_Start(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))
		// Ensure service is stopped after test
		defer svc.Stop()

		Convey("Before starting, components are not built", func() {
			So(svc.Persons(), ShouldBeNil)
			So(svc.Scores(), ShouldBeNil)
		})

		Convey("When starting the service", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			err := svc.Start(ctx)

			Convey("Then it should start successfully", func() {
				So(err, ShouldBeNil)
				So(svc.Persons(), ShouldNotBeNil)
				So(svc.Actions(), ShouldNotBeNil)
				So(svc.Assignments(), ShouldNotBeNil)
				So(svc.Scores(), ShouldNotBeNil)
			})

			Convey("And starting twice is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("And it should be marked as started", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, true)
			})
		})
	})

	Convey("Given a service configured with an unknown driver", t, func() {
		cfg := config.New(context.Background())
		cfg.StorageDriver = "cassandra"
		svc := service.New(service.WithConfig(cfg), service.WithLogger(logger.Nop()))

		Convey("Then Start fails", func() {
			err := svc.Start(context.Background())
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "cassandra")
			So(svc.GetStats()["started"], ShouldEqual, false)
		})
	})

	Convey("Given a service without an explicit logger", t, func() {
		svc := service.New()
		defer svc.Stop()

		Convey("Then Start falls back to the global logger", func() {
			So(svc.Start(context.Background()), ShouldBeNil)
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service with an injected store", t, func() {
		store := repository.NewMemoryStore()
		svc := service.New(service.WithStore(store), service.WithLogger(logger.Nop()))
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err := svc.Start(ctx)
		So(err, ShouldBeNil)

		Convey("When stopping the service", func() {
			svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldEqual, false)
			})

			Convey("And the injected store stays open", func() {
				_, err := store.ListPersons(ctx)
				So(err, ShouldBeNil)
			})

			Convey("And stopping again is a no-op", func() {
				svc.Stop()
				So(svc.GetStats()["started"], ShouldEqual, false)
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a new service", t, func() {
		svc := service.New(service.WithLogger(logger.Nop()))

		Convey("When getting stats before starting", func() {
			stats := svc.GetStats()

			Convey("Then it should return basic stats", func() {
				So(stats, ShouldNotBeNil)
				So(stats["started"], ShouldEqual, false)
				So(stats, ShouldNotContainKey, "totalPersons")
			})
		})

		Convey("When getting stats after some writes", func() {
			ctx := context.Background()
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			alice, err := svc.Persons().Create(ctx, "Alice")
			So(err, ShouldBeNil)
			_, err = svc.Persons().Create(ctx, "Bob")
			So(err, ShouldBeNil)
			_, err = svc.Actions().Create(ctx, model.KindPunishment, "Late", -5)
			So(err, ShouldBeNil)

			stats := svc.GetStats()

			Convey("Then it should count everything", func() {
				So(stats["totalPersons"], ShouldEqual, 2)
				So(stats["totalRewards"], ShouldEqual, 0)
				So(stats["totalPunishments"], ShouldEqual, 1)
				So(stats["totalAssignments"], ShouldEqual, 0)
				So(stats["goroutines"], ShouldBeGreaterThan, 0)
				So(alice.ID, ShouldBeGreaterThan, 0)
			})
		})
	})
}
