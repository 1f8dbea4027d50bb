package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	app "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/config"
	"github.com/okian/tally/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func TestMainFunction(t *testing.T) {
	convey.Convey("Given the main application", t, func() {
		convey.Convey("When testing configuration loading", func() {
			_ = os.Setenv("TALLY_ADDR", ":8080")
			_ = os.Setenv("TALLY_TIMEZONE", "Europe/Berlin")
			defer func() {
				_ = os.Unsetenv("TALLY_ADDR")
				_ = os.Unsetenv("TALLY_TIMEZONE")
			}()

			convey.Convey("Then configuration should be loadable", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.Timezone, convey.ShouldEqual, "Europe/Berlin")
			})
		})

		convey.Convey("When testing HTTP server creation", func() {
			srv := newHTTPServer(":0", http.NotFoundHandler())

			convey.Convey("Then timeouts should be set", func() {
				convey.So(srv.Addr, convey.ShouldEqual, ":0")
				convey.So(srv.ReadTimeout, convey.ShouldEqual, readTimeout)
				convey.So(srv.WriteTimeout, convey.ShouldEqual, writeTimeout)
				convey.So(srv.ReadHeaderTimeout, convey.ShouldEqual, readHeaderTimeout)
			})
		})
	})
}

func TestMainApplicationIntegration(t *testing.T) {
	convey.Convey("Given a started service and its handler", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		cfg := config.New(ctx)
		svc := app.New(app.WithConfig(cfg), app.WithLogger(logger.Nop()))
		convey.So(svc.Start(ctx), convey.ShouldBeNil)
		defer svc.Stop()

		h := newHandler(ctx, svc, cfg, logger.Nop())

		serve := func(method, path, body string) *httptest.ResponseRecorder {
			req := httptest.NewRequest(method, path, strings.NewReader(body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			return rec
		}

		convey.Convey("Then business routes are wired to the service", func() {
			convey.So(serve(http.MethodPost, "/persons", `{"name":"Alice"}`).Code, convey.ShouldEqual, http.StatusCreated)
			convey.So(serve(http.MethodPost, "/rewards", `{"name":"Chore","value":10}`).Code, convey.ShouldEqual, http.StatusCreated)
			convey.So(serve(http.MethodPost, "/assignments", `{"personIds":[1],"itemType":"reward","itemId":1}`).Code,
				convey.ShouldEqual, http.StatusCreated)

			rec := serve(http.MethodGet, "/scores/total", "")
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			var scores []map[string]any
			convey.So(json.Unmarshal(rec.Body.Bytes(), &scores), convey.ShouldBeNil)
			convey.So(scores, convey.ShouldHaveLength, 1)
			convey.So(scores[0]["totalScore"], convey.ShouldEqual, 10)
		})

		convey.Convey("Then stats come from the service", func() {
			serve(http.MethodPost, "/persons", `{"name":"Bob"}`)
			rec := serve(http.MethodGet, "/stats", "")
			var stats map[string]any
			convey.So(json.Unmarshal(rec.Body.Bytes(), &stats), convey.ShouldBeNil)
			convey.So(stats["started"], convey.ShouldEqual, true)
			convey.So(stats["totalPersons"], convey.ShouldEqual, 1)
		})

		convey.Convey("Then the API reference is served", func() {
			convey.So(serve(http.MethodGet, "/openapi.yaml", "").Code, convey.ShouldEqual, http.StatusOK)
			convey.So(serve(http.MethodGet, "/api-docs", "").Code, convey.ShouldEqual, http.StatusOK)
		})

		convey.Convey("Then every response carries a request id", func() {
			rec := serve(http.MethodGet, "/healthz", "")
			convey.So(rec.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(rec.Header().Get("X-Request-ID"), convey.ShouldNotBeEmpty)
		})

		convey.Convey("When the metrics updater runs until cancelled", func() {
			short, stop := context.WithTimeout(ctx, 50*time.Millisecond)
			defer stop()

			convey.Convey("Then it returns without panicking", func() {
				convey.So(func() { startServiceMetricsUpdater(short, svc) }, convey.ShouldNotPanic)
			})
		})
	})
}

func TestMainApplicationErrorHandling(t *testing.T) {
	convey.Convey("Given main application error handling", t, func() {
		convey.Convey("When the address is empty", func() {
			_ = os.Setenv("TALLY_ADDR", "")
			defer func() { _ = os.Unsetenv("TALLY_ADDR") }()

			convey.Convey("Then configuration loading should fail", func() {
				cfg, err := config.Load(context.Background())
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the storage driver is unknown", func() {
			_ = os.Setenv("TALLY_STORAGE_DRIVER", "cassandra")
			defer func() { _ = os.Unsetenv("TALLY_STORAGE_DRIVER") }()

			convey.Convey("Then configuration loading should fail", func() {
				_, err := config.Load(context.Background())
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
