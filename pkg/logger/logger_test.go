package logger

import (
	"bytes"
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		So(Init(), ShouldBeNil)
		defer func() { So(Sync(), ShouldBeNil) }()

		Convey("Then Get and Named return usable loggers", func() {
			So(Get(), ShouldNotBeNil)
			So(Named("test"), ShouldNotBeNil)
			Get().Info(context.Background(), "test message", String("k", "v"))
		})
	})
}

func TestNewWritesStructuredText(t *testing.T) {
	Convey("Given a logger writing to a buffer", t, func() {
		So(SetLevelString("info"), ShouldBeNil)
		var buf bytes.Buffer
		log := New(&buf).Named("person")

		Convey("When logging with fields", func() {
			log.Info(context.Background(), "person created",
				Int64("person_id", 7), String("name", "Alice"))

			Convey("Then the entry carries message, component and fields", func() {
				out := buf.String()
				So(out, ShouldContainSubstring, `msg="person created"`)
				So(out, ShouldContainSubstring, "component=person")
				So(out, ShouldContainSubstring, "person_id=7")
				So(out, ShouldContainSubstring, "name=Alice")
				So(out, ShouldContainSubstring, "source=")
			})
		})

		Convey("When the level is raised to error", func() {
			So(SetLevelString("error"), ShouldBeNil)
			defer func() { _ = SetLevelString("info") }()
			log.Warn(context.Background(), "dropped")
			log.Error(context.Background(), "kept", Error(errors.New("boom")))

			Convey("Then only error entries are written", func() {
				So(buf.String(), ShouldNotContainSubstring, "dropped")
				So(buf.String(), ShouldContainSubstring, "error=boom")
			})
		})
	})
}

func TestContextFields(t *testing.T) {
	Convey("Given a context carrying a request id", t, func() {
		So(SetLevelString("info"), ShouldBeNil)
		var buf bytes.Buffer
		log := New(&buf)
		ctx := WithFields(context.Background(), String("request_id", "r-1"))

		Convey("When more fields are attached", func() {
			ctx = WithFields(ctx, Int64("person_id", 3))
			log.Info(ctx, "person renamed")

			Convey("Then the entry carries all of them", func() {
				So(buf.String(), ShouldContainSubstring, "request_id=r-1")
				So(buf.String(), ShouldContainSubstring, "person_id=3")
				So(FieldsFrom(ctx), ShouldHaveLength, 2)
			})
		})

		Convey("When nothing is attached", func() {
			So(WithFields(ctx), ShouldEqual, ctx)
			So(FieldsFrom(context.Background()), ShouldBeEmpty)
		})

		Convey("When the entry is logged from a test", func() {
			log.Warn(ctx, "located")

			Convey("Then the source points at the caller", func() {
				So(buf.String(), ShouldContainSubstring, "logger_test.go:")
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	Convey("Given level names", t, func() {
		for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			So(SetLevelString(lvl), ShouldBeNil)
		}
		So(SetLevelString("verbose"), ShouldNotBeNil)
		So(SetLevelString("info"), ShouldBeNil)
	})
}

func TestNop(t *testing.T) {
	Convey("Given the no-op logger", t, func() {
		log := Nop()
		So(log.Named("x"), ShouldNotBeNil)
		So(func() {
			log.Info(context.Background(), "ignored")
			log.Debug(context.Background(), "ignored")
			log.Warn(context.Background(), "ignored")
			log.Error(context.Background(), "ignored")
		}, ShouldNotPanic)
	})
}
