package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	. "github.com/smartystreets/goconvey/convey"
)

// valueOf reads the current value of a counter or gauge.
func valueOf(m prometheus.Metric) float64 {
	var out dto.Metric
	So(m.Write(&out), ShouldBeNil)
	if c := out.GetCounter(); c != nil {
		return c.GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.assignmentsDeleted.Inc()

			Convey("Then metrics are registered under the custom names and labels", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := make(map[string]bool, len(families))
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_assignments_deleted_total"], ShouldBeTrue)
				So(valueOf(manager.assignmentsDeleted), ShouldEqual, 1)
			})
		})

		Convey("When two managers share a registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording assignment activity", func() {
			before := valueOf(globalManager.assignmentsCreated.WithLabelValues("reward"))
			RecordAssignmentsCreated("reward", 3)
			RecordAssignmentDeleted()
			RecordRejected("validation")

			Convey("Then the counters move", func() {
				So(valueOf(globalManager.assignmentsCreated.WithLabelValues("reward")), ShouldEqual, before+3)
				So(valueOf(globalManager.rejected.WithLabelValues("validation")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When updating dataset gauges", func() {
			UpdateTotalPersons(4)
			UpdateTotalActions("punishment", 2)
			UpdateTotalAssignments(9)

			Convey("Then the gauges hold the latest values", func() {
				So(valueOf(globalManager.totalPersons), ShouldEqual, 4)
				So(valueOf(globalManager.totalActions.WithLabelValues("punishment")), ShouldEqual, 2)
				So(valueOf(globalManager.totalAssignments), ShouldEqual, 9)
			})
		})

		Convey("When recording latencies and system stats", func() {
			So(func() {
				RecordScoreQueryDuration("total", 1.5)
				RecordHTTPRequest("/scores/total", "GET", "200")
				RecordHTTPRequestDuration("/scores/total", "GET", "200", 2.5)
				UpdateSystemMemoryUsage(1 << 20)
				UpdateSystemGoroutineCount(12)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
