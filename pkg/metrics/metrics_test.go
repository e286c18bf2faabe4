package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then defaults should apply", func() {
				So(manager, ShouldNotBeNil)
				So(manager.namespace, ShouldEqual, "asamblea")
				So(manager.subsystem, ShouldEqual, "participation")
			})
		})

		Convey("When creating with custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithMetricPrefix("pre"),
				WithHistogramBuckets([]float64{1, 5, 10}),
				WithCustomLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.assembliesTotal.Set(3)

			Convey("Then names and labels should include the options", func() {
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				found := false
				for _, f := range families {
					if f.GetName() == "test_unit_pre_assemblies_total" {
						found = true
						So(f.GetMetric()[0].GetLabel()[0].GetValue(), ShouldEqual, "test")
					}
				}
				So(found, ShouldBeTrue)
			})
		})

		Convey("When invalid options are given", func() {
			manager := NewManager(
				WithNamespace(""),
				WithHistogramBuckets(nil),
				WithSubsystem(""),
				WithCustomLabels(nil),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then defaults should be kept", func() {
				So(manager.namespace, ShouldEqual, "asamblea")
				So(manager.histogramBuckets, ShouldResemble, prometheus.DefBuckets)
				So(manager.subsystem, ShouldEqual, "participation")
				So(manager.customLabels, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global metrics manager", t, func() {
		Convey("When recording interventions", func() {
			before := testutil.ToFloat64(globalManager.interventionsRecorded.WithLabelValues("woman", "long-intervention"))
			RecordInterventionRecorded("woman", "long-intervention")
			RecordInterventionRecorded("woman", "long-intervention")

			Convey("Then the labelled counter should grow", func() {
				after := testutil.ToFloat64(globalManager.interventionsRecorded.WithLabelValues("woman", "long-intervention"))
				So(after-before, ShouldEqual, 2)
			})
		})

		Convey("When recording snapshot refreshes", func() {
			stale := testutil.ToFloat64(globalManager.snapshotStale)
			RecordSnapshotStale()
			RecordSnapshotRefresh()
			RecordSnapshotRefreshDuration(1.5)

			Convey("Then the stale counter should grow", func() {
				So(testutil.ToFloat64(globalManager.snapshotStale)-stale, ShouldEqual, 1)
			})
		})

		Convey("When setting gauges", func() {
			UpdateQueueSize(7)
			UpdateQueueCapacity(100)
			UpdateWorkerCount(4)
			UpdateAssembliesTotal(12)
			UpdateRepositoryRecords("memory", "interventions", 42)

			Convey("Then gauges should hold the last value", func() {
				So(testutil.ToFloat64(globalManager.queueSize), ShouldEqual, 7)
				So(testutil.ToFloat64(globalManager.queueCapacity), ShouldEqual, 100)
				So(testutil.ToFloat64(globalManager.workerCount), ShouldEqual, 4)
				So(testutil.ToFloat64(globalManager.assembliesTotal), ShouldEqual, 12)
				So(testutil.ToFloat64(globalManager.repositoryRecords.WithLabelValues("memory", "interventions")), ShouldEqual, 42)
			})
		})

		Convey("When recording the remaining metrics", func() {
			Convey("Then nothing should panic", func() {
				So(func() {
					RecordInterventionRemoved("man", "interruption")
					RecordInterventionDuplicate()
					RecordAttendanceUpdate("upsert")
					RecordPeopleImported(3)
					RecordImportRowsRejected(1)
					RecordExport("people")
					RecordHTTPRequest("/stats", "GET", "200")
					RecordHTTPRequestDuration("/stats", "GET", "200", 2)
					RecordRepositoryLatency("sqlite", "add_intervention", 0.4)
					UpdateQueueUtilization(7)
					RecordQueueEnqueue()
					RecordQueueDequeue()
					RecordQueueEnqueueError()
					RecordQueueProcessingLatency(1)
					UpdateWorkerActiveCount(1)
					RecordWorkerProcessingLatency(1)
					RecordWorkerError()
					RecordErrorByComponent("api", "bad_request")
					RecordErrorByEndpoint("/people", "POST", "bad_request")
					UpdateSystemMemoryUsage(1024)
					UpdateSystemGoroutineCount(10)
					RecordSystemGCPauseTime(0.1)
				}, ShouldNotPanic)
			})
		})

		Convey("When gathering the registry", func() {
			families, err := GetRegistry().Gather()

			Convey("Then it should expose the namespace", func() {
				So(err, ShouldBeNil)
				So(len(families), ShouldBeGreaterThan, 0)
				So(families[0].GetName(), ShouldStartWith, "asamblea_participation_")
			})
		})
	})
}
