package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsOptions(t *testing.T) {
	Convey("Given metrics options", t, func() {
		Convey("When creating options", func() {
			namespaceOpt := WithNamespace("test-namespace")
			subsystemOpt := WithSubsystem("test-subsystem")
			histogramBucketsOpt := WithHistogramBuckets([]float64{0.1, 0.5, 1.0})
			registryOpt := WithPrometheusRegistry(prometheus.NewRegistry())

			Convey("Then they should be valid functions", func() {
				So(namespaceOpt, ShouldNotBeNil)
				So(subsystemOpt, ShouldNotBeNil)
				So(histogramBucketsOpt, ShouldNotBeNil)
				So(registryOpt, ShouldNotBeNil)
			})
		})
	})
}

func TestManagerCreation(t *testing.T) {
	Convey("Given manager creation", t, func() {
		Convey("When creating with default options", func() {
			manager := NewManager(WithPrometheusRegistry(prometheus.NewRegistry()))

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})

		Convey("When creating with custom options", func() {
			manager := NewManager(
				WithNamespace("test-namespace"),
				WithSubsystem("test-subsystem"),
				WithHistogramBuckets([]float64{0.1, 0.5, 1.0}),
				WithPrometheusRegistry(prometheus.NewRegistry()),
			)

			Convey("Then it should be created successfully", func() {
				So(manager, ShouldNotBeNil)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given metrics recording", t, func() {
		Convey("When recording analysis metrics", func() {
			Convey("Then it should record without panicking", func() {
				So(func() {
					RecordAnalysisSubmitted()
					RecordAnalysisCompleted()
					RecordAnalysisDuplicate()
					RecordAnalysisFallback()
					RecordScoringLatency(12.5)
				}, ShouldNotPanic)
			})
		})

		Convey("When recording oracle metrics", func() {
			So(func() {
				RecordOracleRequest()
				RecordOracleError()
				RecordOracleLatency(250)
			}, ShouldNotPanic)
		})

		Convey("When recording queue metrics", func() {
			So(func() {
				RecordQueueEnqueue()
				RecordQueueDequeue()
				RecordQueueEnqueueError()
				UpdateQueueSize(5)
				UpdateQueueCapacity(100)
				UpdateQueueUtilization(0.05)
			}, ShouldNotPanic)
		})

		Convey("When recording worker metrics", func() {
			So(func() {
				UpdateWorkerCount(4)
				RecordWorkerError()
				RecordWorkerProcessingLatency(3.2)
			}, ShouldNotPanic)
		})

		Convey("When recording store and retention metrics", func() {
			So(func() {
				UpdateStoreRecords(42)
				RecordStoreError()
				RecordRetentionRecordsDeleted(3)
				RecordRetentionRecordingsDeleted(2)
				RecordRetentionSweepDuration(0.8)
			}, ShouldNotPanic)
		})

		Convey("When recording HTTP metrics", func() {
			So(func() {
				RecordHTTPRequest("analyses", "GET", "200")
				RecordHTTPRequestDuration("analyses", "GET", "200", 12.0)
				RecordErrorByComponent("http", "client_error")
			}, ShouldNotPanic)
		})
	})
}

func TestGetRegistry(t *testing.T) {
	Convey("Given the global registry", t, func() {
		registry := GetRegistry()

		Convey("Then it should gather the registered metric families", func() {
			So(registry, ShouldNotBeNil)
			families, err := registry.Gather()
			So(err, ShouldBeNil)
			So(len(families), ShouldBeGreaterThan, 0)
		})
	})
}
