package metrics

import (
	"fmt"

	"github.com/bitrise-steplib/steps-junit-reporter/junit"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	MetricsNamespace = "junit_reporter"
)

// Recorder collects the outcome of a single run into its own registry.
type Recorder struct {
	runID    string
	registry *prometheus.Registry

	testcasesTotal   *prometheus.CounterVec
	testcaseDuration *prometheus.CounterVec
	runFailed        *prometheus.GaugeVec
	runDuration      *prometheus.GaugeVec
}

// NewRecorder ...
func NewRecorder(runID string) *Recorder {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Recorder{
		runID:    runID,
		registry: registry,

		testcasesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "testcases_total",
			Help:      "Number of recorded testcases by status",
		}, []string{
			"run_id",
			"status",
		}),
		testcaseDuration: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "testcase_duration_seconds_total",
			Help:      "Summed duration of recorded testcases by status",
		}, []string{
			"run_id",
			"status",
		}),
		runFailed: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_failed",
			Help:      "1 if any testcase of the run failed, 0 otherwise",
		}, []string{
			"run_id",
		}),
		runDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Total duration of the run as reported by the test runner",
		}, []string{
			"run_id",
		}),
	}
}

// Record is called for every testcase appended to the report.
func (r *Recorder) Record(testcase junit.Testcase) {
	status := string(testcase.Status)
	r.testcasesTotal.WithLabelValues(r.runID, status).Inc()
	r.testcaseDuration.WithLabelValues(r.runID, status).Add(float64(testcase.Time))
}

// RecordRun ...
func (r *Recorder) RecordRun(report junit.Report, failed bool) {
	value := 0.0
	if failed {
		value = 1
	}
	r.runFailed.WithLabelValues(r.runID).Set(value)
	r.runDuration.WithLabelValues(r.runID).Set(float64(report.Time))
}

// Gatherer ...
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteToTextfile writes the metrics in the text exposition format, the way the node exporter textfile collector reads them.
func (r *Recorder) WriteToTextfile(pth string) error {
	if err := prometheus.WriteToTextfile(pth, r.Gatherer()); err != nil {
		return fmt.Errorf("failed to write metrics to (%s): %w", pth, err)
	}
	return nil
}
