package metrics

import (
	"github.com/ethereum/go-ethereum/log"
	"github.com/prometheus/client_golang/prometheus"

	opmetrics "github.com/ethereum-optimism/optimism/op-service/metrics"

	"github.com/ethereum-optimism/infra/op-testreport/types"
)

const (
	MetricsNamespace = "testreport"
)

// Error kinds recorded by RecordError
const (
	ErrorKindConfiguration = "configuration"
	ErrorKindExecution     = "execution"
)

var Debug = false

// Metrics records test run outcomes on its own registry
type Metrics struct {
	registry *prometheus.Registry

	runsTotal    *prometheus.CounterVec
	testsTotal   *prometheus.CounterVec
	lastRunTests *prometheus.GaugeVec
	runDuration  prometheus.Histogram
	errorsTotal  *prometheus.CounterVec
}

// New registers the metrics on registry, a fresh registry is created when nil
func New(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = opmetrics.NewRegistry()
	}
	factory := opmetrics.With(registry)

	return &Metrics{
		registry: registry,
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "runs_total",
			Help:      "Count of test runs by outcome",
		}, []string{
			"outcome",
		}),
		testsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "tests_total",
			Help:      "Count of tests by result category",
		}, []string{
			"category",
		}),
		lastRunTests: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: MetricsNamespace,
			Name:      "last_run_tests",
			Help:      "Number of tests per result category in the most recent run",
		}, []string{
			"category",
		}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: MetricsNamespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of test runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: MetricsNamespace,
			Name:      "errors_total",
			Help:      "Count of runs aborted by an error",
		}, []string{
			"kind",
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordRun records the outcome and counts of a completed run
func (m *Metrics) RecordRun(result *types.TestRunResult) {
	if result == nil {
		return
	}
	if Debug {
		log.Debug("metric inc", "m", "runs_total", "run_id", result.RunID, "outcome", result.Outcome)
	}
	m.runsTotal.WithLabelValues(string(result.Outcome)).Inc()
	for _, category := range types.AllEventCategories {
		count := float64(result.Counts.Get(category))
		m.testsTotal.WithLabelValues(string(category)).Add(count)
		m.lastRunTests.WithLabelValues(string(category)).Set(count)
	}
	m.runDuration.Observe(result.Duration.Seconds())
}

// RecordError counts a run aborted by an error of the given kind
func (m *Metrics) RecordError(kind string) {
	if Debug {
		log.Debug("metric inc", "m", "errors_total", "kind", kind)
	}
	m.errorsTotal.WithLabelValues(kind).Inc()
}
