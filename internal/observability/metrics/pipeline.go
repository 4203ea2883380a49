package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics observes the certificate ingestion pipeline: analysis
// sessions, validation warnings, commit outcomes and batch accounting.
type PipelineMetrics struct {
	sessionsTotal   *prometheus.CounterVec
	analyzeDuration *prometheus.HistogramVec
	warningsTotal   *prometheus.CounterVec
	commitsTotal    *prometheus.CounterVec
	batchTasksTotal *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	batchSizes      *prometheus.HistogramVec
	batchesInFlight prometheus.Gauge
}

func newPipelineMetrics(registry *prometheus.Registry) *PipelineMetrics {
	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetcert",
			Subsystem: "pipeline",
			Name:      "sessions_total",
			Help:      "Interactive upload sessions started, by initial state.",
		},
		[]string{"service", "state"},
	)
	analyzeDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleetcert",
			Subsystem: "pipeline",
			Name:      "analyze_duration_seconds",
			Help:      "Extract-and-validate duration per file in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "result"},
	)
	warningsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetcert",
			Subsystem: "pipeline",
			Name:      "warnings_total",
			Help:      "Validation warnings surfaced, by kind.",
		},
		[]string{"service", "kind"},
	)
	commitsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetcert",
			Subsystem: "pipeline",
			Name:      "commits_total",
			Help:      "Commit attempts by outcome code.",
		},
		[]string{"service", "outcome"},
	)
	batchTasksTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetcert",
			Subsystem: "batch",
			Name:      "tasks_total",
			Help:      "Settled batch tasks by final status.",
		},
		[]string{"service", "status"},
	)
	batchDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleetcert",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Wall time of a whole batch run in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"service"},
	)
	batchSizes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fleetcert",
			Subsystem: "batch",
			Name:      "size_files",
			Help:      "Distribution of files per batch.",
			Buckets:   []float64{2, 3, 5, 8, 13, 21, 34},
		},
		[]string{"service"},
	)
	batchesInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fleetcert",
			Subsystem: "batch",
			Name:      "in_flight",
			Help:      "Number of batch runs currently executing.",
		},
	)

	registry.MustRegister(
		sessionsTotal,
		analyzeDuration,
		warningsTotal,
		commitsTotal,
		batchTasksTotal,
		batchDuration,
		batchSizes,
		batchesInFlight,
	)

	return &PipelineMetrics{
		sessionsTotal:   sessionsTotal,
		analyzeDuration: analyzeDuration,
		warningsTotal:   warningsTotal,
		commitsTotal:    commitsTotal,
		batchTasksTotal: batchTasksTotal,
		batchDuration:   batchDuration,
		batchSizes:      batchSizes,
		batchesInFlight: batchesInFlight,
	}
}

func (m *PipelineMetrics) RecordSessionStart(service, state string, duration time.Duration, warningKinds []string) {
	m.sessionsTotal.WithLabelValues(service, state).Inc()
	m.analyzeDuration.WithLabelValues(service, "session").Observe(duration.Seconds())
	for _, kind := range warningKinds {
		m.warningsTotal.WithLabelValues(service, kind).Inc()
	}
}

func (m *PipelineMetrics) RecordAnalyzeFailure(service string, duration time.Duration) {
	m.analyzeDuration.WithLabelValues(service, "failure").Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordCommit(service, outcome string) {
	if outcome == "" {
		outcome = "error"
	}
	m.commitsTotal.WithLabelValues(service, outcome).Inc()
}

func (m *PipelineMetrics) StartBatch(service string, files int) {
	m.batchesInFlight.Inc()
	m.batchSizes.WithLabelValues(service).Observe(float64(files))
}

func (m *PipelineMetrics) FinishBatch(service string, duration time.Duration, taskStatuses []string) {
	m.batchesInFlight.Dec()
	m.batchDuration.WithLabelValues(service).Observe(duration.Seconds())
	for _, status := range taskStatuses {
		m.batchTasksTotal.WithLabelValues(service, status).Inc()
	}
}
