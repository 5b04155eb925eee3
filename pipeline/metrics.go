package pipeline

import "github.com/prometheus/client_golang/prometheus"

// Metrics exposes Prometheus collectors for the scheduler: stage latency,
// retry counts, frontier depth, and inflight parallel branches. A Runner
// with no Metrics configured simply skips instrumentation.
type Metrics struct {
	StageDuration     *prometheus.HistogramVec
	StageRetries      *prometheus.CounterVec
	FrontierDepth     prometheus.Gauge
	ParallelInflight  prometheus.Gauge
}

// NewMetrics creates and registers a Metrics set against reg. Pass
// prometheus.DefaultRegisterer to use the global registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage handler execution duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"node_type", "outcome"}),
		StageRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pipeline",
			Name:      "stage_retries_total",
			Help:      "Total number of STAGE_RETRYING events emitted.",
		}, []string{"node_id"}),
		FrontierDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pipeline",
			Name:      "frontier_depth",
			Help:      "Current number of entries in the scheduler's frontier.",
		}),
		ParallelInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pipeline",
			Name:      "parallel_branches_inflight",
			Help:      "Number of parallel branches currently executing.",
		}),
	}
	reg.MustRegister(m.StageDuration, m.StageRetries, m.FrontierDepth, m.ParallelInflight)
	return m
}

func (m *Metrics) observeStage(nodeType string, status Status, seconds float64) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(nodeType, string(status)).Observe(seconds)
}

func (m *Metrics) incRetry(nodeID string) {
	if m == nil {
		return
	}
	m.StageRetries.WithLabelValues(nodeID).Inc()
}

func (m *Metrics) setFrontierDepth(n int) {
	if m == nil {
		return
	}
	m.FrontierDepth.Set(float64(n))
}

func (m *Metrics) incParallelInflight() {
	if m == nil {
		return
	}
	m.ParallelInflight.Inc()
}

func (m *Metrics) decParallelInflight() {
	if m == nil {
		return
	}
	m.ParallelInflight.Dec()
}
