package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the mailroom pipelines.
type Metrics struct {
	// Item metrics
	ItemsTotal           *prometheus.CounterVec
	ItemErrorsTotal      *prometheus.CounterVec
	ClassificationsTotal *prometheus.CounterVec
	ConfidenceScore      prometheus.Histogram

	// Run metrics
	RunsTotal                *prometheus.CounterVec
	RunSeconds               *prometheus.HistogramVec
	InvariantViolationsTotal prometheus.Counter

	// Collection metrics
	CollectionItems *prometheus.GaugeVec
	BatchesTotal    prometheus.Counter
}

// DefaultMetrics creates metrics registered with the default registerer.
func DefaultMetrics() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}

// NewMetrics creates a new set of metrics registered with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ItemsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_items_total",
				Help: "Items handled by the move executor, by pipeline and outcome",
			},
			[]string{"pipeline", "outcome"},
		),
		ItemErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_item_errors_total",
				Help: "Per-item errors by error code",
			},
			[]string{"pipeline", "code"},
		),
		ClassificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_classifications_total",
				Help: "Classifier results by priority and confidence label",
			},
			[]string{"priority", "label"},
		),
		ConfidenceScore: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailroom_confidence_score",
				Help:    "Distribution of classifier confidence scores",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailroom_runs_total",
				Help: "Pipeline runs by result status",
			},
			[]string{"pipeline", "status"},
		),
		RunSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailroom_run_seconds",
				Help:    "Pipeline run duration",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"pipeline"},
		),
		InvariantViolationsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailroom_invariant_violations_total",
				Help: "Runs aborted because a destination path was not a directory",
			},
		),

		CollectionItems: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mailroom_collection_items",
				Help: "Entries waiting in each COLLECTION area",
			},
			[]string{"area"},
		),
		BatchesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mailroom_batches_total",
				Help: "Collection batches created",
			},
		),
	}
}

// A nil *Metrics is valid and records nothing.

func (m *Metrics) RecordItem(pipeline, outcome string) {
	if m == nil {
		return
	}
	m.ItemsTotal.WithLabelValues(pipeline, outcome).Inc()
}

func (m *Metrics) RecordItemError(pipeline, code string) {
	if m == nil {
		return
	}
	m.ItemErrorsTotal.WithLabelValues(pipeline, code).Inc()
}

func (m *Metrics) RecordClassification(priority, label string, confidence int) {
	if m == nil {
		return
	}
	m.ClassificationsTotal.WithLabelValues(priority, label).Inc()
	m.ConfidenceScore.Observe(float64(confidence))
}

func (m *Metrics) RecordRun(pipeline, status string, seconds float64) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(pipeline, status).Inc()
	m.RunSeconds.WithLabelValues(pipeline).Observe(seconds)
}

func (m *Metrics) RecordInvariantViolation() {
	if m == nil {
		return
	}
	m.InvariantViolationsTotal.Inc()
}

func (m *Metrics) SetCollectionItems(area string, count int) {
	if m == nil {
		return
	}
	m.CollectionItems.WithLabelValues(area).Set(float64(count))
}

func (m *Metrics) RecordBatch() {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
}
