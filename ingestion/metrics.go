package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "hnindex"

// metrics holds the run collectors. A nil *metrics records nothing.
type metrics struct {
	runs        *prometheus.CounterVec
	items       *prometheus.CounterVec
	failures    *prometheus.CounterVec
	vectors     prometheus.Counter
	duration    prometheus.Histogram
	lastSuccess prometheus.Gauge
	lastItems   *prometheus.GaugeVec
}

func newMetrics(reg prometheus.Registerer) (m *metrics, err error) {
	// promauto panics on duplicate registration
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = e
				return
			}
			panic(r)
		}
	}()

	factory := promauto.With(reg)
	m = &metrics{
		// Labels: result (success, failure, aborted, cancelled)
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingestion",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by result",
		}, []string{"result"}),

		// Labels: outcome (succeeded, failed)
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingestion",
			Name:      "items_total",
			Help:      "Total number of attempted items by outcome",
		}, []string{"outcome"}),

		// Labels: step (extract, chunk, embed, upsert, mark)
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingestion",
			Name:      "item_failures_total",
			Help:      "Total number of item failures by pipeline step",
		}, []string{"step"}),

		vectors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingestion",
			Name:      "vectors_upserted_total",
			Help:      "Total number of vectors upserted",
		}),

		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingestion",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),

		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingestion",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),

		// Labels: count (candidates, new, attempted, succeeded, skipped, vectors)
		lastItems: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "ingestion",
			Name:      "last_run_items",
			Help:      "Item counts of the most recent run",
		}, []string{"count"}),
	}
	return m, nil
}

func (m *metrics) item(res ItemResult) {
	if m == nil {
		return
	}
	if res.Reached >= StageUpserted {
		m.vectors.Add(float64(res.Vectors))
	}
	if res.Succeeded() {
		m.items.WithLabelValues("succeeded").Inc()
		return
	}
	m.items.WithLabelValues("failed").Inc()
	m.failures.WithLabelValues(res.FailedStep()).Inc()
}

func (m *metrics) observe(s *Summary) {
	if m == nil {
		return
	}

	switch {
	case s.Cancelled:
		m.runs.WithLabelValues("cancelled").Inc()
	case !s.Success:
		m.runs.WithLabelValues("failure").Inc()
	case s.Aborted:
		m.runs.WithLabelValues("aborted").Inc()
	default:
		m.runs.WithLabelValues("success").Inc()
	}

	m.duration.Observe(s.Duration().Seconds())
	if s.Success {
		m.lastSuccess.Set(float64(s.FinishedAt.Unix()))
	}

	m.lastItems.WithLabelValues("candidates").Set(float64(s.Candidates))
	m.lastItems.WithLabelValues("new").Set(float64(s.New))
	m.lastItems.WithLabelValues("attempted").Set(float64(s.Attempted))
	m.lastItems.WithLabelValues("succeeded").Set(float64(s.Succeeded))
	m.lastItems.WithLabelValues("skipped").Set(float64(s.Skipped))
	m.lastItems.WithLabelValues("vectors").Set(float64(s.Vectors))
}
