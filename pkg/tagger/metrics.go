package tagger

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the serving metrics of a Service. A nil *Metrics records
// nothing.
type Metrics struct {
	requests    *prometheus.CounterVec // by outcome: computed, cached, empty, error
	cache       *prometheus.CounterVec // by result: hit, miss, error
	predictions prometheus.Counter
	latency     prometheus.Histogram
	unseen      prometheus.CounterFunc
}

// NewMetrics creates the tagger metrics and registers them with reg.
// unseen, when non-nil, is exported as the count of categorical values that
// fell back to the unknown code.
func NewMetrics(reg prometheus.Registerer, unseen func() float64) (*Metrics, error) {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identag",
			Subsystem: "tagger",
			Name:      "requests_total",
			Help:      "Tag requests by outcome.",
		}, []string{"outcome"}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identag",
			Subsystem: "tagger",
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by result.",
		}, []string{"result"}),
		predictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "identag",
			Subsystem: "tagger",
			Name:      "predictions_total",
			Help:      "Words run through the classifier.",
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "identag",
			Subsystem: "tagger",
			Name:      "tag_duration_seconds",
			Help:      "Tag request latency in seconds.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
	collectors := []prometheus.Collector{m.requests, m.cache, m.predictions, m.latency}
	if unseen != nil {
		m.unseen = prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: "identag",
			Subsystem: "classifier",
			Name:      "unseen_categories_total",
			Help:      "Categorical values mapped to the fallback code.",
		}, unseen)
		collectors = append(collectors, m.unseen)
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) request(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
	m.latency.Observe(d.Seconds())
}

func (m *Metrics) cacheLookup(result string) {
	if m == nil {
		return
	}
	m.cache.WithLabelValues(result).Inc()
}

func (m *Metrics) predicted(n int) {
	if m == nil {
		return
	}
	m.predictions.Add(float64(n))
}
