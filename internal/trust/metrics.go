package trust

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rhizhq/rhiz/internal/scoring"
)

// Metrics are the Prometheus series exported by trust recomputation.
type Metrics struct {
	Recomputes *prometheus.CounterVec
	Duration   prometheus.Histogram
	Tiers      *prometheus.GaugeVec
	LastRun    prometheus.Gauge
}

// NewMetrics registers the trust metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Recomputes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rhiz_trust_recomputes_total",
			Help: "Trust recomputations by result",
		}, []string{"result"}), // ok, error

		Duration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rhiz_trust_recompute_duration_seconds",
			Help:    "Duration of a full trust recompute run",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}),

		Tiers: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rhiz_contacts_by_tier",
			Help: "Number of contacts currently in each trust tier",
		}, []string{"tier"}),

		LastRun: f.NewGauge(prometheus.GaugeOpts{
			Name: "rhiz_trust_last_recompute_timestamp_seconds",
			Help: "Unix time of the last completed recompute run",
		}),
	}
}

func (m *Metrics) observe(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Recomputes.WithLabelValues("error").Inc()
		return
	}
	m.Recomputes.WithLabelValues("ok").Inc()
}

func (m *Metrics) setTiers(counts map[scoring.Tier]int) {
	if m == nil {
		return
	}
	for _, t := range scoring.Tiers {
		m.Tiers.WithLabelValues(string(t)).Set(float64(counts[t]))
	}
}
