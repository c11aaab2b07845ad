package sync

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts engine activity.
type Metrics struct {
	saves     *prometheus.CounterVec
	mutations *prometheus.CounterVec
}

// NewMetrics builds the engine counters and registers them with reg when it
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "horizon_sync_saves_total",
			Help: "Remote saves attempted, by category and result.",
		}, []string{"category", "result"}),
		mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "horizon_sync_mutations_total",
			Help: "Store mutations observed, by category.",
		}, []string{"category"}),
	}
	if reg != nil {
		reg.MustRegister(m.saves, m.mutations)
	}
	return m
}
