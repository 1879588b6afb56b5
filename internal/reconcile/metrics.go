package reconcile

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts reconciliation outcomes per confirmation channel.
type Metrics struct {
	outcomes *prometheus.CounterVec
}

// NewMetrics registers the reconciliation counters on the provided
// registerer. A nil registerer yields a no-op instance.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_reconciliation_total",
		Help: "Payment reconciliation outcomes by channel.",
	}, []string{"channel", "outcome"})
	reg.MustRegister(outcomes)
	return &Metrics{outcomes: outcomes}
}

func (m *Metrics) Inc(channel, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(channel, outcome).Inc()
}
