package sweeper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records sweep run outcomes.
type Metrics struct {
	duration prometheus.Histogram
	success  prometheus.Counter
	failure  prometheus.Counter
	released prometheus.Counter
}

// NewMetrics registers sweep metrics on the provided registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_sweep_duration_seconds",
		Help:    "Duration of stale-order sweep runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	success := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_sweep_success_total",
		Help: "Successful stale-order sweep runs.",
	})
	failure := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_sweep_failure_total",
		Help: "Failed stale-order sweep runs.",
	})
	released := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_sweep_released_total",
		Help: "Orders cancelled by the sweep with their stock returned.",
	})
	reg.MustRegister(duration, success, failure, released)
	return &Metrics{
		duration: duration,
		success:  success,
		failure:  failure,
		released: released,
	}
}

// ObserveDuration records how long a sweep run took.
func (m *Metrics) ObserveDuration(duration time.Duration) {
	if m == nil || m.duration == nil {
		return
	}
	m.duration.Observe(duration.Seconds())
}

// IncSuccess increments the success counter.
func (m *Metrics) IncSuccess() {
	if m == nil || m.success == nil {
		return
	}
	m.success.Inc()
}

// IncFailure increments the failure counter.
func (m *Metrics) IncFailure() {
	if m == nil || m.failure == nil {
		return
	}
	m.failure.Inc()
}

// AddReleased records the number of orders released by a run.
func (m *Metrics) AddReleased(count int) {
	if m == nil || m.released == nil || count <= 0 {
		return
	}
	m.released.Add(float64(count))
}
