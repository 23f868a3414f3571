package scheduler

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records trigger and delivery outcomes. A nil *Metrics is a no-op.
type Metrics struct {
	cycles     prometheus.Counter
	dispatched prometheus.Counter
	processed  *prometheus.CounterVec
	duration   prometheus.Histogram
}

// NewMetrics registers the scheduler metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campaign_trigger_cycles_total",
			Help: "Poll cycles run by the scheduled-delivery trigger.",
		}),
		dispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "campaign_schedules_dispatched_total",
			Help: "Due schedules published for processing.",
		}),
		processed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "campaign_schedules_processed_total",
			Help: "Schedules processed, by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "campaign_schedule_duration_seconds",
			Help:    "Time to deliver one scheduled campaign.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.cycles, m.dispatched, m.processed, m.duration)
	return m
}

func (m *Metrics) IncCycle() {
	if m == nil {
		return
	}
	m.cycles.Inc()
}

func (m *Metrics) AddDispatched(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.dispatched.Add(float64(n))
}

// ObserveProcessed satisfies service.ProcessObserver.
func (m *Metrics) ObserveProcessed(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if result == "" {
		result = "unknown"
	}
	m.processed.WithLabelValues(result).Inc()
	m.duration.Observe(elapsed.Seconds())
}
