package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ngguard"

// Metrics collects moderation decisions, failed platform actions and event
// processing latency on a private registry.
type Metrics struct {
	registry  *prometheus.Registry
	decisions *prometheus.CounterVec
	failures  *prometheus.CounterVec
	events    *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Moderation decisions by component and outcome",
			},
			[]string{"component", "outcome"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "action_failures_total",
				Help:      "Platform actions that failed or were denied",
			},
			[]string{"action"},
		),
		events: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "event_duration_seconds",
				Help:      "Time spent processing a dispatched event",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "status"},
		),
	}
	m.registry.MustRegister(
		m.decisions,
		m.failures,
		m.events,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Decision(component, outcome string) {
	m.decisions.WithLabelValues(component, outcome).Inc()
}

func (m *Metrics) ActionFailed(action string) {
	m.failures.WithLabelValues(action).Inc()
}

func (m *Metrics) ObserveEvent(kind string, took time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.events.WithLabelValues(kind, status).Observe(took.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
