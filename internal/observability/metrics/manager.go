package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ManagerMetrics instruments provider attempts made by the orchestrator. The
// registry is private so that independently configured orchestrators in one
// process never collide.
type ManagerMetrics struct {
	registry *prometheus.Registry

	attemptsTotal    *prometheus.CounterVec
	attemptDuration  *prometheus.HistogramVec
	attemptsInFlight prometheus.Gauge
	costTotal        *prometheus.CounterVec
	fallbackTotal    prometheus.Counter
}

func NewManagerMetrics() *ManagerMetrics {
	registry := prometheus.NewRegistry()

	attemptsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrkit",
			Subsystem: "manager",
			Name:      "attempts_total",
			Help:      "Total provider extraction attempts by provider and status.",
		},
		[]string{"provider", "status"},
	)
	attemptDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ocrkit",
			Subsystem: "manager",
			Name:      "attempt_duration_seconds",
			Help:      "Provider extraction duration in seconds by provider and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "status"},
	)
	attemptsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ocrkit",
			Subsystem: "manager",
			Name:      "attempts_in_flight",
			Help:      "Number of in-flight provider extraction calls.",
		},
	)
	costTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ocrkit",
			Subsystem: "manager",
			Name:      "cost_usd_total",
			Help:      "Accumulated billed cost in USD by provider.",
		},
		[]string{"provider"},
	)
	fallbackTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ocrkit",
			Subsystem: "manager",
			Name:      "fallback_total",
			Help:      "Number of requests answered by a fallback provider.",
		},
	)

	registry.MustRegister(attemptsTotal, attemptDuration, attemptsInFlight, costTotal, fallbackTotal)

	return &ManagerMetrics{
		registry:         registry,
		attemptsTotal:    attemptsTotal,
		attemptDuration:  attemptDuration,
		attemptsInFlight: attemptsInFlight,
		costTotal:        costTotal,
		fallbackTotal:    fallbackTotal,
	}
}

func (m *ManagerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *ManagerMetrics) StartAttempt() {
	m.attemptsInFlight.Inc()
}

func (m *ManagerMetrics) FinishAttempt(provider string, duration time.Duration, success bool, cost float64) {
	m.attemptsInFlight.Dec()

	status := "success"
	if !success {
		status = "error"
	}

	m.attemptsTotal.WithLabelValues(provider, status).Inc()
	m.attemptDuration.WithLabelValues(provider, status).Observe(duration.Seconds())
	if cost > 0 {
		m.costTotal.WithLabelValues(provider).Add(cost)
	}
}

func (m *ManagerMetrics) ObserveFallback() {
	m.fallbackTotal.Inc()
}
