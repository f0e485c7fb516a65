package services

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	toasts    *prometheus.CounterVec
	fallbacks *prometheus.CounterVec
	stale     prometheus.Counter
	reloads   prometheus.Counter
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Subsystem: "ajax",
			Name:      "requests_total",
			Help:      "Total number of dashboard AJAX requests broken down by operation, kind and result.",
		}, []string{"operation", "kind", "result"}),
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "dashboard",
			Subsystem: "ajax",
			Name:      "latency_seconds",
			Help:      "Latency distribution for dashboard AJAX requests.",
			Buckets: []float64{
				0.001, 0.002, 0.005,
				0.01, 0.02, 0.05,
				0.1, 0.2, 0.5,
				1, 2, 5, 10,
			},
		}, []string{"operation", "kind"}),
		toasts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "toasts_total",
			Help:      "Total number of toasts shown, by severity.",
		}, []string{"severity"}),
		fallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "fallbacks_total",
			Help:      "Total number of placeholder fragments rendered after a failed detail load.",
		}, []string{"kind"}),
		stale: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "stale_responses_total",
			Help:      "Completions discarded because a newer action owns the modal container.",
		}),
		reloads: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "dashboard",
			Name:      "reloads_total",
			Help:      "Total number of page reloads performed.",
		}),
	}
})

func observeRequest(operation, kind, result string, took time.Duration) {
	m := metricsSingleton()
	m.requests.WithLabelValues(operation, kind, result).Inc()
	m.latency.WithLabelValues(operation, kind).Observe(took.Seconds())
}
