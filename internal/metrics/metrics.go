package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Reconcile results
const (
	ReconcileMerged  = "merged"
	ReconcileSkipped = "skipped"
	ReconcileFailed  = "failed"
)

var (
	registry = prometheus.NewRegistry()

	turns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Name:      "turns_total",
		Help:      "Turns by kind and terminal state.",
	}, []string{"kind", "state"})

	reconciles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docqa",
		Name:      "reconcile_total",
		Help:      "Reconcile passes by result.",
	}, []string{"result"})

	sessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "docqa",
		Name:      "sessions_active",
		Help:      "Sessions currently held by the gateway.",
	})
)

func init() {
	registry.MustRegister(turns, reconciles, sessions)
}

// ObserveTurn counts a finished turn
func ObserveTurn(kind, state string) {
	turns.WithLabelValues(kind, state).Inc()
}

// ObserveReconcile counts a reconcile pass
func ObserveReconcile(result string) {
	reconciles.WithLabelValues(result).Inc()
}

// SessionOpened increments the live session gauge
func SessionOpened() {
	sessions.Inc()
}

// SessionClosed decrements the live session gauge
func SessionClosed() {
	sessions.Dec()
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests
func Registry() *prometheus.Registry {
	return registry
}
