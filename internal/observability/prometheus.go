package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	orderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopmate_order_transitions_total",
		Help: "Order status transitions by source and destination status.",
	}, []string{"from", "to", "role"})

	transitionRejections = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopmate_order_transition_rejections_total",
		Help: "Rejected transition attempts by reason.",
	}, []string{"reason"})

	notificationsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shopmate_notifications_emitted_total",
		Help: "Realtime notifications by event and outcome.",
	}, []string{"event", "outcome"})

	realtimeConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shopmate_realtime_connections",
		Help: "Open realtime websocket connections.",
	})

	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "shopmate_circuit_breaker_state",
		Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open.",
	}, []string{"name"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "shopmate_http_request_duration_seconds",
		Help:    "HTTP request latency by route and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)

func RecordTransition(from, to, role string) {
	orderTransitions.WithLabelValues(from, to, role).Inc()
}

func RecordTransitionRejected(reason string) {
	transitionRejections.WithLabelValues(reason).Inc()
}

func RecordNotification(event, outcome string) {
	notificationsEmitted.WithLabelValues(event, outcome).Inc()
}

func RealtimeConnectionOpened() {
	realtimeConnections.Inc()
}

func RealtimeConnectionClosed() {
	realtimeConnections.Dec()
}

func SetBreakerState(name string, value float64) {
	breakerState.WithLabelValues(name).Set(value)
}

func ObserveHTTPRequest(route, method, status string, seconds float64) {
	httpRequestDuration.WithLabelValues(route, method, status).Observe(seconds)
}
