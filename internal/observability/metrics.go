package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TripsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voom", Name: "trips_created_total", Help: "Trips started from a previewed fare"})
	TripsCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voom", Name: "trips_completed_total", Help: "Trips that reached completion"})
	TripsCancelled = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "voom", Name: "trips_cancelled_total", Help: "Trips cancelled, by reason"},
		[]string{"reason"})
	MatchAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voom", Name: "match_attempts_total", Help: "Driver offers dispatched"})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "voom", Name: "match_latency_seconds", Help: "Time from request to driver acceptance",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10)})
	StaleTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voom", Name: "stale_transitions_total", Help: "Race-loser trip events ignored"})
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "voom", Name: "ws_connections_active", Help: "Live websocket sessions"})
	MessagesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "voom", Name: "ws_messages_dropped_total", Help: "Outbound messages dropped on queue overflow"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "voom", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "voom",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
