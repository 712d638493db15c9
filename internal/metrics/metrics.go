package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Broadcaster metrics
var (
	// BroadcasterConnectedClients tracks currently connected WebSocket clients
	BroadcasterConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_connected_clients",
			Help: "Number of currently connected WebSocket clients",
		},
	)

	// BroadcasterLoopActive is 1 while the polling loop is running
	BroadcasterLoopActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "broadcaster_loop_active",
			Help: "Whether the broadcast polling loop is running (0 or 1)",
		},
	)

	// BroadcasterCyclesTotal counts completed polling cycles
	BroadcasterCyclesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_cycles_total",
			Help: "Total completed broadcast polling cycles",
		},
	)

	// BroadcasterCycleDuration tracks fetch+fanout duration per cycle
	BroadcasterCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "broadcaster_cycle_duration_seconds",
			Help:    "Broadcast cycle duration (fetch and fan-out, excluding sleep)",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// BroadcasterEvictionsTotal counts clients dropped on delivery failure
	BroadcasterEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_evictions_total",
			Help: "Total clients evicted due to delivery failure or full send buffer",
		},
	)

	// BroadcasterStopTimeoutsTotal counts shutdowns that exceeded the stop timeout
	BroadcasterStopTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcaster_stop_timeouts_total",
			Help: "Total broadcaster shutdowns that exceeded the stop timeout",
		},
	)
)

// Quote source metrics
var (
	// QuoteFetchDuration tracks upstream fetch latency by status
	QuoteFetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_fetch_duration_seconds",
			Help:    "Quote fetch duration in seconds by status",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)

	// QuoteFetchErrorsTotal counts per-symbol fetch failures
	QuoteFetchErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quote_fetch_errors_total",
			Help: "Total per-symbol quote fetch failures",
		},
	)

	// CircuitBreakerState tracks the upstream breaker state (0=closed, 1=half-open, 2=open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"component"},
	)
)

// WebSocket writer metrics
var (
	// WebSocketMessageSendDuration tracks per-connection write latency
	WebSocketMessageSendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "websocket_message_send_duration_seconds",
			Help:    "WebSocket message send duration in seconds",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1},
		},
	)

	// WebSocketPingFailures counts failed keepalive pings
	WebSocketPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_ping_failures_total",
			Help: "Total failed WebSocket keepalive pings",
		},
	)
)

// History metrics
var (
	// HistoryRequestDuration tracks /history handling latency by status
	HistoryRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "history_request_duration_seconds",
			Help:    "History lookup duration in seconds by status",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"status"},
	)

	// HistoryCacheHits counts history lookups served from Redis
	HistoryCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_hits_total",
			Help: "Total history lookups served from the Redis cache",
		},
	)

	// HistoryCacheMisses counts history lookups that went upstream
	HistoryCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_cache_misses_total",
			Help: "Total history lookups that fell through to the provider",
		},
	)
)
