package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics for the game room host.
//
// Naming convention: namespace_subsystem_name
// - namespace: game_host (application-level grouping)
// - subsystem: websocket, room, machine, registry (feature-level grouping)
// - name: specific metric (connections_active, events_total, etc.)
//
// Metric Types:
// - Gauge: Current state (connections, rooms, players)
// - Counter: Cumulative events (events dispatched, actions executed, errors)
// - Histogram: Latency distributions (dispatch time)

var (
	// ActiveWebSocketConnections tracks the current number of active WebSocket connections (Gauge - current state)
	ActiveWebSocketConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "game_host",
		Subsystem: "websocket",
		Name:      "connections_active",
		Help:      "Current number of active WebSocket connections",
	})

	// ActiveRooms tracks the current number of active rooms (Gauge - current state)
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "game_host",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomPlayers tracks the number of players in each room (GaugeVec with room_id label)
	RoomPlayers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_host",
		Subsystem: "room",
		Name:      "players_count",
		Help:      "Number of players in each room",
	}, []string{"room_id"})

	// EventsDispatched tracks statechart events dispatched per type and outcome (CounterVec - cumulative)
	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "machine",
		Name:      "events_total",
		Help:      "Total statechart events dispatched",
	}, []string{"event_type", "status"})

	// ActionsExecuted tracks action runtime executions per action name and outcome (CounterVec)
	ActionsExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "machine",
		Name:      "actions_total",
		Help:      "Total actions executed by the action runtime",
	}, []string{"action", "status"})

	// ScheduledBatches tracks scheduled action batches per outcome (CounterVec)
	ScheduledBatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "machine",
		Name:      "scheduled_batches_total",
		Help:      "Total scheduled action batches by outcome",
	}, []string{"status"})

	// EventDispatchDuration tracks the time spent handling one inbound event (HistogramVec - latency distribution)
	EventDispatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "game_host",
		Subsystem: "machine",
		Name:      "event_dispatch_seconds",
		Help:      "Time spent dispatching statechart events",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
	}, []string{"event_type"})

	// DefinitionLoads tracks definition loads per source and outcome (CounterVec)
	DefinitionLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "registry",
		Name:      "definition_loads_total",
		Help:      "Total game definition loads by source and status",
	}, []string{"source", "status"})

	// CircuitBreakerState tracks the current state of a circuit breaker (GaugeVec)
	// 0: Closed (Healthy), 1: Open (Failure), 2: Half-Open (Recovering)
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "game_host",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the circuit breaker (0: Closed, 1: Open, 2: Half-Open)",
	}, []string{"service"})

	// CircuitBreakerFailures tracks the total number of requests rejected by a circuit breaker
	CircuitBreakerFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "circuit_breaker",
		Name:      "failures_total",
		Help:      "Total requests rejected by the circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded tracks the total number of requests that exceeded the rate limit
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total number of requests that exceeded the rate limit",
	}, []string{"endpoint", "reason"})

	// RateLimitRequests tracks the total number of requests checked against the rate limiter
	RateLimitRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "rate_limit",
		Name:      "requests_total",
		Help:      "Total number of requests checked against the rate limiter",
	}, []string{"endpoint"})

	// RedisOperationsTotal tracks the total number of Redis bus operations (CounterVec)
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "game_host",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total number of Redis operations",
	}, []string{"operation", "status"})
)

func IncConnection() {
	ActiveWebSocketConnections.Inc()
}

func DecConnection() {
	ActiveWebSocketConnections.Dec()
}
