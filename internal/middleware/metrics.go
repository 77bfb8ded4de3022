package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modqueue_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "modqueue_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// TransitionsTotal counts posts moved by a transition, by mode and target status.
	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modqueue_transitions_total",
		Help: "Total number of post status transitions",
	}, []string{"mode", "status"})

	// InvalidTransitions counts transitions rejected for an out-of-domain status.
	InvalidTransitions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "modqueue_invalid_transitions_total",
		Help: "Total number of transitions rejected for an invalid status",
	})

	// UndoTotal counts ledger outcomes: reverted, cleared, expired.
	UndoTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modqueue_undo_total",
		Help: "Total undo ledger outcomes by kind",
	}, []string{"outcome", "action"})

	// ActiveSessions is the number of live review sessions.
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modqueue_active_sessions",
		Help: "Number of live moderation review sessions",
	})

	// ActiveWebSockets is the number of open session event streams.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "modqueue_active_websockets",
		Help: "Number of open session event websocket connections",
	})

	// WebSocketBackpressureDrops counts event messages dropped by reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "modqueue_websocket_backpressure_drops_total",
		Help: "Total number of websocket messages dropped due to backpressure",
	}, []string{"reason"})
)

var (
	promOnce sync.Once
	prom     *fiberprometheus.FiberPrometheus
)

// InitMetrics returns the HTTP metrics collector for the named service. The
// collector registers with the default registry, so it is built once per process.
func InitMetrics(serviceName string) *fiberprometheus.FiberPrometheus {
	promOnce.Do(func() {
		prom = fiberprometheus.New(serviceName)
	})
	return prom
}

// MetricsMiddleware records request metrics, skipping the scrape endpoint itself.
func MetricsMiddleware(fp *fiberprometheus.FiberPrometheus) fiber.Handler {
	handler := fp.Middleware
	return func(c *fiber.Ctx) error {
		if c.Path() == "/metrics" {
			return c.Next()
		}
		return handler(c)
	}
}
