package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Dispatch-API Metrics
var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dispatch",
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Dispatch outcomes by resolved intent
	DispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "api",
			Name:      "dispatches_total",
			Help:      "Total dispatched commands by intent and outcome",
		},
		[]string{"intent", "outcome"},
	)

	// Invoker attempts per scope/endpoint
	InvokerAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "invoker",
			Name:      "attempts_total",
			Help:      "Total endpoint attempts by outcome",
		},
		[]string{"scope", "endpoint", "outcome"},
	)

	// Circuit breaker transitions
	InvokerBreakerTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "invoker",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker state transitions",
		},
		[]string{"scope", "endpoint", "state"},
	)

	// Gate admissions denied
	InvokerGateRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "invoker",
			Name:      "gate_rejections_total",
			Help:      "Calls skipped because the endpoint concurrency gate was full",
		},
		[]string{"scope", "endpoint"},
	)

	// Endpoint availability as seen by the breaker, exported by the cron
	InvokerEndpointAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "dispatch",
			Subsystem: "invoker",
			Name:      "endpoint_available",
			Help:      "Whether the endpoint circuit is closed (1) or open (0)",
		},
		[]string{"scope", "endpoint"},
	)

	// Device command publishes
	DeviceCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dispatch",
			Subsystem: "api",
			Name:      "device_commands_total",
			Help:      "Total device commands published",
		},
		[]string{"outcome"},
	)
)

// NormalizeEndpoint collapses path parameters so metric cardinality stays
// bounded (e.g. /v1/dispatch/abc123 -> /v1/dispatch/:id).
func NormalizeEndpoint(path string) string {
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if len(part) >= 16 && !strings.Contains(part, ".") {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
