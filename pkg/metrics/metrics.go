package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayAttempts counts document fetches per gateway and outcome.
	GatewayAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openforge_gateway_attempts_total",
			Help: "IPFS gateway fetch attempts",
		},
		[]string{"gateway", "outcome"},
	)
	// GatewayLatency is the latency of a single gateway attempt.
	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openforge_gateway_attempt_duration_seconds",
			Help:    "IPFS gateway attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"gateway"},
	)
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openforge_resolve_cache_lookups_total",
			Help: "Resolve cache lookups by result (hit, negative_hit, miss)",
		},
		[]string{"kind", "result"},
	)
	PinOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openforge_pin_operations_total",
			Help: "Pinning API operations by type and status",
		},
		[]string{"operation", "status"},
	)
	ChainCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openforge_chain_calls_total",
			Help: "Registry contract calls by method and outcome",
		},
		[]string{"method", "outcome"},
	)
	// PublishStages counts publish flow stage transitions.
	PublishStages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openforge_publish_stage_total",
			Help: "Publish flow stage outcomes",
		},
		[]string{"flow", "stage", "outcome"},
	)
	Logins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openforge_admin_logins_total",
			Help: "Operator login attempts by result",
		},
		[]string{"result"},
	)
	RequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "openforge_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "openforge_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
