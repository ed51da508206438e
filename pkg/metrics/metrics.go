package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthorizationsIssued counts authorize calls by resource kind (file|git) and result (new|extended).
	AuthorizationsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibefs_authorizations_issued_total",
			Help: "Total number of authorizations minted or extended",
		},
		[]string{"kind", "result"},
	)

	// AuthorizationsRevoked counts successful revocations by resource kind.
	AuthorizationsRevoked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibefs_authorizations_revoked_total",
			Help: "Total number of revoked authorizations",
		},
		[]string{"kind"},
	)

	// ActiveAuthorizations tracks unexpired authorizations per kind, refreshed by the sweep.
	ActiveAuthorizations = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "vibefs_active_authorizations",
			Help: "Number of unexpired authorizations",
		},
		[]string{"kind"},
	)

	// ResourceRequests counts resource lookups by kind and outcome (valid|expired|not_found|gone|error).
	ResourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibefs_resource_requests_total",
			Help: "Total number of resource requests by outcome",
		},
		[]string{"kind", "outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vibefs_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
