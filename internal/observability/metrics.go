// Package observability provides Prometheus metrics for the agents backend.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// UpstreamRequests counts outbound calls to the external provider by
// endpoint and outcome (ok, upstream_status_error, connectivity_error).
var UpstreamRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentgw_upstream_requests_total",
		Help: "Outbound requests to the external provider API.",
	},
	[]string{"endpoint", "outcome"},
)

// MetadataWriteFailures counts metadata writes that failed after being
// dequeued. Failures are observable here only; they are never surfaced
// to the caller of the primary operation.
var MetadataWriteFailures = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentgw_metadata_write_failures_total",
		Help: "Metadata store writes that failed.",
	},
	[]string{"record"},
)

// MetadataEntriesDropped counts records dropped because the recorder
// buffer was full.
var MetadataEntriesDropped = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "agentgw_metadata_entries_dropped_total",
		Help: "Metadata records dropped due to a full recorder buffer.",
	},
	[]string{"record"},
)
