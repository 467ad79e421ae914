// Package metrics defines and registers all custom Prometheus metrics for the
// authstack services. It is the single source of truth for metric names,
// labels, and help strings; the gateway exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "authstack"

// ── RPC client metrics (gateway side) ─────────────────────────────────────────

// RPCClientRequestsTotal counts completed Send calls.
// Labels:
//   - pattern: the logical operation (e.g. "auth.login")
//   - outcome: "ok", "remote_error", "timeout", or "connection"
var RPCClientRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_client_requests_total",
		Help:      "Total number of RPC calls issued by the gateway, by outcome.",
	},
	[]string{"pattern", "outcome"},
)

// RPCClientRequestDuration measures the latency of a Send call from write to
// resolution (response, timeout, or connection failure).
var RPCClientRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_client_request_duration_seconds",
		Help:      "Duration of gateway RPC calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"pattern"},
)

// RPCClientPending tracks calls currently awaiting a correlated response.
var RPCClientPending = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rpc_client_pending_calls",
		Help:      "Number of in-flight RPC calls awaiting a response.",
	},
)

// ── RPC server metrics (authd side) ───────────────────────────────────────────

// RPCServerRequestsTotal counts dispatched frames.
// Labels:
//   - pattern: the requested operation ("unknown" for unroutable frames)
//   - outcome: "ok" or "error"
var RPCServerRequestsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "rpc_server_requests_total",
		Help:      "Total number of RPC frames dispatched by authd, by outcome.",
	},
	[]string{"pattern", "outcome"},
)

// RPCServerRequestDuration measures handler execution time per pattern.
var RPCServerRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "rpc_server_request_duration_seconds",
		Help:      "Duration of authd handler execution from decode to reply.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"pattern"},
)
