// Package observability provides the Prometheus collectors shared by the request
// scopes, the RPC registry and the HTTP layer.
package observability

import "github.com/prometheus/client_golang/prometheus"

// DBBuckets covers transaction lifetimes from a few milliseconds to the longest
// request timeout we configure.
var DBBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

var (
	// ScopesTotal counts finished request scopes by scope name and outcome
	// (commit, rollback, commit_failed, timeout, aborted, open_failed).
	ScopesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubmedia_txscope_total",
			Help: "Request transaction scopes by outcome",
		},
		[]string{"scope", "outcome"},
	)

	// ScopeDuration records how long request transactions stayed open.
	ScopeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubmedia_txscope_duration_seconds",
			Help:    "Request transaction lifetime",
			Buckets: DBBuckets,
		},
		[]string{"scope"},
	)

	// RPCDispatchTotal counts dispatched RPC envelopes by method and outcome.
	RPCDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubmedia_rpc_dispatch_total",
			Help: "RPC dispatches",
		},
		[]string{"method", "outcome"},
	)

	// RPCDispatchDuration records handler latency for registered methods.
	RPCDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clubmedia_rpc_dispatch_duration_seconds",
			Help:    "RPC handler latency",
			Buckets: DBBuckets,
		},
		[]string{"method"},
	)

	// RPCDroppedTotal counts messages dropped without a reply.
	RPCDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubmedia_rpc_dropped_total",
			Help: "RPC messages dropped without reply",
		},
		[]string{"reason"},
	)

	// HTTPRequestsTotal counts HTTP requests by method, route and status class.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clubmedia_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Register adds every collector to reg.
func Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{
		ScopesTotal,
		ScopeDuration,
		RPCDispatchTotal,
		RPCDispatchDuration,
		RPCDroppedTotal,
		HTTPRequestsTotal,
	} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// StatusClass maps an HTTP status code to "2xx", "4xx" and so on.
func StatusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	case code >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
