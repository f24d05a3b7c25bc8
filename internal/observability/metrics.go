package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce             sync.Once
	httpRequestsTotal        *prometheus.CounterVec
	httpLatencySeconds       *prometheus.HistogramVec
	httpErrorsTotal          *prometheus.CounterVec
	peerClaimsTotal          *prometheus.CounterVec
	peerClaimRetriesTotal    prometheus.Counter
	workflowTransitionsTotal *prometheus.CounterVec
	workflowConflictsTotal   prometheus.Counter
)

// RegisterMetrics initialises the Prometheus collectors used across the engine.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ora_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ora_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ora_errors_total",
			Help: "Total number of error responses returned by API endpoints.",
		}, []string{"method", "route", "status"})

		peerClaimsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ora_peer_claims_total",
			Help: "Peer target claims by outcome (claimed, empty, conflict).",
		}, []string{"outcome"})

		peerClaimRetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ora_peer_claim_retries_total",
			Help: "Peer claim transactions retried after contention.",
		})

		workflowTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ora_workflow_transitions_total",
			Help: "Workflow status transitions by source and target status.",
		}, []string{"from", "to"})

		workflowConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ora_workflow_conflicts_total",
			Help: "Workflow compare-and-set attempts lost to a concurrent update.",
		})

		prometheus.MustRegister(
			httpRequestsTotal,
			httpLatencySeconds,
			httpErrorsTotal,
			peerClaimsTotal,
			peerClaimRetriesTotal,
			workflowTransitionsTotal,
			workflowConflictsTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// PeerClaims exposes the claim outcome counter.
func PeerClaims() *prometheus.CounterVec {
	RegisterMetrics()
	return peerClaimsTotal
}

// PeerClaimRetries exposes the claim retry counter.
func PeerClaimRetries() prometheus.Counter {
	RegisterMetrics()
	return peerClaimRetriesTotal
}

// WorkflowTransitions exposes the transition counter.
func WorkflowTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return workflowTransitionsTotal
}

// WorkflowConflicts exposes the compare-and-set conflict counter.
func WorkflowConflicts() prometheus.Counter {
	RegisterMetrics()
	return workflowConflictsTotal
}
