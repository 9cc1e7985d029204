package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksTotal tracks executed tasks by terminal outcome
	TasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_tasks_total",
			Help: "Total number of tasks executed",
		},
		[]string{"outcome"},
	)

	// AttemptsTotal tracks candidate attempts per candidate and result
	AttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_attempts_total",
			Help: "Total number of candidate attempts",
		},
		[]string{"candidate", "result"},
	)

	// FailuresTotal tracks classified failures per candidate
	FailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_failures_total",
			Help: "Total number of classified candidate failures",
		},
		[]string{"candidate", "kind"},
	)

	// AttemptLatency tracks upstream attempt latency
	AttemptLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "router_attempt_latency_seconds",
			Help:    "Candidate attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"candidate"},
	)

	// CacheHits tracks response cache hits
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "router_cache_hits_total",
			Help: "Total number of response cache hits",
		},
	)

	// CacheMisses tracks response cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "router_cache_misses_total",
			Help: "Total number of response cache misses",
		},
	)

	// CircuitOpen reports whether a candidate's circuit is currently open
	CircuitOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "router_circuit_open",
			Help: "1 when the candidate is circuit-open, 0 otherwise",
		},
		[]string{"candidate"},
	)

	// TokensUsed tracks upstream token consumption per candidate
	TokensUsed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "router_tokens_used_total",
			Help: "Total tokens consumed per candidate",
		},
		[]string{"candidate"},
	)
)
