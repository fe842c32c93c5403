// Package observability provides Prometheus metrics and HTTP middleware
// for the chorus orchestrator.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LLMBuckets are histogram buckets for model and image latencies, from
// 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

var (
	// RequestsTotal counts HTTP requests by method, route and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_http_requests_total",
			Help: "HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// StreamingConnections tracks open SSE turn streams.
	StreamingConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_streaming_connections_active",
			Help: "Active streaming connections",
		},
	)

	// TurnsTotal counts completed turns by backend and outcome
	// (text, tool, error).
	TurnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_turns_total",
			Help: "Turns by outcome",
		},
		[]string{"backend", "outcome"},
	)

	// TurnDuration records wall time from Begin to Commit.
	TurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_turn_duration_seconds",
			Help:    "Turn duration",
			Buckets: LLMBuckets,
		},
		[]string{"backend"},
	)

	// FragmentsTotal counts fragments handed to render sinks, by kind.
	FragmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_fragments_total",
			Help: "Render fragments emitted",
		},
		[]string{"kind"},
	)

	// ProviderRequestsTotal counts upstream calls by provider, model and
	// outcome (ok or an error kind).
	ProviderRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_provider_requests_total",
			Help: "Provider requests",
		},
		[]string{"provider", "model", "status"},
	)

	// ProviderLatency records upstream latency in seconds. For streams it
	// measures time to the response headers.
	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorus_provider_latency_seconds",
			Help:    "Provider latency",
			Buckets: LLMBuckets,
		},
		[]string{"provider", "model"},
	)

	// ToolExecutionsTotal counts tool executions by name and outcome.
	ToolExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_tool_executions_total",
			Help: "Tool executions",
		},
		[]string{"tool_name", "status"},
	)

	// FanoutSubrequestsTotal counts fan-out sub-requests by tool and outcome.
	FanoutSubrequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorus_fanout_subrequests_total",
			Help: "Fan-out sub-requests",
		},
		[]string{"tool_name", "status"},
	)

	// ConversationsActive tracks conversations held in memory.
	ConversationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chorus_conversations_active",
			Help: "Conversations in memory",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		StreamingConnections,
		TurnsTotal,
		TurnDuration,
		FragmentsTotal,
		ProviderRequestsTotal,
		ProviderLatency,
		ToolExecutionsTotal,
		FanoutSubrequestsTotal,
		ConversationsActive,
	)
}

// ObserveProvider records one upstream call. status is "ok" or the error
// kind of the failure.
func ObserveProvider(provider, model, status string, start time.Time) {
	ProviderRequestsTotal.WithLabelValues(provider, model, status).Inc()
	ProviderLatency.WithLabelValues(provider, model).Observe(time.Since(start).Seconds())
}
