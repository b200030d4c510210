// Package observability provides Prometheus metrics and HTTP middleware
// for monitoring the ragd service.
package observability

import "github.com/prometheus/client_golang/prometheus"

// LLMBuckets defines histogram buckets suited for LLM inference latencies,
// ranging from 100ms to 120s.
var LLMBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

// RetrievalBuckets defines histogram buckets for local retrieval and
// embedding latencies.
var RetrievalBuckets = []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

var (
	// RequestsTotal counts all HTTP requests by method, route, and status class.
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration records HTTP request duration in seconds by method and route.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragd_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: LLMBuckets,
		},
		[]string{"method", "route"},
	)

	// UpstreamRequestsTotal counts requests sent to the embedding and chat backends.
	UpstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_upstream_requests_total",
			Help: "Upstream backend requests",
		},
		[]string{"backend", "status"},
	)

	// UpstreamLatency records upstream backend latency in seconds.
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ragd_upstream_latency_seconds",
			Help:    "Upstream backend latency",
			Buckets: LLMBuckets,
		},
		[]string{"backend"},
	)

	// TokensTotal counts LLM tokens processed by direction (input/output).
	TokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_llm_tokens_total",
			Help: "LLM token count",
		},
		[]string{"direction"},
	)

	// RetrievalDuration records vector search duration in seconds.
	RetrievalDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragd_retrieval_duration_seconds",
			Help:    "Vector retrieval duration",
			Buckets: RetrievalBuckets,
		},
	)

	// RebuildsTotal counts index rebuilds by outcome.
	RebuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_index_rebuilds_total",
			Help: "Index rebuilds",
		},
		[]string{"status"},
	)

	// RebuildDuration records full index rebuild duration in seconds.
	RebuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ragd_index_rebuild_duration_seconds",
			Help:    "Index rebuild duration",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	// DocumentsIndexed tracks the number of documents in the active index.
	DocumentsIndexed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragd_documents_indexed",
			Help: "Documents in the active index",
		},
	)

	// ChunksIndexed tracks the number of chunks in the active index.
	ChunksIndexed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ragd_chunks_indexed",
			Help: "Chunks in the active index",
		},
	)

	// CacheRequestsTotal counts search-cache lookups by result (hit/miss).
	CacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ragd_cache_requests_total",
			Help: "Search cache lookups",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(
		RequestsTotal,
		RequestDuration,
		UpstreamRequestsTotal,
		UpstreamLatency,
		TokensTotal,
		RetrievalDuration,
		RebuildsTotal,
		RebuildDuration,
		DocumentsIndexed,
		ChunksIndexed,
		CacheRequestsTotal,
	)
}
