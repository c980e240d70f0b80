package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the feed engine, organized by
// subsystem: upstream fetches, feed retrieval, the paper cache, and the
// persistence store.
type Metrics struct {
	// FetchAttempts counts upstream request attempts, labeled by endpoint.
	FetchAttempts *prometheus.CounterVec

	// FetchFailures counts failed upstream attempts, labeled by endpoint.
	FetchFailures *prometheus.CounterVec

	// FetchesExhausted counts fetches that failed on every endpoint.
	FetchesExhausted prometheus.Counter

	// FetchDuration observes upstream request duration in seconds, labeled by endpoint.
	FetchDuration *prometheus.HistogramVec

	// PapersFetched counts papers returned by successful fetches.
	PapersFetched prometheus.Counter

	// PapersDeduplicated counts papers dropped by fetch-time title dedup.
	PapersDeduplicated prometheus.Counter

	// CacheMerges counts merge operations, labeled by mode (append, replace).
	CacheMerges *prometheus.CounterVec

	// CachePapersAppended counts papers actually appended during merges.
	CachePapersAppended prometheus.Counter

	// CachePrunes counts quota-recovery prune passes, labeled by severity
	// (truncate, drop).
	CachePrunes *prometheus.CounterVec

	// StoreWrites counts persistence writes, labeled by state key.
	StoreWrites *prometheus.CounterVec

	// StoreWriteFailures counts failed persistence writes, labeled by state key.
	StoreWriteFailures *prometheus.CounterVec
}

// NewMetrics creates a Metrics instance registered on the given registerer.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "Total upstream request attempts by endpoint",
		}, []string{"endpoint"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_failures_total",
			Help:      "Total failed upstream attempts by endpoint",
		}, []string{"endpoint"}),
		FetchesExhausted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_exhausted_total",
			Help:      "Total fetches that failed on every configured endpoint",
		}),
		FetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Upstream request duration in seconds by endpoint",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"endpoint"}),
		PapersFetched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_fetched_total",
			Help:      "Total papers returned by successful fetches",
		}),
		PapersDeduplicated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_deduplicated_total",
			Help:      "Total papers dropped by fetch-time title deduplication",
		}),
		CacheMerges: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_merges_total",
			Help:      "Total cache merge operations by mode",
		}, []string{"mode"}),
		CachePapersAppended: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_papers_appended_total",
			Help:      "Total papers appended to cache entries during merges",
		}),
		CachePrunes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_prunes_total",
			Help:      "Total quota-recovery prune passes by severity",
		}, []string{"severity"}),
		StoreWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_writes_total",
			Help:      "Total persistence writes by state key",
		}, []string{"key"}),
		StoreWriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_write_failures_total",
			Help:      "Total failed persistence writes by state key",
		}, []string{"key"}),
	}
}
