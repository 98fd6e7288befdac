package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// EntitiesReconciledTotal counts tracked entities by reconciliation
	// outcome: new, changed, unchanged, skipped, pruned.
	EntitiesReconciledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkchecker_entities_reconciled_total",
			Help: "Tracked entities seen by reconciliation, by outcome.",
		},
		[]string{"outcome"},
	)

	LinksExtractedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkchecker_links_extracted_total",
			Help: "Link records written by the extraction pipeline.",
		},
	)

	LinksCheckedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkchecker_links_checked_total",
			Help: "Link checks by resulting status.",
		},
		[]string{"status"},
	)

	LinkCheckDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "linkchecker_link_check_duration_seconds",
			Help:    "Duration of single URL liveness checks.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ChunkDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "linkchecker_chunk_duration_seconds",
			Help:    "Duration of batch chunks, by operation.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120},
		},
		[]string{"operation"},
	)

	StorageErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "linkchecker_storage_errors_total",
			Help: "Storage errors recovered locally, by operation.",
		},
		[]string{"operation"},
	)

	RunProgress = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "linkchecker_run_progress_ratio",
			Help: "Processed / total items of the latest run, by kind.",
		},
		[]string{"kind"},
	)
)

var once sync.Once

// Init registers the collectors with the default registry. Safe to call
// more than once.
func Init() {
	once.Do(func() {
		prometheus.MustRegister(
			HTTPRequestsTotal,
			HTTPRequestDuration,
			EntitiesReconciledTotal,
			LinksExtractedTotal,
			LinksCheckedTotal,
			LinkCheckDuration,
			ChunkDuration,
			StorageErrorsTotal,
			RunProgress,
		)
	})
}
