package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics definitions
var (
	IndexedEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rubyindex_entries",
		Help: "Number of entries held by the live index.",
	})

	IndexedFiles = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rubyindex_files",
		Help: "Number of files with entries or a cache key in the live index.",
	})

	ProducerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rubyindex_producer_seconds",
		Help:    "Time spent turning one file into entries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"language"})

	ProducerIssuesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rubyindex_producer_issues_total",
		Help: "Total number of non-fatal producer issues.",
	}, []string{"severity"})

	CacheDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rubyindex_cache_seconds",
		Help:    "Time spent on cache operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	CacheCorruptTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rubyindex_cache_corrupt_total",
		Help: "Total number of cache blobs rejected as corrupt.",
	})

	CacheFilesReusedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rubyindex_cache_files_reused_total",
		Help: "Total number of files restored from the cache without re-running a producer.",
	})

	WriteQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "rubyindex_write_queue_depth",
		Help: "Current number of produced batches waiting for the index writer.",
	})

	QueriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rubyindex_queries_total",
		Help: "Total number of index queries by kind.",
	}, []string{"kind"})

	WatcherEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rubyindex_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// Operation labels for CacheDuration.
const (
	CacheLoad   = "load"
	CacheImport = "import"
	CacheExport = "export"
	CacheSave   = "save"
)
