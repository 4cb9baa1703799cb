// Package metrics defines the Prometheus instruments for the ingest and
// publish pipelines. Instruments are registered on the default registry and
// exposed by the server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog client metrics
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anivault_catalog_requests_total",
		Help: "Total catalog API requests by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	CatalogRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "anivault_catalog_request_duration_seconds",
		Help:    "Catalog API request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	CatalogRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anivault_catalog_rate_limited_total",
		Help: "Total 429 responses observed from the catalog API",
	})

	// Ingest pipeline metrics
	IngestBundles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anivault_ingest_bundles_total",
		Help: "Total normalized bundles processed by outcome (ingested, skipped, failed)",
	}, []string{"outcome"})

	IngestEpisodes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anivault_ingest_episodes_total",
		Help: "Total episode rows upserted",
	})

	IngestBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anivault_ingest_batch_duration_seconds",
		Help:    "Wall time spent committing one ingest batch",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	SyncTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anivault_sync_ticks_total",
		Help: "Delta-sync tick outcomes",
	}, []string{"outcome"})

	// Download metrics
	Downloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anivault_downloads_total",
		Help: "Episode download attempts by outcome code",
	}, []string{"outcome"})

	DownloadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anivault_download_duration_seconds",
		Help:    "Wall time of one ffmpeg remux",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	DownloadBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "anivault_download_bytes_total",
		Help: "Total bytes written by successful downloads",
	})

	// Publish pipeline metrics
	PublishTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "anivault_publish_tasks_total",
		Help: "Publish task outcomes (completed, failed, discarded)",
	}, []string{"outcome"})

	PublishQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anivault_publish_queue_depth",
		Help: "Tasks currently waiting across all per-pair queues",
	})

	PublishWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anivault_publish_active_workers",
		Help: "Live per-pair publisher goroutines",
	})

	UploadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "anivault_upload_duration_seconds",
		Help:    "Wall time of one send_video call",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	// Storage metrics
	TempDirBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anivault_temp_dir_bytes",
		Help: "Bytes currently occupied by the download staging directory",
	})

	DiskFreeBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "anivault_disk_free_bytes",
		Help: "Free bytes on the filesystem backing the staging directory",
	})
)
