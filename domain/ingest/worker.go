package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/anivault/anivault/domain/catalog"
	"github.com/anivault/anivault/internal/metrics"
	"github.com/anivault/anivault/pkg/logger"
)

// ErrWorkerStopped is returned by TriggerNow when the worker isn't running.
var ErrWorkerStopped = errors.New("delta sync worker is not running")

// DeltaSource pulls catalog items updated since a watermark.
type DeltaSource interface {
	FetchDelta(ctx context.Context, since time.Time, pageSize, maxPages int) ([]catalog.Item, error)
}

// ItemIngestor persists batches of raw feed items.
type ItemIngestor interface {
	IngestItems(ctx context.Context, items []catalog.Item, continueOnError bool) (*IngestStats, error)
}

// SyncStats tracks cumulative delta-sync progress since worker start.
type SyncStats struct {
	StartedAt     time.Time  `json:"startedAt"`
	LastSyncAt    *time.Time `json:"lastSyncAt,omitempty"`
	TotalFetched  int64      `json:"totalFetched"`
	TotalImported int64      `json:"totalImported"`
	TotalFailed   int64      `json:"totalFailed"`
	FailedBatches int64      `json:"failedBatches"`
	RunsCompleted int64      `json:"runsCompleted"`
	RunsFailed    int64      `json:"runsFailed"`
}

// SyncResult is the outcome of one sync pass.
type SyncResult struct {
	Fetched       int         `json:"fetched"`
	Batches       int         `json:"batches"`
	FailedBatches int         `json:"failedBatches"`
	Stats         IngestStats `json:"stats"`
}

// Worker periodically pulls the catalog delta feed and ingests it.
// It polls on SyncInterval, syncing once at startup, and accepts manual
// trigger requests from the admin API.
type Worker struct {
	client    DeltaSource
	service   ItemIngestor
	cfg       *Config
	log       *slog.Logger
	stopCh    chan struct{}
	stoppedCh chan struct{}
	triggerCh chan struct{}
	running   bool
	mu        sync.Mutex
	wg        sync.WaitGroup

	// Metrics
	stats     SyncStats
	metricsMu sync.RWMutex
}

// NewWorker creates a new delta sync worker
func NewWorker(client *catalog.Client, service *Service, cfg *Config, log *slog.Logger) *Worker {
	return newWorker(client, service, cfg, log)
}

func newWorker(client DeltaSource, service ItemIngestor, cfg *Config, log *slog.Logger) *Worker {
	return &Worker{
		client:  client,
		service: service,
		cfg:     cfg,
		log:     log.With(logger.Scope("ingest.worker")),
	}
}

// Start begins the worker's sync loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	if !w.cfg.Enabled {
		w.log.Info("delta sync worker not started (DELTA_SYNC_ENABLED=false)")
		w.mu.Unlock()
		return nil
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	w.triggerCh = make(chan struct{}, 1)
	w.mu.Unlock()

	w.metricsMu.Lock()
	w.stats = SyncStats{StartedAt: time.Now().UTC()}
	w.metricsMu.Unlock()

	w.log.Info("delta sync worker starting",
		slog.Duration("sync_interval", w.cfg.SyncInterval),
		slog.Duration("lookback", w.cfg.Lookback),
		slog.Int("batch_size", w.cfg.BatchSize),
		slog.Int("concurrency", w.cfg.Concurrency))

	w.wg.Add(1)
	// The start context is scoped to startup; the loop's lifetime is
	// governed by stopCh.
	go w.run(context.WithoutCancel(ctx))

	return nil
}

// Stop gracefully stops the worker, waiting for the current sync to finish
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.log.Debug("waiting for delta sync worker to stop...")

	select {
	case <-w.stoppedCh:
		w.log.Info("delta sync worker stopped gracefully")
	case <-ctx.Done():
		w.log.Warn("delta sync worker stop timeout, forcing shutdown")
	}

	return nil
}

// TriggerNow requests an immediate sync pass. Returns ErrWorkerStopped when
// the worker isn't running; a pass already being scheduled is not an error.
func (w *Worker) TriggerNow() error {
	w.mu.Lock()
	running := w.running
	trigger := w.triggerCh
	w.mu.Unlock()

	if !running {
		return ErrWorkerStopped
	}
	select {
	case trigger <- struct{}{}:
	default:
		// A trigger is already pending
	}
	return nil
}

// run is the main worker loop. A full pass runs immediately on start, then
// on every tick or manual trigger.
func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.stoppedCh)

	w.syncPass(ctx)

	ticker := time.NewTicker(w.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.syncPass(ctx)
		case <-w.triggerCh:
			w.syncPass(ctx)
		}
	}
}

// syncPass runs one sync and folds the outcome into the stats mirror.
func (w *Worker) syncPass(ctx context.Context) {
	result, err := w.Sync(ctx, nil)

	w.metricsMu.Lock()
	now := time.Now().UTC()
	w.stats.LastSyncAt = &now
	if err != nil {
		w.stats.RunsFailed++
	} else {
		w.stats.RunsCompleted++
		w.stats.TotalFetched += int64(result.Fetched)
		w.stats.TotalImported += int64(result.Stats.Successful)
		w.stats.TotalFailed += int64(result.Stats.Failed)
		w.stats.FailedBatches += int64(result.FailedBatches)
	}
	w.metricsMu.Unlock()

	if err != nil {
		metrics.SyncTicks.WithLabelValues("error").Inc()
		w.log.Error("delta sync failed", logger.Error(err))
		return
	}
	if result.Fetched == 0 {
		metrics.SyncTicks.WithLabelValues("empty").Inc()
		return
	}
	metrics.SyncTicks.WithLabelValues("success").Inc()
}

// Sync fetches everything updated since the given time (default: now minus
// the lookback window) and ingests it in concurrent batches.
func (w *Worker) Sync(ctx context.Context, updatedSince *time.Time) (*SyncResult, error) {
	since := time.Now().UTC().Add(-w.cfg.Lookback)
	if updatedSince != nil {
		since = *updatedSince
	}

	w.log.Info("starting delta sync", slog.Time("updated_since", since))

	items, err := w.client.FetchDelta(ctx, since, w.cfg.PageSize, 0)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{Fetched: len(items)}
	if len(items) == 0 {
		w.log.Info("no updates", slog.Time("updated_since", since))
		return result, nil
	}

	batches := chunkItems(items, w.cfg.BatchSize)
	result.Batches = len(batches)
	w.log.Info("fetched items for import",
		slog.Int("items", len(items)),
		slog.Int("batches", len(batches)))

	// Bounded fan-out: each batch gets its own transaction, at most
	// Concurrency of them in flight.
	sem := make(chan struct{}, max(w.cfg.Concurrency, 1))
	var (
		batchWg sync.WaitGroup
		statsMu sync.Mutex
	)

	for i, batch := range batches {
		batchWg.Add(1)
		sem <- struct{}{}
		go func(index int, batch []catalog.Item) {
			defer batchWg.Done()
			defer func() { <-sem }()

			stats, err := w.service.IngestItems(ctx, batch, true)

			statsMu.Lock()
			defer statsMu.Unlock()
			if err != nil {
				result.FailedBatches++
				w.log.Error("batch ingest failed",
					slog.Int("batch", index),
					logger.Error(err))
			}
			if stats != nil {
				result.Stats.TotalProcessed += stats.TotalProcessed
				result.Stats.Successful += stats.Successful
				result.Stats.Failed += stats.Failed
				result.Stats.Errors = append(result.Stats.Errors, stats.Errors...)
			}
		}(i, batch)
	}
	batchWg.Wait()

	w.log.Info("delta sync complete",
		slog.Int("imported", result.Stats.Successful),
		slog.Int("failed", result.Stats.Failed),
		slog.Int("batches", result.Batches),
		slog.Int("failed_batches", result.FailedBatches))
	return result, nil
}

// Stats returns a copy of the cumulative sync stats
func (w *Worker) Stats() SyncStats {
	w.metricsMu.RLock()
	defer w.metricsMu.RUnlock()
	return w.stats
}

// IsRunning returns whether the worker is currently running
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// chunkItems splits items into slices of at most size elements.
func chunkItems(items []catalog.Item, size int) [][]catalog.Item {
	if size <= 0 {
		size = len(items)
	}
	var batches [][]catalog.Item
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		batches = append(batches, items[start:end])
	}
	return batches
}
