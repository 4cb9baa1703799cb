package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anivault/anivault/domain/media"
	"github.com/anivault/anivault/domain/works"
	"github.com/anivault/anivault/pkg/logger"
)

// Pacing for transient download retries within one poll cycle.
const (
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 30 * time.Second
)

// WorkerStats tracks cumulative publish progress since worker start.
type WorkerStats struct {
	StartedAt  time.Time  `json:"startedAt"`
	LastPollAt *time.Time `json:"lastPollAt,omitempty"`
	Processed  int64      `json:"processed"`
	Failed     int64      `json:"failed"`
}

// EpisodeSource lists episodes that still need publishing.
type EpisodeSource interface {
	EpisodesWithoutMedia(ctx context.Context, limit int) ([]*works.Episode, error)
}

// EpisodeDownloader fetches one episode into a local file.
type EpisodeDownloader interface {
	Download(ctx context.Context, req media.Request) (*media.Result, error)
}

// TaskSink accepts upload tasks.
type TaskSink interface {
	Enqueue(task *Task) error
}

// Worker polls for episodes without published media, downloads each one
// and feeds the ordered publish queue. Failures only log and count; the
// episode stays unpublished and comes back on a later poll.
type Worker struct {
	cfg        *Config
	source     EpisodeSource
	downloader EpisodeDownloader
	queue      TaskSink
	log        *slog.Logger

	stopCh    chan struct{}
	stoppedCh chan struct{}
	running   bool
	mu        sync.Mutex
	wg        sync.WaitGroup

	// backoffBase shortens retry sleeps in tests
	backoffBase time.Duration

	// Metrics
	stats     WorkerStats
	metricsMu sync.RWMutex
}

// NewWorker creates a new publish worker
func NewWorker(cfg *Config, repo *works.Repository, downloader *media.Downloader, queue *Queue, log *slog.Logger) *Worker {
	return newWorker(cfg, repo, downloader, queue, log)
}

func newWorker(cfg *Config, source EpisodeSource, downloader EpisodeDownloader, queue TaskSink, log *slog.Logger) *Worker {
	return &Worker{
		cfg:         cfg,
		source:      source,
		downloader:  downloader,
		queue:       queue,
		log:         log.With(logger.Scope("publish.worker")),
		backoffBase: retryBaseDelay,
	}
}

// Start begins the worker's poll loop
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}

	if !w.cfg.Enabled {
		w.log.Info("publish worker not started (PUBLISH_ENABLED=false)")
		w.mu.Unlock()
		return nil
	}

	w.running = true
	w.stopCh = make(chan struct{})
	w.stoppedCh = make(chan struct{})
	w.mu.Unlock()

	w.metricsMu.Lock()
	w.stats = WorkerStats{StartedAt: time.Now().UTC()}
	w.metricsMu.Unlock()

	w.log.Info("publish worker starting",
		slog.Duration("poll_interval", w.cfg.PollInterval),
		slog.Int("batch_size", w.cfg.BatchSize),
		slog.Int("max_retries", w.cfg.MaxRetries),
		slog.Int("quality", w.cfg.Quality))

	w.wg.Add(1)
	// The start context is scoped to startup; the loop's lifetime is
	// governed by stopCh.
	go w.run(context.WithoutCancel(ctx))

	return nil
}

// Stop gracefully stops the worker, waiting for the current poll to finish
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	w.log.Debug("waiting for publish worker to stop...")

	select {
	case <-w.stoppedCh:
		w.log.Info("publish worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("publish worker stop: %w", ctx.Err())
	}
}

// IsRunning reports whether the poll loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Stats returns a snapshot of the worker counters.
func (w *Worker) Stats() WorkerStats {
	w.metricsMu.RLock()
	defer w.metricsMu.RUnlock()
	return w.stats
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	defer close(w.stoppedCh)

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	w.poll(ctx)

	for {
		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Worker) poll(ctx context.Context) {
	now := time.Now().UTC()
	w.metricsMu.Lock()
	w.stats.LastPollAt = &now
	w.metricsMu.Unlock()

	episodes, err := w.source.EpisodesWithoutMedia(ctx, w.cfg.BatchSize)
	if err != nil {
		w.log.Error("failed to list unpublished episodes", logger.Error(err))
		return
	}
	if len(episodes) == 0 {
		w.log.Debug("no episodes to publish")
		return
	}

	w.log.Info("found episodes to publish", slog.Int("count", len(episodes)))

	for _, ep := range episodes {
		select {
		case <-w.stopCh:
			return
		default:
		}
		w.processEpisode(ctx, ep)
	}
}

// processEpisode downloads one episode and enqueues its upload.
func (w *Worker) processEpisode(ctx context.Context, ep *works.Episode) {
	var externalIDs map[string]string
	title := ep.WorkID
	if ep.Work != nil {
		externalIDs = ep.Work.ExternalIDs
		if ep.Work.Title != "" {
			title = ep.Work.Title
		}
	}
	if len(externalIDs) == 0 {
		w.log.Warn("episode has no external ids, skipping", slog.String("episode_id", ep.ID))
		w.recordFailure()
		return
	}

	res, err := w.downloadWithRetry(ctx, media.Request{
		ExternalIDs:   externalIDs,
		TranslationID: ep.TranslationID,
		EpisodeNum:    ep.Number,
		Quality:       w.cfg.Quality,
	})
	if err != nil {
		w.log.Error("failed to download episode",
			slog.String("episode_id", ep.ID),
			logger.Error(err))
		w.recordFailure()
		return
	}

	task := &Task{
		ID:        uuid.New(),
		EpisodeID: ep.ID,
		Pair:      PairKey{WorkID: ep.WorkID, TranslationID: ep.TranslationID},
		Number:    ep.Number,
		Path:      res.Path,
		Caption:   fmt.Sprintf("%s — серия %d", title, ep.Number),
		Quality:   w.cfg.Quality,
		Checksum:  res.Checksum,
		SizeBytes: res.SizeBytes,
		State:     StatePending,
	}

	if err := w.queue.Enqueue(task); err != nil {
		// The file would sit orphaned until the sweeper otherwise
		if rmErr := os.Remove(res.Path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			w.log.Warn("failed to remove unqueued download", slog.String("path", res.Path), logger.Error(rmErr))
		}
		w.log.Warn("could not enqueue upload",
			slog.String("episode_id", ep.ID),
			logger.Error(err))
		w.recordFailure()
		return
	}

	w.recordProcessed()
	w.log.Info("enqueued episode for upload",
		slog.String("episode_id", ep.ID),
		slog.Int64("size_bytes", res.SizeBytes))
}

// downloadWithRetry retries transient download failures with exponential
// backoff. Permanent failures surface immediately.
func (w *Worker) downloadWithRetry(ctx context.Context, req media.Request) (*media.Result, error) {
	attempts := max(w.cfg.MaxRetries, 1)
	delay := w.backoffBase

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		res, err := w.downloader.Download(ctx, req)
		if err == nil {
			return res, nil
		}
		lastErr = err

		var derr *media.DownloadError
		if !errors.As(err, &derr) || !derr.Transient() {
			return nil, err
		}
		if attempt == attempts {
			break
		}

		w.log.Warn("download attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", attempts),
			slog.Duration("delay", delay),
			logger.Error(err))

		select {
		case <-time.After(delay):
		case <-w.stopCh:
			return nil, lastErr
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay = min(delay*2, retryMaxDelay)
	}
	return nil, lastErr
}

func (w *Worker) recordProcessed() {
	w.metricsMu.Lock()
	w.stats.Processed++
	w.metricsMu.Unlock()
}

func (w *Worker) recordFailure() {
	w.metricsMu.Lock()
	w.stats.Failed++
	w.metricsMu.Unlock()
}
