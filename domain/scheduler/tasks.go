package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/anivault/anivault/domain/ingest"
	"github.com/anivault/anivault/domain/media"
	"github.com/anivault/anivault/pkg/logger"
)

// TempSweepTask removes orphaned download artifacts from the media temp dir.
// A crashed upload or a failed remux can leave a finished file behind; the
// sweep reclaims the disk before the free-space guard starts rejecting work.
type TempSweepTask struct {
	downloader *media.Downloader
	maxAge     time.Duration
	log        *slog.Logger
}

// NewTempSweepTask creates a new temp sweep task
func NewTempSweepTask(downloader *media.Downloader, maxAge time.Duration, log *slog.Logger) *TempSweepTask {
	return &TempSweepTask{
		downloader: downloader,
		maxAge:     maxAge,
		log:        log.With(logger.Scope("scheduler.temp_sweep")),
	}
}

// Run executes the temp sweep
func (t *TempSweepTask) Run(ctx context.Context) error {
	start := time.Now()
	t.log.Debug("sweeping media temp dir")

	removed, err := t.downloader.SweepTemp(t.maxAge)
	if err != nil {
		t.log.Error("temp sweep failed", logger.Error(err))
		return err
	}

	if removed > 0 {
		t.log.Info("swept orphaned downloads",
			slog.Int("removed", removed),
			slog.Duration("duration", time.Since(start)))
	} else {
		t.log.Debug("no orphaned downloads to sweep",
			slog.Duration("duration", time.Since(start)))
	}
	return nil
}

// DeepSyncTask re-ingests everything updated inside a wide lookback window.
// The regular delta ticks miss items when the service was down or the
// upstream published late; the nightly pass catches those up.
type DeepSyncTask struct {
	worker   *ingest.Worker
	lookback time.Duration
	log      *slog.Logger
}

// NewDeepSyncTask creates a new deep sync task
func NewDeepSyncTask(worker *ingest.Worker, lookback time.Duration, log *slog.Logger) *DeepSyncTask {
	return &DeepSyncTask{
		worker:   worker,
		lookback: lookback,
		log:      log.With(logger.Scope("scheduler.deep_sync")),
	}
}

// Run executes the catch-up resync
func (t *DeepSyncTask) Run(ctx context.Context) error {
	start := time.Now()
	since := time.Now().UTC().Add(-t.lookback)

	result, err := t.worker.Sync(ctx, &since)
	if err != nil {
		t.log.Error("deep sync failed", logger.Error(err))
		return err
	}

	t.log.Info("deep sync completed",
		slog.Int("fetched", result.Fetched),
		slog.Int("imported", result.Stats.Successful),
		slog.Int("failed", result.Stats.Failed),
		slog.Duration("duration", time.Since(start)))
	return nil
}
