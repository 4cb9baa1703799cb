package scheduler

import (
	"context"
	"log/slog"

	"go.uber.org/fx"

	"github.com/anivault/anivault/domain/ingest"
	"github.com/anivault/anivault/domain/media"
)

// Module provides scheduled task functionality
var Module = fx.Module("scheduler",
	fx.Provide(
		NewConfig,
		NewScheduler,
	),
	fx.Invoke(
		RegisterTasks,
		RegisterSchedulerLifecycle,
	),
)

// TaskParams contains dependencies for creating scheduled tasks
type TaskParams struct {
	fx.In
	Scheduler  *Scheduler
	Downloader *media.Downloader
	SyncWorker *ingest.Worker
	Log        *slog.Logger
	Cfg        *Config
}

// RegisterTasks registers all scheduled tasks
func RegisterTasks(p TaskParams) error {
	if !p.Cfg.Enabled {
		p.Log.Info("scheduler disabled, skipping task registration")
		return nil
	}

	// Register temp sweep task
	sweepTask := NewTempSweepTask(p.Downloader, p.Cfg.TempSweepMaxAge, p.Log)
	if err := p.Scheduler.AddIntervalTask("temp_sweep",
		p.Cfg.TempSweepInterval, sweepTask.Run); err != nil {
		p.Log.Error("failed to register temp sweep task",
			slog.String("error", err.Error()))
	}

	// Register catch-up resync task when a schedule is configured
	if p.Cfg.DeepSyncSchedule != "" {
		deepSyncTask := NewDeepSyncTask(p.SyncWorker, p.Cfg.DeepSyncLookback, p.Log)
		if err := p.Scheduler.AddCronTask("deep_sync",
			p.Cfg.DeepSyncSchedule, deepSyncTask.Run); err != nil {
			p.Log.Error("failed to register deep sync task",
				slog.String("error", err.Error()))
		}
	}

	p.Log.Info("registered scheduled tasks",
		slog.Any("tasks", p.Scheduler.ListTasks()))

	return nil
}

// RegisterSchedulerLifecycle registers the scheduler with fx lifecycle
func RegisterSchedulerLifecycle(lc fx.Lifecycle, scheduler *Scheduler, cfg *Config) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return scheduler.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return scheduler.Stop(ctx)
		},
	})
}
