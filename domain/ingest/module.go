// Package ingest turns raw catalog feed items into mirrored rows: it
// normalizes the loose upstream records into bundles and writes them in
// savepoint-guarded batches, either on demand or from the periodic
// delta-sync worker.
package ingest

import (
	"context"

	"go.uber.org/fx"
)

// Module provides ingest dependencies via fx
var Module = fx.Module("ingest",
	fx.Provide(
		NewConfig,
		NewService,
		NewWorker,
	),
	fx.Invoke(RegisterWorkerLifecycle),
)

// RegisterWorkerLifecycle registers the delta sync worker with fx lifecycle
func RegisterWorkerLifecycle(lc fx.Lifecycle, worker *Worker, cfg *Config) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return worker.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			return worker.Stop(ctx)
		},
	})
}
