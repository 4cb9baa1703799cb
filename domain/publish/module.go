// Package publish delivers downloaded episodes to the chat backend.
//
// A poll worker finds episodes without recorded media, downloads them
// through the media package and hands the files to an upload queue. The
// queue runs one goroutine per (work, translation) pair so episodes of
// the same release arrive in the chat strictly in episode order, while
// different releases upload concurrently.
package publish

import (
	"context"

	"go.uber.org/fx"
)

// Module provides publish dependencies
var Module = fx.Module("publish",
	fx.Provide(
		NewConfig,
		NewQueue,
		NewWorker,
	),
	fx.Invoke(RegisterWorkerLifecycle),
)

// RegisterWorkerLifecycle starts the publish worker on application start
// and shuts the pipeline down in order: first the worker stops feeding,
// then the queue drains in-flight uploads.
func RegisterWorkerLifecycle(lc fx.Lifecycle, worker *Worker, queue *Queue, cfg *Config) {
	if !cfg.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return worker.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			if err := worker.Stop(ctx); err != nil {
				return err
			}
			queue.Shutdown(cfg.ShutdownTimeout)
			return nil
		},
	})
}
