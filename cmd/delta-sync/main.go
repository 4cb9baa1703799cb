// Package main provides the standalone catalog sync worker.
//
// It runs the same periodic delta ingest as the API server but without the
// HTTP surface, so the sync load can be moved off the serving instance.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/anivault/anivault/domain/catalog"
	"github.com/anivault/anivault/domain/ingest"
	"github.com/anivault/anivault/domain/works"
	"github.com/anivault/anivault/internal/config"
	"github.com/anivault/anivault/internal/database"
	"github.com/anivault/anivault/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	fx.New(
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,

		// Upstream catalog client
		catalog.Module,

		// The worker writes through the works repository; the HTTP routes
		// that usually come with works.Module are not wanted here.
		fx.Provide(works.NewRepository),

		// Catalog sync worker
		ingest.Module,
	).Run()
}
