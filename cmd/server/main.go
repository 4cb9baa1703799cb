// Package main provides the entry point for the AniVault API server
//
// @title AniVault API
// @version 1.0.0
// @description Anime catalog mirror and episode publishing pipeline
// @host localhost:8080
// @BasePath /
// @schemes http
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/anivault/anivault/domain/catalog"
	"github.com/anivault/anivault/domain/health"
	"github.com/anivault/anivault/domain/ingest"
	"github.com/anivault/anivault/domain/media"
	"github.com/anivault/anivault/domain/publish"
	"github.com/anivault/anivault/domain/scheduler"
	"github.com/anivault/anivault/domain/telegram"
	"github.com/anivault/anivault/domain/tracing"
	"github.com/anivault/anivault/domain/users"
	"github.com/anivault/anivault/domain/works"
	"github.com/anivault/anivault/internal/config"
	"github.com/anivault/anivault/internal/database"
	"github.com/anivault/anivault/internal/server"
	"github.com/anivault/anivault/pkg/logger"
)

func main() {
	// Load .env files if present (for local development)
	// Order matters: .env.local overrides .env
	// Note: Load() won't overwrite existing vars, Overload() will
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local") // Overload ensures local values take precedence

	fx.New(
		// Logging
		fx.WithLogger(func(log *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: log}
		}),

		// Infrastructure modules
		logger.Module,
		config.Module,
		database.Module,
		server.Module,
		tracing.Module,

		// Bring the schema up to date before anything takes traffic
		// (no-op unless AUTO_MIGRATE=true)
		fx.Invoke(database.RunAutoMigrate),

		// Domain modules
		health.Module,
		catalog.Module,
		works.Module,
		users.Module,

		// Media pipeline (download/remux, Telegram transport, publish queue)
		media.Module,
		telegram.Module,
		publish.Module,

		// Catalog sync worker (periodic delta ingest)
		ingest.Module,

		// Scheduler module (cron-based maintenance tasks)
		scheduler.Module,
	).Run()
}
