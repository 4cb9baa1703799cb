// Package main provides the standalone episode upload worker.
//
// It drains the publish queue (download, remux, Telegram upload, media row
// bookkeeping) without the HTTP surface. Useful when uploads need their own
// machine with disk and bandwidth to spare.
package main

import (
	"log/slog"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/anivault/anivault/domain/catalog"
	"github.com/anivault/anivault/domain/media"
	"github.com/anivault/anivault/domain/publish"
	"github.com/anivault/anivault/domain/telegram"
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

		// The downloader resolves playlists through the catalog client
		catalog.Module,

		// Repository only; no HTTP routes in this binary
		fx.Provide(works.NewRepository),

		// Media pipeline
		media.Module,
		telegram.Module,
		publish.Module,
	).Run()
}
