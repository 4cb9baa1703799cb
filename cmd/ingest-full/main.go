// Package main provides a one-shot full catalog import.
//
// It walks the entire upstream list (not just the recent delta) and upserts
// every item, printing a summary at the end. Run it once to seed an empty
// database, or to rebuild after a schema reset:
//
//	go run ./cmd/ingest-full -page-size 100 -batch-size 100
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/anivault/anivault/domain/catalog"
	"github.com/anivault/anivault/domain/ingest"
	"github.com/anivault/anivault/domain/works"
	"github.com/anivault/anivault/internal/config"
	"github.com/anivault/anivault/pkg/logger"
)

func main() {
	pageSize := flag.Int("page-size", 100, "catalog page size per request")
	maxPages := flag.Int("max-pages", 0, "stop after this many pages (0 = no limit)")
	batchSize := flag.Int("batch-size", 100, "items per ingest transaction")
	flag.Parse()

	// Load .env files if present (for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	log := logger.NewLogger()

	cfg, err := config.NewConfig(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	// Ctrl-C stops after the batch in flight; the summary still prints.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Database.DSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	catCfg := catalog.NewConfig(cfg)
	client := catalog.NewClient(catCfg, catalog.NewPacer(catCfg), log)
	service := ingest.NewService(works.NewRepository(db, log), log)

	start := time.Now()
	log.Info("fetching full catalog list",
		slog.Int("page_size", *pageSize),
		slog.Int("max_pages", *maxPages))

	items, err := client.FetchFullList(ctx, *pageSize, *maxPages)
	if err != nil {
		log.Error("full list fetch failed", logger.Error(err))
		os.Exit(1)
	}
	log.Info("full list fetched",
		slog.Int("items", len(items)),
		slog.Duration("elapsed", time.Since(start)))

	var (
		processed     int
		imported      int
		failed        int
		failedBatches int
		interrupted   bool
	)
	for i := 0; i < len(items); i += *batchSize {
		if ctx.Err() != nil {
			log.Warn("interrupted, stopping before the next batch")
			interrupted = true
			break
		}
		end := min(i+*batchSize, len(items))
		stats, err := service.IngestItems(ctx, items[i:end], true)
		if err != nil {
			failedBatches++
			log.Error("batch failed",
				slog.Int("offset", i),
				slog.Int("size", end-i),
				logger.Error(err))
		}
		if stats != nil {
			processed += stats.TotalProcessed
			imported += stats.Successful
			failed += stats.Failed
		}
	}

	fmt.Println()
	fmt.Println("=== Full Ingest Summary ===")
	fmt.Printf("Fetched:        %d\n", len(items))
	fmt.Printf("Processed:      %d\n", processed)
	fmt.Printf("Imported:       %d\n", imported)
	fmt.Printf("Failed items:   %d\n", failed)
	fmt.Printf("Failed batches: %d\n", failedBatches)
	fmt.Printf("Elapsed:        %s\n", time.Since(start).Round(time.Second))
	if interrupted {
		fmt.Println("Status:         interrupted")
	}
	fmt.Println("===========================")

	if failedBatches > 0 {
		os.Exit(1)
	}
}
