// Package main provides the schema migration CLI.
//
// Usage:
//
//	go run ./cmd/migrate up
//	go run ./cmd/migrate status
//	go run ./cmd/migrate down
//
// Connection settings come from POSTGRES_DSN or the individual POSTGRES_*
// variables, same as the server.
package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"go.uber.org/zap"

	"github.com/anivault/anivault/internal/migrate"
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	// Load .env files if present (for local development)
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(databaseDSN())))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	m := migrate.NewMigrator(db, logger)
	ctx := context.Background()

	switch cmd := flag.Arg(0); cmd {
	case "up":
		err = m.Up(ctx)
	case "up-to":
		var v int64
		if v, err = versionArg(); err == nil {
			err = m.UpTo(ctx, v)
		}
	case "down":
		err = m.Down(ctx)
	case "status":
		err = m.Status(ctx)
	case "version":
		var v int64
		if v, err = m.Version(ctx); err == nil {
			fmt.Printf("database version: %d\n", v)
		}
	case "mark-applied":
		var v int64
		if v, err = versionArg(); err == nil {
			err = m.MarkApplied(ctx, v)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		logger.Fatal("migration command failed",
			zap.String("command", flag.Arg(0)),
			zap.Error(err))
	}
}

// databaseDSN mirrors the server's connection settings so the CLI and the
// service always target the same database.
func databaseDSN() string {
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		return dsn
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		getEnv("POSTGRES_USER", "anivault"),
		os.Getenv("POSTGRES_PASSWORD"),
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_DB", "anivault"),
		getEnv("POSTGRES_SSL_MODE", "disable"),
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func versionArg() (int64, error) {
	if flag.NArg() < 2 {
		return 0, fmt.Errorf("missing version argument")
	}
	v, err := strconv.ParseInt(flag.Arg(1), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid version %q: %w", flag.Arg(1), err)
	}
	return v, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate <command> [args]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  up                      apply all pending migrations")
	fmt.Fprintln(os.Stderr, "  up-to <version>         apply migrations up to and including <version>")
	fmt.Fprintln(os.Stderr, "  down                    roll back the most recent migration")
	fmt.Fprintln(os.Stderr, "  status                  print per-migration status")
	fmt.Fprintln(os.Stderr, "  version                 print the current database version")
	fmt.Fprintln(os.Stderr, "  mark-applied <version>  record <version> as applied without running it")
}
