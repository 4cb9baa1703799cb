package ingest

import (
	"time"

	"github.com/anivault/anivault/internal/config"
)

// Config holds delta-sync settings for the ingest domain
type Config struct {
	// Enabled starts the delta-sync worker
	Enabled bool
	// SyncInterval is the tick interval between delta pulls
	SyncInterval time.Duration
	// Lookback is the default delta window when no watermark is given
	Lookback time.Duration
	// BatchSize is the number of raw items per ingest transaction
	BatchSize int
	// Concurrency bounds parallel batch ingestion
	Concurrency int
	// PageSize is the catalog page size for delta pulls
	PageSize int
}

// NewConfig creates ingest config from the main application config
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Enabled:      cfg.Ingest.Enabled,
		SyncInterval: cfg.Ingest.SyncInterval(),
		Lookback:     cfg.Ingest.Lookback(),
		BatchSize:    cfg.Ingest.BatchSize,
		Concurrency:  cfg.Ingest.Concurrency,
		PageSize:     cfg.Ingest.PageSize,
	}
}
