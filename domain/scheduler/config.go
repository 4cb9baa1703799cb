package scheduler

import (
	"time"

	"github.com/anivault/anivault/internal/config"
)

// Config holds scheduler settings
type Config struct {
	// Enabled controls whether the scheduler runs
	Enabled bool

	// TempSweepInterval is how often the media temp dir is swept for
	// orphaned downloads
	TempSweepInterval time.Duration

	// TempSweepMaxAge is the age past which a temp file counts as orphaned
	TempSweepMaxAge time.Duration

	// DeepSyncSchedule is an optional cron expression for the catch-up
	// resync (seconds-precision cron; empty disables the task)
	DeepSyncSchedule string

	// DeepSyncLookback is the delta window covered by the catch-up resync
	DeepSyncLookback time.Duration
}

// NewConfig creates scheduler config from the main application config
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Enabled:           cfg.Scheduler.Enabled,
		TempSweepInterval: cfg.Scheduler.TempSweepInterval,
		TempSweepMaxAge:   cfg.Scheduler.TempSweepMaxAge,
		DeepSyncSchedule:  cfg.Scheduler.DeepSyncSchedule,
		DeepSyncLookback:  cfg.Scheduler.DeepSyncLookback,
	}
}
