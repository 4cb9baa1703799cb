package publish

import (
	"time"

	"github.com/anivault/anivault/internal/config"
)

// Config holds publish worker and queue settings
type Config struct {
	// Enabled starts the publish worker
	Enabled bool
	// PollInterval is the unpublished-episode poll interval
	PollInterval time.Duration
	// BatchSize is the number of episodes fetched per poll
	BatchSize int
	// MaxRetries bounds download attempts per episode per poll
	MaxRetries int
	// QueueCap bounds each per-pair FIFO
	QueueCap int
	// Quality is the requested source quality
	Quality int
	// ShutdownTimeout bounds the queue drain on stop
	ShutdownTimeout time.Duration
	// UploadChatID is the publish destination; "me" is the session's
	// saved-messages pseudo-chat
	UploadChatID string
}

// NewConfig creates publish configuration from the app config
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Enabled:         cfg.Publish.Enabled,
		PollInterval:    cfg.Publish.PollInterval(),
		BatchSize:       cfg.Publish.BatchSize,
		MaxRetries:      cfg.Publish.MaxRetries,
		QueueCap:        cfg.Publish.QueueCap,
		Quality:         cfg.Publish.Quality,
		ShutdownTimeout: cfg.Publish.ShutdownTimeout,
		UploadChatID:    cfg.Telegram.UploadChatID,
	}
}
