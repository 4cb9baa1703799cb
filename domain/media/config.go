package media

import (
	"time"

	"github.com/anivault/anivault/internal/config"
)

// Config holds downloader settings
type Config struct {
	// TempDir receives download artifacts until they are published
	TempDir string
	// Timeout is the ffmpeg wall-clock limit per download
	Timeout time.Duration
	// MaxFileSizeMB sizes the free-disk guard (2x this must be free)
	MaxFileSizeMB int
	// MinFileSize rejects truncated or empty outputs
	MinFileSize int64
	// FFmpegPath is the muxer binary name or absolute path
	FFmpegPath string
}

// NewConfig creates downloader configuration from the app config
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		TempDir:       cfg.Media.TempDir,
		Timeout:       cfg.Media.Timeout(),
		MaxFileSizeMB: cfg.Media.MaxFileSizeMB,
		MinFileSize:   cfg.Media.MinFileSizeByte,
		FFmpegPath:    cfg.Media.FFmpegPath,
	}
}
