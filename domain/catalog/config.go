package catalog

import (
	"time"

	"github.com/anivault/anivault/internal/config"
)

// Config contains catalog client configuration
type Config struct {
	// Token authenticates every request; empty targets the public endpoints
	Token string
	// BaseURL is the catalog API root
	BaseURL string
	// RPSLimit caps outbound requests per second
	RPSLimit int
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration
}

// NewConfig creates catalog configuration from the app config
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		Token:    cfg.Catalog.Token,
		BaseURL:  cfg.Catalog.BaseURL,
		RPSLimit: cfg.Catalog.RPSLimit,
		Timeout:  cfg.Catalog.Timeout,
	}
}
