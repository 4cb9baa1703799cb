package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(NewConfig),
)

// Config holds all application configuration
type Config struct {
	// Server settings
	ServerPort    int    `env:"PORT" envDefault:"8080"`
	ServerAddress string `env:"SERVER_ADDRESS" envDefault:"0.0.0.0"`
	Environment   string `env:"GO_ENV" envDefault:"local"`
	Debug         bool   `env:"DEBUG" envDefault:"false"`
	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`

	// AutoMigrate runs pending goose migrations before the app starts
	AutoMigrate bool `env:"AUTO_MIGRATE" envDefault:"true"`

	Database  DatabaseConfig
	Redis     RedisConfig
	Catalog   CatalogConfig
	Telegram  TelegramConfig
	Media     MediaConfig
	Ingest    IngestConfig
	Publish   PublishConfig
	Otel      OtelConfig
	Scheduler SchedulerConfig

	// Server timeouts
	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"120s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
}

// DatabaseConfig holds PostgreSQL connection settings.
// DSN (POSTGRES_DSN) wins when set; otherwise it is assembled from the parts.
type DatabaseConfig struct {
	RawDSN      string        `env:"POSTGRES_DSN" envDefault:""`
	Host        string        `env:"POSTGRES_HOST" envDefault:"localhost"`
	Port        int           `env:"POSTGRES_PORT" envDefault:"5432"`
	User        string        `env:"POSTGRES_USER" envDefault:"anivault"`
	Password    string        `env:"POSTGRES_PASSWORD" envDefault:""`
	Database    string        `env:"POSTGRES_DB" envDefault:"anivault"`
	SSLMode     string        `env:"POSTGRES_SSL_MODE" envDefault:"disable"`
	PoolSize    int           `env:"DB_POOL_SIZE" envDefault:"5"`
	MaxOverflow int           `env:"DB_MAX_OVERFLOW" envDefault:"10"`
	PoolTimeout time.Duration `env:"DB_POOL_TIMEOUT" envDefault:"30s"`
	QueryDebug  bool          `env:"DB_QUERY_DEBUG" envDefault:"false"`
}

// DSN returns the PostgreSQL connection string
func (d *DatabaseConfig) DSN() string {
	if d.RawDSN != "" {
		return d.RawDSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, d.SSLMode,
	)
}

// MaxConns is the pool ceiling: the steady pool plus the overflow allowance.
func (d *DatabaseConfig) MaxConns() int32 {
	return int32(d.PoolSize + d.MaxOverflow)
}

// RedisConfig holds the search-cache settings
type RedisConfig struct {
	// URL is the redis connection URL (redis://[user:pass@]host:port/db)
	URL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	// CacheTTLSec is the search-cache TTL in seconds
	CacheTTLSec int `env:"REDIS_CACHE_TTL" envDefault:"3600"`
	// SearchCacheEnabled toggles the search result cache
	SearchCacheEnabled bool `env:"SEARCH_CACHE_ENABLED" envDefault:"false"`
}

// CacheTTL returns the cache TTL as a Duration
func (r *RedisConfig) CacheTTL() time.Duration {
	return time.Duration(r.CacheTTLSec) * time.Second
}

// CatalogConfig holds the upstream catalog API settings
type CatalogConfig struct {
	// Token authenticates every catalog call
	Token string `env:"KODIK_TOKEN" envDefault:""`
	// BaseURL is the catalog API root
	BaseURL string `env:"KODIK_API_URL" envDefault:"https://kodikapi.com"`
	// RPSLimit caps outbound catalog requests per second
	RPSLimit int `env:"KODIK_RPS_LIMIT" envDefault:"90"`
	// Timeout is the per-request HTTP timeout
	Timeout time.Duration `env:"KODIK_TIMEOUT" envDefault:"30s"`
}

// TelegramConfig holds the chat-backend settings.
// BotToken belongs to the front-end bot and is only recognized here;
// the publish pipeline talks to the backend with the USER_API_* session.
type TelegramConfig struct {
	BotToken string `env:"BOT_TOKEN" envDefault:""`
	// APIURL is a Bot-API-compatible endpoint; point it at a local
	// telegram-bot-api server for >50MB uploads
	APIURL string `env:"USER_API_URL" envDefault:"https://api.telegram.org"`
	Token  string `env:"USER_API_TOKEN" envDefault:""`
	// UploadChatID is the publish destination; "me" targets the session's
	// saved-messages pseudo-chat
	UploadChatID string `env:"UPLOAD_CHAT_ID" envDefault:"me"`
	// ProxyURL optionally routes backend traffic (socks5:// or http://)
	ProxyURL string        `env:"TELEGRAM_PROXY_URL" envDefault:""`
	Timeout  time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"10m"`
}

// MediaConfig holds downloader settings
type MediaConfig struct {
	TempDir         string `env:"TEMP_DIR" envDefault:"/tmp/anivault"`
	TimeoutSeconds  int    `env:"DOWNLOAD_TIMEOUT_SECONDS" envDefault:"600"`
	MaxFileSizeMB   int    `env:"MAX_FILE_SIZE_MB" envDefault:"4000"`
	MinFileSizeByte int64  `env:"MIN_FILE_SIZE_BYTES" envDefault:"102400"`
	FFmpegPath      string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`
}

// Timeout returns the muxer wall-clock timeout as a Duration
func (m *MediaConfig) Timeout() time.Duration {
	return time.Duration(m.TimeoutSeconds) * time.Second
}

// IngestConfig holds delta-sync worker settings
type IngestConfig struct {
	// Enabled starts the delta-sync worker
	Enabled bool `env:"DELTA_SYNC_ENABLED" envDefault:"true"`
	// SyncIntervalHours is the tick interval between delta pulls
	SyncIntervalHours int `env:"SYNC_INTERVAL_HOURS" envDefault:"6"`
	// LookbackHours is the default delta window when none is given
	LookbackHours int `env:"SYNC_LOOKBACK_HOURS" envDefault:"24"`
	// BatchSize is the number of raw items per ingest transaction
	BatchSize int `env:"INGEST_BATCH_SIZE" envDefault:"100"`
	// Concurrency bounds parallel batch ingestion
	Concurrency int `env:"WORKER_CONCURRENCY" envDefault:"3"`
	// PageSize is the catalog page size for delta pulls
	PageSize int `env:"SYNC_PAGE_SIZE" envDefault:"100"`
}

// SyncInterval returns the tick interval as a Duration
func (i *IngestConfig) SyncInterval() time.Duration {
	return time.Duration(i.SyncIntervalHours) * time.Hour
}

// Lookback returns the delta window as a Duration
func (i *IngestConfig) Lookback() time.Duration {
	return time.Duration(i.LookbackHours) * time.Hour
}

// PublishConfig holds publish worker and queue settings
type PublishConfig struct {
	// Enabled starts the publish worker
	Enabled bool `env:"PUBLISH_ENABLED" envDefault:"true"`
	// PollIntervalSec is the unpublished-episode poll interval
	PollIntervalSec int `env:"UPLOAD_POLL_INTERVAL" envDefault:"5"`
	// BatchSize is the number of episodes fetched per poll
	BatchSize int `env:"PUBLISH_BATCH_SIZE" envDefault:"10"`
	// MaxRetries bounds download attempts per episode per poll
	MaxRetries int `env:"DOWNLOAD_MAX_RETRIES" envDefault:"3"`
	// QueueCap bounds each per-pair FIFO
	QueueCap int `env:"PUBLISH_QUEUE_CAP" envDefault:"100"`
	// Quality is the requested source quality (360|480|720|1080)
	Quality int `env:"PUBLISH_QUALITY" envDefault:"720"`
	// ShutdownTimeout bounds the queue drain on stop
	ShutdownTimeout time.Duration `env:"PUBLISH_SHUTDOWN_TIMEOUT" envDefault:"2m"`
}

// PollInterval returns the poll interval as a Duration
func (p *PublishConfig) PollInterval() time.Duration {
	return time.Duration(p.PollIntervalSec) * time.Second
}

// SchedulerConfig holds upkeep-task settings
type SchedulerConfig struct {
	Enabled bool `env:"SCHEDULER_ENABLED" envDefault:"true"`
	// TempSweepInterval is how often orphaned downloads are swept
	TempSweepInterval time.Duration `env:"TEMP_SWEEP_INTERVAL" envDefault:"1h"`
	// TempSweepMaxAge is the age past which a temp file counts as orphaned
	TempSweepMaxAge time.Duration `env:"TEMP_SWEEP_MAX_AGE" envDefault:"24h"`
	// DeepSyncSchedule is a cron expression (with seconds) for a wide
	// catch-up resync; empty disables it
	DeepSyncSchedule string `env:"DEEP_SYNC_SCHEDULE" envDefault:""`
	// DeepSyncLookback is the delta window the catch-up resync covers
	DeepSyncLookback time.Duration `env:"DEEP_SYNC_LOOKBACK" envDefault:"48h"`
}

// NewConfig loads configuration from environment variables
func NewConfig(log *slog.Logger) (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	log.Info("configuration loaded",
		slog.String("environment", cfg.Environment),
		slog.Int("port", cfg.ServerPort),
		slog.String("db_host", cfg.Database.Host),
		slog.String("catalog_url", cfg.Catalog.BaseURL),
		slog.String("upload_chat", cfg.Telegram.UploadChatID),
	)

	return cfg, nil
}
