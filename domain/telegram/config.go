package telegram

import (
	"time"

	"github.com/anivault/anivault/internal/config"
)

// Config holds chat-backend connection settings
type Config struct {
	// APIURL is a Bot-API-compatible endpoint; a local server lifts the
	// hosted 50MB upload cap
	APIURL string
	// Token is the session credential used for uploads
	Token string
	// UploadChatID is the publish destination; "me" is the session's
	// saved-messages pseudo-chat
	UploadChatID string
	// ProxyURL optionally routes traffic (socks5:// or http://)
	ProxyURL string
	// Timeout bounds one request including the upload body
	Timeout time.Duration
}

// NewConfig creates chat-backend configuration from the app config
func NewConfig(cfg *config.Config) *Config {
	return &Config{
		APIURL:       cfg.Telegram.APIURL,
		Token:        cfg.Telegram.Token,
		UploadChatID: cfg.Telegram.UploadChatID,
		ProxyURL:     cfg.Telegram.ProxyURL,
		Timeout:      cfg.Telegram.Timeout,
	}
}
