// Package telegram adapts a Bot-API-compatible chat backend for the publish
// pipeline: chat resolution, streamed video uploads and session checks, with
// optional SOCKS5 or HTTP proxying.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.uber.org/fx"

	"github.com/anivault/anivault/pkg/logger"
)

// Module provides the chat-backend client
var Module = fx.Module("telegram",
	fx.Provide(
		NewConfig,
		NewBotAPI,
		func(b *BotAPI) Client { return b },
	),
	fx.Invoke(RegisterClientLifecycle),
)

// RegisterClientLifecycle verifies the session credential at startup so a
// bad token fails the process once instead of failing every upload. An
// unreachable backend is tolerated; uploads retry through the poll cycle.
func RegisterClientLifecycle(lc fx.Lifecycle, client *BotAPI, cfg *Config, log *slog.Logger) {
	log = log.With(logger.Scope("telegram"))

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if cfg.Token == "" {
				log.Warn("chat backend token not configured, uploads will fail until USER_API_TOKEN is set")
				return nil
			}

			me, err := client.GetMe(ctx)
			switch {
			case err == nil:
				log.Info("chat backend session authorized",
					slog.String("username", me.Username),
					slog.Int64("user_id", me.ID))
			case errors.Is(err, ErrUnauthorized):
				return fmt.Errorf("chat backend credential check: %w", err)
			default:
				log.Warn("chat backend unreachable at startup", logger.Error(err))
			}
			return nil
		},
	})
}
