// Package works owns the mirrored catalog entities and their read API:
// works, translations, episodes, and the publication records that say where
// an episode's video lives in the chat backend.
package works

import (
	"context"

	"go.uber.org/fx"
)

// Module provides works dependencies via fx
var Module = fx.Module("works",
	fx.Provide(
		NewRepository,
		NewSearchCache,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
	fx.Invoke(RegisterCacheLifecycle),
)

// RegisterCacheLifecycle closes the Redis connection on shutdown.
func RegisterCacheLifecycle(lc fx.Lifecycle, cache *SearchCache) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return cache.Close()
		},
	})
}
