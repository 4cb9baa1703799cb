// Package catalog implements the client side of the upstream anime catalog
// API: a shared token-bucket pacer, paginated list fetches, delta fetches by
// update time, and per-episode playlist resolution.
package catalog

import (
	"go.uber.org/fx"
)

// Module provides the catalog client and its shared rate limiter
var Module = fx.Module("catalog",
	fx.Provide(
		NewConfig,
		NewPacer,
		NewClient,
	),
)
