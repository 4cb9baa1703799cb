// Package users owns the bot-facing user state in core.*: accounts keyed
// by telegram id, favorites, ratings and watch history.
package users

import (
	"go.uber.org/fx"
)

// Module provides users dependencies via fx
var Module = fx.Module("users",
	fx.Provide(
		NewRepository,
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
