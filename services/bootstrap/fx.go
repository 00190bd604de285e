package bootstrap

import (
	"context"
	"errors"

	"go.uber.org/fx"
)

var Module = fx.Module("bootstrap",
	fx.Provide(
		NewService,
	),
	fx.Invoke(runBootstrap),
)

// runBootstrap seeds the platform after migrations. An incomplete platform
// config is logged and does not stop the process.
func runBootstrap(lc fx.Lifecycle, b *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if _, err := b.Ensure(ctx); err != nil && !errors.Is(err, ErrIncompletePlatform) {
				return err
			}
			return nil
		},
	})
}
