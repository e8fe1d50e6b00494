// Package storage provides the engine's Store: Redis in normal operation,
// the in-memory implementation in dry-run mode.
package storage

import (
	"context"

	"go.uber.org/fx"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/modules/config"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("storage",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config, lc fx.Lifecycle) (store.Store, error) {
				if cfg.DryRun {
					logger.Info("dry run, using in-memory store")
					return store.NewMemory(), nil
				}
				r := store.NewRedis(store.RedisConfig{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				if err := r.Ping(ctx); err != nil {
					return nil, err
				}
				lc.Append(fx.Hook{
					OnStop: func(context.Context) error { return r.Close() },
				})
				return r, nil
			},
		),
	)
}
