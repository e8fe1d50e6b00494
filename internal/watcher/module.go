package watcher

import (
	"context"

	"go.uber.org/fx"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/audit"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/feed"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/modules/config"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/notify"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
)

func Module() fx.Option {
	return fx.Module("watcher",
		fx.Provide(
			func(cfg *config.Config) chan models.Tick {
				return make(chan models.Tick, cfg.TickQueueSize)
			},
			func(ctx context.Context, st store.Store) (models.TickTable, error) {
				return LoadTickSizes(ctx, st)
			},
			func(st store.Store, ticks models.TickTable, n notify.Notifier, rec audit.Recorder) *Registrar {
				return NewRegistrar(st, ticks, n, rec)
			},
			func(cfg *config.Config, n notify.Notifier) *Retrier {
				return NewRetrier(cfg.RetryCount, cfg.RetryBackoff, n)
			},
		),
		fx.Invoke(run),
	)
}

func run(
	lc fx.Lifecycle,
	cfg *config.Config,
	st store.Store,
	reg *Registrar,
	retrier *Retrier,
	n notify.Notifier,
	ticks models.TickTable,
	tickCh chan models.Tick,
) {
	workers := []Worker{
		NewFeed(st, tickCh),
		NewIngest(st, reg, retrier),
		NewScanner(st, reg, tickCh),
		NewTimeMonitor(st, reg, cfg.TimeInterval),
		NewTrendline(st, ticks, cfg.TrendlineInterval),
	}
	if cfg.Feed.Enabled {
		workers = append(workers, feed.NewSource(cfg.Feed.URL, cfg.Feed.Symbols, st))
	}
	sup := NewSupervisor(cfg.SupervisorPoll, n, workers...)

	var cancel context.CancelFunc
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			var runCtx context.Context
			runCtx, cancel = context.WithCancel(context.Background())
			go sup.Run(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
