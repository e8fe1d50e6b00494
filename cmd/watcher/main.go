package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/audit"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/modules/config"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/modules/storage"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/notify"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/watcher"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatalf("init logger: %v", err)
	}

	app := fx.New(
		fx.Provide(
			func() context.Context { return context.Background() },
			newNotifier,
			newRecorder,
		),
		config.Module(),
		storage.Module(),
		watcher.Module(),
		fx.Invoke(setupTracing),
	)
	app.Run()
}

func newNotifier(cfg *config.Config) notify.Notifier {
	if cfg.Telegram.Token != "" && cfg.Telegram.ChatID != 0 {
		tg, err := notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID)
		if err == nil {
			return tg
		}
		logger.Error("telegram notifier unavailable, falling back to stdout: %v", err)
	}
	return notify.NewStdout()
}

func newRecorder(ctx context.Context, cfg *config.Config, lc fx.Lifecycle) (audit.Recorder, error) {
	if cfg.Audit.DSN == "" {
		return audit.Nop{}, nil
	}
	pg, err := audit.NewPg(ctx, cfg.Audit.DSN)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pg.Close()
			return nil
		},
	})
	return pg, nil
}

func setupTracing(cfg *config.Config, lc fx.Lifecycle) error {
	logger.SetServiceName(cfg.Service)
	if !cfg.Tracing.Enabled {
		return nil
	}
	tracing.SetServiceName(cfg.Service)
	_, closeTracer, err := tracing.InitTracer(tracing.Config{
		Host: cfg.Tracing.Host,
		Port: cfg.Tracing.Port,
	})
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			return nil
		},
	})
	return nil
}
