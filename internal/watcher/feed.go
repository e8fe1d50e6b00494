package watcher

import (
	"context"
	"time"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// Feed bridges the price queue into the scanner's tick channel.
type Feed struct {
	store store.Store
	out   chan<- models.Tick
}

func NewFeed(st store.Store, out chan<- models.Tick) *Feed {
	return &Feed{store: st, out: out}
}

func (f *Feed) Name() string { return "price-feed" }

func (f *Feed) Run(ctx context.Context) error {
	for {
		raw, err := f.store.BLPop(ctx, store.KeyPriceQueue)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("pop tick: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		tick, err := models.DecodeTick(raw)
		if err != nil {
			logger.Warn("tick: %v", err)
			continue
		}
		select {
		case f.out <- tick:
		case <-ctx.Done():
			return nil
		}
	}
}
