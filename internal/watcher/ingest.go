package watcher

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// Ingest consumes the new-order queue. On startup it first re-registers
// every persisted watch order, so a restarted process rebuilds buckets and
// schedules before touching fresh input.
type Ingest struct {
	store   store.Store
	reg     *Registrar
	retrier *Retrier
}

func NewIngest(st store.Store, reg *Registrar, retrier *Retrier) *Ingest {
	return &Ingest{store: st, reg: reg, retrier: retrier}
}

func (i *Ingest) Name() string { return "order-ingest" }

func (i *Ingest) Run(ctx context.Context) error {
	if err := i.bootstrap(ctx); err != nil {
		return err
	}
	for {
		id, err := i.store.BLPop(ctx, store.KeyNewOrderQueue)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("pop new order: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		i.handle(ctx, id)
	}
}

func (i *Ingest) bootstrap(ctx context.Context) error {
	all, err := i.store.HGetAll(ctx, store.KeyWatchOrders)
	if err != nil {
		return errors.Wrap(err, "load persisted watch orders")
	}
	for id, raw := range all {
		wo, err := models.DecodeWatchOrder(raw)
		if err != nil {
			logger.Warn("persisted watch order %s: %v", id, err)
			continue
		}
		if err := i.reg.Reregister(ctx, wo); err != nil {
			logger.Error("re-register %s: %v", id, err)
		}
	}
	logger.Info("re-registered %d watch orders", len(all))
	return nil
}

func (i *Ingest) handle(ctx context.Context, id string) {
	raw, err := i.store.HGet(ctx, store.KeyOrderDetail, id)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("order %s has no detail record", id)
		return
	}
	if err != nil {
		logger.Error("load order %s: %v", id, err)
		return
	}
	o, err := models.DecodeOrder(raw)
	if err != nil {
		logger.Warn("order %s: %v", id, err)
		return
	}
	if err := i.retrier.Do(ctx, "register order "+id, func() error {
		return i.reg.Register(ctx, o)
	}); err != nil {
		logger.Error("register order %s: %v", id, err)
	}
}
