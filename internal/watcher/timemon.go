package watcher

import (
	"context"
	"time"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/trigger"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// TimeMonitor drives the wall-clock side of trendline orders: it expires
// windows whose end passed and activates windows whose start arrived.
type TimeMonitor struct {
	store    store.Store
	reg      *Registrar
	interval time.Duration
	now      func() time.Time
}

func NewTimeMonitor(st store.Store, reg *Registrar, interval time.Duration) *TimeMonitor {
	return &TimeMonitor{store: st, reg: reg, interval: interval, now: time.Now}
}

func (m *TimeMonitor) Name() string { return "time-monitor" }

func (m *TimeMonitor) Run(ctx context.Context) error {
	for {
		if err := m.Sweep(ctx); err != nil {
			logger.Error("time sweep: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(m.interval):
		}
	}
}

// Sweep checks expiries before activations: a window that both opened and
// closed since the previous sweep must end, never arm.
func (m *TimeMonitor) Sweep(ctx context.Context) error {
	now := store.Score(float64(trigger.UnixMilli(m.now())))

	ends, err := m.store.ZRangeByScore(ctx, store.KeyEndSchedule, "-inf", now)
	if err != nil {
		return err
	}
	for _, z := range ends {
		wo, err := m.reg.loadWatchOrder(ctx, z.Member)
		if err != nil {
			logger.Error("load watch order %s: %v", z.Member, err)
			continue
		}
		if wo == nil {
			logger.Warn("end schedule references unknown order %s", z.Member)
			if err := m.store.ZRem(ctx, store.KeyEndSchedule, z.Member); err != nil {
				logger.Error("drop orphan end schedule %s: %v", z.Member, err)
			}
			continue
		}
		if err := m.reg.Post(ctx, wo, models.ActionEnd); err != nil {
			logger.Error("end order %s: %v", z.Member, err)
		}
	}

	starts, err := m.store.ZRangeByScore(ctx, store.KeyStartSchedule, "-inf", now)
	if err != nil {
		return err
	}
	for _, z := range starts {
		wo, err := m.reg.loadWatchOrder(ctx, z.Member)
		if err != nil {
			// keep the schedule entry so the next sweep retries
			logger.Error("load watch order %s: %v", z.Member, err)
			continue
		}
		if wo == nil {
			logger.Warn("start schedule references unknown order %s", z.Member)
			if err := m.store.ZRem(ctx, store.KeyStartSchedule, z.Member); err != nil {
				logger.Error("drop orphan start schedule %s: %v", z.Member, err)
			}
			continue
		}
		if err := m.reg.Reregister(ctx, wo); err != nil {
			logger.Error("activate order %s: %v", z.Member, err)
			continue
		}
		// consumed only after activation succeeded; a crash between the two
		// re-activates, which preserves the published queue row
		if err := m.store.ZRem(ctx, store.KeyStartSchedule, z.Member); err != nil {
			logger.Error("consume start schedule %s: %v", z.Member, err)
		}
	}
	return nil
}
