package watcher

import (
	"context"
	"time"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/trigger"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// Trendline periodically recomputes the moving trigger price of every active
// trendline row and rescores its watch member. Rows whose interpolated price
// did not move since the last sweep stage no write at all.
type Trendline struct {
	store    store.Store
	ticks    models.TickTable
	interval time.Duration
	now      func() time.Time
}

func NewTrendline(st store.Store, ticks models.TickTable, interval time.Duration) *Trendline {
	return &Trendline{store: st, ticks: ticks, interval: interval, now: time.Now}
}

func (t *Trendline) Name() string { return "trendline-recomputer" }

func (t *Trendline) Run(ctx context.Context) error {
	for {
		if err := t.Sweep(ctx); err != nil {
			logger.Error("trendline sweep: %v", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(t.interval):
		}
	}
}

type rescore struct {
	member string
	score  float64
	enc    string
}

// Sweep recomputes every queue row once. Updates are grouped per watch
// bucket and each group lands in one atomic batch so the member score and
// the row's published price never diverge.
func (t *Trendline) Sweep(ctx context.Context) error {
	now := trigger.UnixMilli(t.now())
	rows, err := t.store.HGetAll(ctx, store.KeyTrendlineQueue)
	if err != nil {
		return err
	}

	staged := make(map[string][]rescore)
	for member, raw := range rows {
		e, err := models.DecodeTrendlineEntry(raw)
		if err != nil {
			logger.Warn("trendline row %s: %v", member, err)
			continue
		}
		ts, ok := t.ticks[e.Symbol]
		if !ok {
			logger.Warn("trendline row %s references unknown symbol %s", member, e.Symbol)
			continue
		}
		calc, err := trigger.Interpolate(now, e.StartDate, e.EndDate, e.TradingStartPrice, e.TradingEndPrice)
		if err != nil {
			logger.Warn("trendline row %s: %v", member, err)
			continue
		}
		// one tick past the line so the member fires on the cross, not on it
		price := trigger.RoundToTick(calc, ts.Tick, ts.Length) + float64(e.Direction)*ts.Tick
		if price == e.CurrentPrice {
			continue
		}
		e.CurrentPrice = price
		enc, err := e.Encode()
		if err != nil {
			logger.Warn("trendline row %s: %v", member, err)
			continue
		}
		bucket := store.WatchBucket(e.Symbol, e.Direction)
		staged[bucket] = append(staged[bucket], rescore{member: member, score: price, enc: enc})
	}

	for bucket, items := range staged {
		batch := items
		if err := t.store.Atomic(ctx, func(tx store.Tx) error {
			for _, it := range batch {
				tx.ZAdd(bucket, it.member, it.score)
				tx.HSet(store.KeyTrendlineQueue, it.member, it.enc)
			}
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}
