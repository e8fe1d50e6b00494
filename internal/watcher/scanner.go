package watcher

import (
	"context"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// Scanner consumes the tick stream and fires every watch member the price
// crossed since the previous tick of the same symbol.
type Scanner struct {
	store store.Store
	reg   *Registrar
	ticks <-chan models.Tick
	last  map[string]float64
}

func NewScanner(st store.Store, reg *Registrar, ticks <-chan models.Tick) *Scanner {
	return &Scanner{store: st, reg: reg, ticks: ticks}
}

func (s *Scanner) Name() string { return "price-scanner" }

func (s *Scanner) Run(ctx context.Context) error {
	// baselines do not survive a restart; they re-derive from the stream
	s.last = make(map[string]float64)
	for {
		select {
		case <-ctx.Done():
			return nil
		case tick := <-s.ticks:
			if err := s.onTick(ctx, tick); err != nil {
				logger.Error("scan %s@%v: %v", tick.Symbol, tick.Price, err)
			}
		}
	}
}

func (s *Scanner) onTick(ctx context.Context, tick models.Tick) error {
	prev, seen := s.last[tick.Symbol]
	s.last[tick.Symbol] = tick.Price
	if !seen {
		// first observation only records the baseline
		return nil
	}
	if tick.Price < prev {
		return s.scanFalling(ctx, tick.Symbol, tick.Price)
	}
	// a repeated price still rescans: members registered since the last
	// tick may already sit at or past the current price
	return s.scanRising(ctx, tick.Symbol, tick.Price)
}

// scanFalling fires +1 members whose threshold sits at or above the price.
// Each member is cleared together with its trendline row before posting, so
// the recomputer cannot rescore a member that is already firing.
func (s *Scanner) scanFalling(ctx context.Context, symbol string, price float64) error {
	bucket := store.WatchBucket(symbol, 1)
	crossed, err := s.store.ZRangeByScore(ctx, bucket, store.Score(price), "+inf")
	if err != nil {
		return err
	}
	for _, z := range crossed {
		wo, action, ok := s.resolveMember(ctx, z.Member)
		if !ok {
			continue
		}
		if err := s.store.ZRem(ctx, bucket, z.Member); err != nil {
			logger.Error("clear member %s: %v", z.Member, err)
		}
		if err := s.store.HDel(ctx, store.KeyTrendlineQueue, z.Member); err != nil {
			logger.Error("clear trendline row %s: %v", z.Member, err)
		}
		if err := s.reg.Post(ctx, wo, action); err != nil {
			logger.Error("post %s: %v", z.Member, err)
		}
	}
	return nil
}

// scanRising fires -1 members whose threshold sits at or below the price.
// No pre-removal here: the post pipeline's tear-down clears the member.
func (s *Scanner) scanRising(ctx context.Context, symbol string, price float64) error {
	bucket := store.WatchBucket(symbol, -1)
	crossed, err := s.store.ZRangeByScore(ctx, bucket, "-inf", store.Score(price))
	if err != nil {
		return err
	}
	for _, z := range crossed {
		wo, action, ok := s.resolveMember(ctx, z.Member)
		if !ok {
			continue
		}
		if err := s.reg.Post(ctx, wo, action); err != nil {
			logger.Error("post %s: %v", z.Member, err)
		}
	}
	return nil
}

func (s *Scanner) resolveMember(ctx context.Context, member string) (*models.WatchOrder, models.Action, bool) {
	id, action, err := models.SplitMember(member)
	if err != nil {
		logger.Warn("skipping %v", err)
		return nil, "", false
	}
	wo, err := s.reg.loadWatchOrder(ctx, id)
	if err != nil {
		logger.Error("load watch order %s: %v", id, err)
		return nil, "", false
	}
	if wo == nil {
		logger.Warn("watch member %s has no order record", member)
		return nil, "", false
	}
	return wo, action, true
}
