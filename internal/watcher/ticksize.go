package watcher

import (
	"context"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/trigger"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// LoadTickSizes builds the per-symbol tick table from market metadata. The
// table is loaded once at startup; workers hold a read-only copy.
func LoadTickSizes(ctx context.Context, st store.Store) (models.TickTable, error) {
	keys, err := st.SMembers(ctx, store.KeyTickSizeKeys)
	if err != nil {
		return nil, errors.Wrap(err, "list tick size keys")
	}

	table := make(models.TickTable, len(keys))
	for _, key := range keys {
		symbol := key
		if idx := strings.IndexByte(key, ':'); idx >= 0 {
			symbol = key[:idx]
		}
		if _, ok := table[symbol]; ok {
			continue
		}

		raw, err := st.HGet(ctx, store.KeyMarketData, symbol)
		if errors.Is(err, store.ErrNotFound) {
			logger.Warn("no market data for %s", symbol)
			continue
		}
		if err != nil {
			return nil, err
		}
		var doc map[string]interface{}
		if err := sonic.UnmarshalString(raw, &doc); err != nil {
			logger.Warn("market data for %s: %v", symbol, err)
			continue
		}
		tick, ok := models.Indicator(doc).Float("tickSize")
		if !ok || tick <= 0 {
			logger.Warn("market data for %s has no usable tickSize", symbol)
			continue
		}
		table[symbol] = models.TickSize{Tick: tick, Length: trigger.DecimalPlaces(tick)}
	}
	logger.Info("loaded tick sizes for %d symbols", len(table))
	return table, nil
}
