package watcher

import (
	"context"
	"sort"
	"time"

	"github.com/bytedance/sonic"
	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/audit"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/notify"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/resolver"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/trigger"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// Registrar turns resolved order decisions into store state and runs the
// post-order pipeline. All multi-step mutations go through a single atomic
// batch so other workers observe registration and tear-down as a unit.
type Registrar struct {
	store    store.Store
	ticks    models.TickTable
	notifier notify.Notifier
	audit    audit.Recorder
	now      func() time.Time
}

func NewRegistrar(st store.Store, ticks models.TickTable, n notify.Notifier, rec audit.Recorder) *Registrar {
	return &Registrar{store: st, ticks: ticks, notifier: n, audit: rec, now: time.Now}
}

func (r *Registrar) nowMillis() int64 {
	return trigger.UnixMilli(r.now())
}

// Register classifies a raw order document and applies the outcome.
func (r *Registrar) Register(ctx context.Context, o *models.Order) error {
	d := resolver.Resolve(o, r.ticks[o.Symbol])
	switch d.Kind {
	case resolver.Remove:
		return r.RemoveOrder(ctx, o)
	case resolver.Ignore:
		logger.Warn("dropping order %s: %s", o.ID, d.Reason)
		r.notifier.Sendf("watcher: dropped order %s: %s", o.ID, d.Reason)
		return nil
	case resolver.Watch:
		return r.registerWatch(ctx, o, d)
	case resolver.Trendline:
		return r.registerTrendline(ctx, o, d)
	case resolver.Strategy:
		return r.registerStrategy(ctx, o, d)
	default:
		return errors.Errorf("unhandled decision kind %d for order %s", d.Kind, o.ID)
	}
}

func flatten(o *models.Order, d resolver.Decision) *models.WatchOrder {
	return &models.WatchOrder{
		ID:            o.ID,
		Active:        o.Active,
		Status:        o.Status,
		Side:          o.Side,
		TradeType:     o.TradeType,
		IndicatorType: o.IndicatorType,
		Symbol:        o.Symbol,
		PlanType:      o.PlanType,
		Direction:     d.Direction,
	}
}

func (r *Registrar) registerWatch(ctx context.Context, o *models.Order, d resolver.Decision) error {
	wo := flatten(o, d)
	price := d.Price
	wo.Price = &price
	enc, err := wo.Encode()
	if err != nil {
		return err
	}

	member := models.MemberKey(o.ID, d.Action)
	bucket := store.WatchBucket(o.Symbol, d.Direction)
	return r.store.Atomic(ctx, func(tx store.Tx) error {
		tx.ZAdd(bucket, member, price)
		tx.HSet(store.KeyWatchOrders, o.ID, enc)
		return nil
	})
}

func (r *Registrar) registerTrendline(ctx context.Context, o *models.Order, d resolver.Decision) error {
	wo := flatten(o, d)
	wo.StartDate = d.StartDate
	wo.EndDate = d.EndDate
	wo.TradingStartPrice = d.StartPrice
	wo.TradingEndPrice = d.EndPrice

	now := r.nowMillis()
	if now > d.EndDate {
		// window already over: this order never gets a chance to trigger
		return r.Post(ctx, wo, models.ActionEnd)
	}

	enc, err := wo.Encode()
	if err != nil {
		return err
	}
	member := models.MemberKey(o.ID, d.Action)

	var entryEnc string
	if d.StartDate <= now {
		entry := models.TrendlineEntry{
			Symbol:            o.Symbol,
			StartDate:         d.StartDate,
			EndDate:           d.EndDate,
			TradingStartPrice: d.StartPrice,
			TradingEndPrice:   d.EndPrice,
			CurrentPrice:      0,
			Direction:         d.Direction,
		}
		if entryEnc, err = entry.Encode(); err != nil {
			return err
		}
	}

	return r.store.Atomic(ctx, func(tx store.Tx) error {
		if entryEnc != "" {
			tx.HSet(store.KeyTrendlineQueue, member, entryEnc)
		} else if d.Action == models.ActionOpen {
			tx.ZAdd(store.KeyStartSchedule, o.ID, float64(d.StartDate))
		}
		if d.Action == models.ActionOpen {
			tx.ZAdd(store.KeyEndSchedule, o.ID, float64(d.EndDate))
		}
		tx.HSet(store.KeyWatchOrders, o.ID, enc)
		return nil
	})
}

func (r *Registrar) registerStrategy(ctx context.Context, o *models.Order, d resolver.Decision) error {
	candle, ok := o.Indicators[0].Text("candleSize")
	if !ok {
		logger.Warn("dropping strategy order %s: unreadable candleSize", o.ID)
		return nil
	}
	wo := flatten(o, d)
	wo.CandleSize = candle
	wo.Indicators = o.Indicators

	doc := &models.StrategyOrder{
		Indicators:    make(map[string][]float64, len(o.Indicators)),
		Direction:     d.Direction,
		IndicatorType: o.IndicatorType,
	}
	sigs := make([]string, 0, len(o.Indicators))
	for _, ind := range o.Indicators {
		sig, values, err := models.IndicatorSignature(ind)
		if err != nil {
			// drop the whole order rather than register half its indicators
			logger.Warn("dropping strategy order %s: %v", o.ID, err)
			return nil
		}
		doc.Indicators[sig] = values
		sigs = append(sigs, sig)
	}

	docEnc, err := doc.Encode()
	if err != nil {
		return err
	}
	woEnc, err := wo.Encode()
	if err != nil {
		return err
	}

	sk := store.SymbolKline(o.Symbol, candle)
	for _, sig := range sigs {
		if err := r.addIndicatorMember(ctx, sk, sig, o.ID); err != nil {
			return err
		}
	}
	return r.store.Atomic(ctx, func(tx store.Tx) error {
		tx.HSet(store.StrategyOrders(sk), o.ID, docEnc)
		tx.HSet(store.KeyWatchOrders, o.ID, woEnc)
		return nil
	})
}

// addIndicatorMember inserts an order id into the membership set of one
// indicator signature. Sets are stored as sorted JSON arrays; only the
// ingest worker writes them, so the read-modify-write does not race.
func (r *Registrar) addIndicatorMember(ctx context.Context, symbolKline, sig, orderID string) error {
	key := store.IndicatorIndex(symbolKline)
	ids, err := r.loadMembers(ctx, key, sig)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == orderID {
			return nil
		}
	}
	ids = append(ids, orderID)
	sort.Strings(ids)
	enc, err := sonic.MarshalString(ids)
	if err != nil {
		return errors.Wrap(err, "encode indicator members")
	}
	return r.store.HSet(ctx, key, sig, enc)
}

func (r *Registrar) removeIndicatorMember(ctx context.Context, symbolKline, sig, orderID string) error {
	key := store.IndicatorIndex(symbolKline)
	ids, err := r.loadMembers(ctx, key, sig)
	if err != nil {
		return err
	}
	kept := ids[:0]
	for _, id := range ids {
		if id != orderID {
			kept = append(kept, id)
		}
	}
	if len(kept) == 0 {
		return r.store.HDel(ctx, key, sig)
	}
	enc, err := sonic.MarshalString(kept)
	if err != nil {
		return errors.Wrap(err, "encode indicator members")
	}
	return r.store.HSet(ctx, key, sig, enc)
}

func (r *Registrar) loadMembers(ctx context.Context, key, sig string) ([]string, error) {
	raw, err := r.store.HGet(ctx, key, sig)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ids []string
	if err := sonic.UnmarshalString(raw, &ids); err != nil {
		return nil, errors.Wrapf(err, "decode indicator members %s", sig)
	}
	return ids, nil
}

// loadWatchOrder fetches the engine's flattened view of an order; a missing
// record returns (nil, nil) so callers can treat it as an inconsistency, not
// a transport failure.
func (r *Registrar) loadWatchOrder(ctx context.Context, id string) (*models.WatchOrder, error) {
	raw, err := r.store.HGet(ctx, store.KeyWatchOrders, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return models.DecodeWatchOrder(raw)
}

// RemoveOrder tears down every trace of an order that is no longer live,
// without posting a token.
func (r *Registrar) RemoveOrder(ctx context.Context, o *models.Order) error {
	wo, err := r.loadWatchOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	if wo != nil && wo.CandleSize != "" {
		if err := r.removeStrategyMemberships(ctx, wo); err != nil {
			return err
		}
	}
	td, err := r.collectTeardown(ctx, o.ID, o.Symbol, wo)
	if err != nil {
		return err
	}
	return r.store.Atomic(ctx, func(tx store.Tx) error {
		applyTeardown(tx, o.ID, o.Symbol, td)
		return nil
	})
}

// Post runs the order-post pipeline: full tear-down plus the outbound token,
// observed as one unit. This is the only side effect visible outside the
// store.
func (r *Registrar) Post(ctx context.Context, wo *models.WatchOrder, action models.Action) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "post_order")
	defer span.Finish()
	span.SetTag("order_id", wo.ID)
	span.SetTag("action", string(action))

	if wo.CandleSize != "" {
		if err := r.removeStrategyMemberships(ctx, wo); err != nil {
			logger.Error("unwind strategy memberships for %s: %v", wo.ID, err)
		}
	}
	td, err := r.collectTeardown(ctx, wo.ID, wo.Symbol, wo)
	if err != nil {
		return err
	}

	token := models.MemberKey(wo.ID, action)
	if err := r.store.Atomic(ctx, func(tx store.Tx) error {
		applyTeardown(tx, wo.ID, wo.Symbol, td)
		tx.RPush(store.KeyPostQueue, token)
		return nil
	}); err != nil {
		return err
	}

	if err := r.audit.RecordPost(ctx, wo.ID, string(action), wo.Symbol); err != nil {
		logger.Error("audit post %s: %v", token, err)
	}
	logger.Info("posted %s", token)
	return nil
}

func (r *Registrar) removeStrategyMemberships(ctx context.Context, wo *models.WatchOrder) error {
	sk := store.SymbolKline(wo.Symbol, wo.CandleSize)
	raw, err := r.store.HGet(ctx, store.StrategyOrders(sk), wo.ID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	doc, err := models.DecodeStrategyOrder(raw)
	if err != nil {
		return err
	}
	for sig := range doc.Indicators {
		if err := r.removeIndicatorMember(ctx, sk, sig, wo.ID); err != nil {
			return err
		}
	}
	return nil
}

// teardown lists everything belonging to one order, gathered up front so the
// deletions can run in a single atomic batch.
type teardown struct {
	lineFields  []string
	buyMembers  []string
	sellMembers []string
	strategyKey string
}

func (r *Registrar) collectTeardown(ctx context.Context, id, symbol string, wo *models.WatchOrder) (teardown, error) {
	var td teardown
	var err error
	if td.lineFields, err = r.store.HScanMatch(ctx, store.KeyTrendlineQueue, id+"*"); err != nil {
		return td, err
	}
	if td.buyMembers, err = r.store.ZScanMatch(ctx, store.WatchBucket(symbol, 1), "*"+id+"*"); err != nil {
		return td, err
	}
	if td.sellMembers, err = r.store.ZScanMatch(ctx, store.WatchBucket(symbol, -1), "*"+id+"*"); err != nil {
		return td, err
	}
	if wo != nil && wo.CandleSize != "" {
		td.strategyKey = store.StrategyOrders(store.SymbolKline(symbol, wo.CandleSize))
	}
	return td, nil
}

func applyTeardown(tx store.Tx, id, symbol string, td teardown) {
	tx.HDel(store.KeyTrendlineQueue, td.lineFields...)
	tx.ZRem(store.WatchBucket(symbol, 1), td.buyMembers...)
	tx.ZRem(store.WatchBucket(symbol, -1), td.sellMembers...)
	tx.HDel(store.KeyWatchOrders, id)
	tx.HDel(store.KeyOrderDetail, id)
	tx.ZRem(store.KeyStartSchedule, id)
	tx.ZRem(store.KeyEndSchedule, id)
	if td.strategyKey != "" {
		tx.HDel(td.strategyKey, id)
	}
}

// Reregister rebuilds store state from a persisted watch order. Used on
// worker bootstrap and when a scheduled trendline window opens.
func (r *Registrar) Reregister(ctx context.Context, wo *models.WatchOrder) error {
	if wo.PlanType == models.PlanTrendLine && wo.IndicatorType == models.IndicatorOpen {
		return r.activateTrendline(ctx, wo)
	}
	if wo.Price == nil {
		return nil
	}
	member := models.MemberKey(wo.ID, wo.WatchAction())
	return r.store.ZAdd(ctx, store.WatchBucket(wo.Symbol, wo.Direction), member, *wo.Price)
}

func (r *Registrar) activateTrendline(ctx context.Context, wo *models.WatchOrder) error {
	now := r.nowMillis()
	if now > wo.EndDate {
		return r.Post(ctx, wo, models.ActionEnd)
	}

	action := wo.WatchAction()
	member := models.MemberKey(wo.ID, action)
	if wo.StartDate <= now {
		// arm a fresh row only; an existing one keeps its published price
		_, err := r.store.HGet(ctx, store.KeyTrendlineQueue, member)
		if errors.Is(err, store.ErrNotFound) {
			entry := models.TrendlineEntry{
				Symbol:            wo.Symbol,
				StartDate:         wo.StartDate,
				EndDate:           wo.EndDate,
				TradingStartPrice: wo.TradingStartPrice,
				TradingEndPrice:   wo.TradingEndPrice,
				CurrentPrice:      0,
				Direction:         wo.Direction,
			}
			enc, encErr := entry.Encode()
			if encErr != nil {
				return encErr
			}
			if err := r.store.HSet(ctx, store.KeyTrendlineQueue, member, enc); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
	} else if action == models.ActionOpen {
		if err := r.store.ZAdd(ctx, store.KeyStartSchedule, wo.ID, float64(wo.StartDate)); err != nil {
			return err
		}
	}
	if action == models.ActionOpen {
		return r.store.ZAdd(ctx, store.KeyEndSchedule, wo.ID, float64(wo.EndDate))
	}
	return nil
}
