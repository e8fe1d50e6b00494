// Package resolver maps an order snapshot to a typed watch decision. It
// replaces the upstream system's nested string-tag dispatch with an
// exhaustive variant set so no combination can fall through silently.
package resolver

import (
	"fmt"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/trigger"
)

type Kind int

const (
	// Ignore drops the order without touching the store: malformed or
	// not-actionable input must never trigger destructive writes.
	Ignore Kind = iota
	// Remove tears down every trace of the order.
	Remove
	// Watch registers a price threshold in a watch bucket.
	Watch
	// Trendline routes through the trendline activation path.
	Trendline
	// Strategy registers indicator memberships instead of a threshold.
	Strategy
)

// Decision is the resolved outcome for one order snapshot.
type Decision struct {
	Kind      Kind
	Action    models.Action
	Price     float64
	Direction int

	// trendline window, set when Kind == Trendline
	StartDate  int64
	EndDate    int64
	StartPrice float64
	EndPrice   float64

	// set when Kind == Ignore
	Reason string
}

func ignore(format string, args ...interface{}) Decision {
	return Decision{Kind: Ignore, Reason: fmt.Sprintf(format, args...)}
}

// Resolve classifies an order against the symbol's tick size. It never
// returns an error: anything that cannot be acted on safely resolves to
// Ignore with a reason, anything no longer live resolves to Remove.
func Resolve(o *models.Order, ts models.TickSize) Decision {
	if !o.Live() {
		return Decision{Kind: Remove}
	}
	if len(o.Indicators) == 0 {
		return ignore("order %s has no indicators", o.ID)
	}

	switch o.PlanType {
	case models.PlanReserved, models.PlanHorizontal, models.PlanTrendLine:
		if o.Status != models.StatusWaiting && o.Status != models.StatusPending {
			return ignore("order %s has unknown status %q", o.ID, o.Status)
		}
		if o.IndicatorType == models.IndicatorTrail {
			return resolveTrail(o)
		}
		if o.PlanType == models.PlanTrendLine && o.IndicatorType == models.IndicatorOpen {
			return resolveTrendline(o)
		}
		return resolveThreshold(o, ts, true)

	case models.PlanStrategy:
		return resolveStrategy(o, ts)

	default:
		return ignore("order %s has unknown plan type %q", o.ID, o.PlanType)
	}
}

// resolveTrail handles trailing-stop legs. A trailing order cannot be
// pending: its cancel is driven by the execution side, not by a price cross.
func resolveTrail(o *models.Order) Decision {
	if o.Status == models.StatusPending {
		return ignore("trailing order %s cannot be pending", o.ID)
	}
	price, ok := o.Indicators[0].Float("triggerPrice")
	if !ok {
		return ignore("trailing order %s has no triggerPrice", o.ID)
	}
	dir := 1
	if o.Side == models.SideBuy {
		dir = -1
	}
	return Decision{Kind: Watch, Action: models.ActionClose, Price: price, Direction: dir}
}

// resolveThreshold covers the plain price-cross legs. Base direction is +1
// for BUY and -1 for SELL, paired with the scan convention: +1 buckets fire
// when the price falls to the threshold, -1 buckets when it rises. Market
// orders (and, for non-strategy plans, Stop orders) trigger from the other
// side, so their direction flips.
func resolveThreshold(o *models.Order, ts models.TickSize, flipStop bool) Decision {
	if ts.Tick <= 0 {
		return ignore("order %s has no tick size for %s", o.ID, o.Symbol)
	}
	base := -1
	if o.Side == models.SideBuy {
		base = 1
	}
	dir := base
	if o.TradeType == models.TradeMarket || (flipStop && o.TradeType == models.TradeStop) {
		dir = -base
	}
	ind := o.Indicators[0]

	switch o.Status {
	case models.StatusWaiting:
		price, ok := ind.Float("triggerPrice")
		if !ok {
			return ignore("order %s has no triggerPrice", o.ID)
		}
		action := models.ActionClose
		if o.IndicatorType == models.IndicatorOpen {
			action = models.ActionOpen
			if o.TradeType == models.TradeMarket {
				// one tick against the direction so a market order does not
				// trigger itself on registration
				price -= ts.Tick * float64(dir)
			}
		}
		return Decision{Kind: Watch, Action: action, Price: price, Direction: dir}

	case models.StatusPending:
		if o.TradeType == models.TradeMarket {
			return ignore("pending market order %s has no cancel trigger", o.ID)
		}
		if o.IndicatorType == models.IndicatorLoss {
			return ignore("loss leg of order %s cannot be pending", o.ID)
		}
		price, ok := ind.Float("cancelPrice")
		if !ok {
			return ignore("pending order %s has no cancelPrice", o.ID)
		}
		return Decision{Kind: Watch, Action: models.ActionTriggerCancel, Price: price, Direction: -base}

	default:
		return ignore("order %s has unknown status %q", o.ID, o.Status)
	}
}

// resolveTrendline validates the window of a trendLine OPEN leg; the actual
// registration (queue entry, schedules, immediate expiry) depends on the
// wall clock and stays with the registrar.
func resolveTrendline(o *models.Order) Decision {
	if o.Status == models.StatusPending && o.TradeType == models.TradeMarket {
		return ignore("pending market order %s has no cancel trigger", o.ID)
	}
	action := models.ActionOpen
	if o.Status == models.StatusPending {
		action = models.ActionTriggerCancel
	}
	dir := 1
	if o.Side == models.SideBuy {
		dir = -1
	}

	ind := o.Indicators[0]
	startRaw, ok := ind.Str("startDate")
	if !ok {
		return ignore("trendline order %s has no startDate", o.ID)
	}
	endRaw, ok := ind.Str("endDate")
	if !ok {
		return ignore("trendline order %s has no endDate", o.ID)
	}
	start, err := trigger.ParseDate(startRaw)
	if err != nil {
		return ignore("trendline order %s: %v", o.ID, err)
	}
	end, err := trigger.ParseDate(endRaw)
	if err != nil {
		return ignore("trendline order %s: %v", o.ID, err)
	}
	if start == end {
		return ignore("trendline order %s has a zero-length window", o.ID)
	}
	startPrice, ok := ind.Float("tradingStartPrice")
	if !ok {
		return ignore("trendline order %s has no tradingStartPrice", o.ID)
	}
	endPrice, ok := ind.Float("tradingEndPrice")
	if !ok {
		return ignore("trendline order %s has no tradingEndPrice", o.ID)
	}

	return Decision{
		Kind:       Trendline,
		Action:     action,
		Direction:  dir,
		StartDate:  start,
		EndDate:    end,
		StartPrice: startPrice,
		EndPrice:   endPrice,
	}
}

// resolveStrategy dispatches strategy orders: with a candleSize the order is
// indicator-driven and joins the membership index, without one it behaves as
// a limit order whose Stop side never flips.
func resolveStrategy(o *models.Order, ts models.TickSize) Decision {
	if o.Status != models.StatusWaiting && o.Status != models.StatusPending {
		return ignore("strategy order %s has unknown status %q", o.ID, o.Status)
	}
	switch o.IndicatorType {
	case models.IndicatorOpen, models.IndicatorTake, models.IndicatorLoss:
	default:
		return ignore("strategy order %s has unknown indicator type %q", o.ID, o.IndicatorType)
	}

	if o.Indicators[0].Has("candleSize") {
		dir := -1
		if o.Side == models.SideBuy {
			dir = 1
		}
		return Decision{Kind: Strategy, Direction: dir}
	}
	return resolveThreshold(o, ts, false)
}
