package models

import (
	"strings"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Action is the lifecycle step emitted for an order when its condition fires.
type Action string

const (
	ActionOpen          Action = "OPEN"
	ActionClose         Action = "CLOSE"
	ActionTriggerCancel Action = "TRIGGER_CANCEL"
	ActionEnd           Action = "END"
)

// MemberKey builds the "{orderId}={action}" key used both as the watch-bucket
// member and as the outbound post-order token.
func MemberKey(orderID string, action Action) string {
	return orderID + "=" + string(action)
}

func SplitMember(member string) (string, Action, error) {
	idx := strings.IndexByte(member, '=')
	if idx <= 0 || idx == len(member)-1 {
		return "", "", errors.Errorf("malformed watch member %q", member)
	}
	return member[:idx], Action(member[idx+1:]), nil
}

// WatchOrder is the engine's flattened view of a classified order, persisted
// in the watch-order hash so a restarted worker can re-derive its state.
type WatchOrder struct {
	ID            string        `json:"id"`
	Active        int           `json:"active"`
	Status        OrderStatus   `json:"status"`
	Side          Side          `json:"side"`
	TradeType     TradeType     `json:"tradeType"`
	IndicatorType IndicatorType `json:"indicatorType"`
	Symbol        string        `json:"symbol"`
	PlanType      PlanType      `json:"planType"`
	Direction     int           `json:"direction"`
	Price         *float64      `json:"price,omitempty"`

	// trendline window, unix milliseconds
	StartDate         int64   `json:"startDate,omitempty"`
	EndDate           int64   `json:"endDate,omitempty"`
	TradingStartPrice float64 `json:"tradingStartPrice,omitempty"`
	TradingEndPrice   float64 `json:"tradingEndPrice,omitempty"`

	// strategy
	CandleSize string      `json:"candleSize,omitempty"`
	Indicators []Indicator `json:"indicators,omitempty"`
}

// WatchAction maps the order's status and indicator leg to the action token
// its watch member carries: PENDING cancels, a WAITING OPEN leg opens, any
// other WAITING leg closes.
func (w *WatchOrder) WatchAction() Action {
	if w.Status == StatusPending {
		return ActionTriggerCancel
	}
	if w.IndicatorType == IndicatorOpen {
		return ActionOpen
	}
	return ActionClose
}

func (w *WatchOrder) Encode() (string, error) {
	raw, err := sonic.MarshalString(w)
	if err != nil {
		return "", errors.Wrapf(err, "encode watch order %s", w.ID)
	}
	return raw, nil
}

func DecodeWatchOrder(raw string) (*WatchOrder, error) {
	var w WatchOrder
	if err := sonic.UnmarshalString(raw, &w); err != nil {
		return nil, errors.Wrap(err, "decode watch order")
	}
	return &w, nil
}

// TrendlineEntry is one row of the trendline recomputation queue, keyed by
// "{orderId}={action}". CurrentPrice mirrors the last score published to the
// watch bucket so an unchanged recomputation stages no write.
type TrendlineEntry struct {
	Symbol            string  `json:"symbol"`
	StartDate         int64   `json:"startDate"`
	EndDate           int64   `json:"endDate"`
	TradingStartPrice float64 `json:"tradingStartPrice"`
	TradingEndPrice   float64 `json:"tradingEndPrice"`
	CurrentPrice      float64 `json:"currentPrice"`
	Direction         int     `json:"direction"`
}

func (e *TrendlineEntry) Encode() (string, error) {
	raw, err := sonic.MarshalString(e)
	if err != nil {
		return "", errors.Wrap(err, "encode trendline entry")
	}
	return raw, nil
}

func DecodeTrendlineEntry(raw string) (*TrendlineEntry, error) {
	var e TrendlineEntry
	if err := sonic.UnmarshalString(raw, &e); err != nil {
		return nil, errors.Wrap(err, "decode trendline entry")
	}
	return &e, nil
}
