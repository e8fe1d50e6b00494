package models

import (
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

type PlanType string

const (
	PlanReserved   PlanType = "reserved"
	PlanHorizontal PlanType = "horizontal"
	PlanTrendLine  PlanType = "trendLine"
	PlanStrategy   PlanType = "strategy"
)

type IndicatorType string

const (
	IndicatorOpen  IndicatorType = "OPEN"
	IndicatorTake  IndicatorType = "TAKE"
	IndicatorLoss  IndicatorType = "LOSS"
	IndicatorTrail IndicatorType = "TRAIL"
)

type OrderStatus string

const (
	StatusWaiting OrderStatus = "WAITING"
	StatusPending OrderStatus = "PENDING"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type TradeType string

const (
	TradeMarket TradeType = "Market"
	TradeStop   TradeType = "Stop"
	TradeLimit  TradeType = "Limit"
)

// Active codes that denote a live order; anything else tears the order down.
var liveActiveCodes = map[int]struct{}{1: {}, 4: {}, 5: {}}

// Order is the raw order document as published by the order service. The
// per-indicator payload is schema-flexible: simple plans carry trigger and
// cancel prices, trendline plans carry a time window, strategy plans carry a
// named indicator config.
type Order struct {
	ID            string        `json:"id"`
	Active        int           `json:"active"`
	Status        OrderStatus   `json:"status"`
	Side          Side          `json:"side"`
	TradeType     TradeType     `json:"tradeType"`
	IndicatorType IndicatorType `json:"indicatorType"`
	Symbol        string        `json:"symbol"`
	PlanType      PlanType      `json:"planType"`
	Indicators    []Indicator   `json:"indicators"`
}

func (o *Order) Live() bool {
	_, ok := liveActiveCodes[o.Active]
	return ok
}

func DecodeOrder(raw string) (*Order, error) {
	var o Order
	if err := sonic.UnmarshalString(raw, &o); err != nil {
		return nil, errors.Wrap(err, "decode order document")
	}
	if o.ID == "" {
		return nil, errors.New("order document has no id")
	}
	if o.Symbol == "" {
		return nil, errors.Errorf("order %s has no symbol", o.ID)
	}
	return &o, nil
}

// Indicator is one entry of an order's indicators list. Upstream sends
// numbers either as JSON numbers or as strings, so access goes through the
// coercing helpers.
type Indicator map[string]interface{}

func (in Indicator) Has(key string) bool {
	_, ok := in[key]
	return ok
}

func (in Indicator) Float(key string) (float64, bool) {
	v, ok := in[key]
	if !ok {
		return 0, false
	}
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(t, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func (in Indicator) Str(key string) (string, bool) {
	v, ok := in[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Text renders a field as text whether upstream sent it as a string or a
// number; candle sizes arrive both ways.
func (in Indicator) Text(key string) (string, bool) {
	v, ok := in[key]
	if !ok {
		return "", false
	}
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	default:
		return "", false
	}
}
