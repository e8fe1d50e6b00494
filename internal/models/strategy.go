package models

import (
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// StrategyOrder is the per-(symbol, candleSize) record the downstream
// indicator evaluator reads for one subscribed order: the signatures it is
// subscribed to with their value parameters, and the evaluation state.
type StrategyOrder struct {
	Indicators    map[string][]float64 `json:"indicators"`
	Direction     int                  `json:"direction"`
	LastSide      *string              `json:"last_side"`
	IndicatorType IndicatorType        `json:"indicatorType"`
}

func (s *StrategyOrder) Encode() (string, error) {
	raw, err := sonic.MarshalString(s)
	if err != nil {
		return "", errors.Wrap(err, "encode strategy order")
	}
	return raw, nil
}

func DecodeStrategyOrder(raw string) (*StrategyOrder, error) {
	var s StrategyOrder
	if err := sonic.UnmarshalString(raw, &s); err != nil {
		return nil, errors.Wrap(err, "decode strategy order")
	}
	return &s, nil
}
