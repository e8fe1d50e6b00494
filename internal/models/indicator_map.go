package models

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// indicatorConfigs lists, per indicator name, the config fields that make up
// its signature, in signature order.
var indicatorConfigs = map[string][]string{
	"macd":              {"fastMaPeriod", "slowMaPeriod", "signalPeriod"},
	"ema_cross":         {"shortPeriod", "longPeriod"},
	"stoch":             {"kPeriod", "smoothK", "dPeriod"},
	"stoch_rsi":         {"rsiPeriod", "kPeriod", "smoothK", "dPeriod"},
	"rsi":               {"period"},
	"mfi":               {"period"},
	"bollinger_band":    {"period", "deviations"},
	"vma":               {"period"},
	"obv_cross":         {"shortPeriod", "longPeriod"},
	"supertrend":        {"period", "multiplier"},
	"tii":               {"period", "signalPeriod"},
	"vma_cross":         {"shortPeriod", "longPeriod"},
	"atr_trailing_stop": {"period", "multiplier", "highlow"},
}

// indicatorValues lists the runtime value fields the evaluator needs per
// subscribed order, e.g. an overbought threshold.
var indicatorValues = map[string][]string{
	"stoch":          {"overValue"},
	"stoch_rsi":      {"overValue"},
	"rsi":            {"overValue"},
	"mfi":            {"overValue"},
	"bollinger_band": {"band"},
	"vma":            {"rate"},
	"tii":            {"overValue"},
}

// IndicatorSignature renders a strategy indicator config as the membership
// key the downstream evaluator groups by, e.g. "macd|12.0|26.0|9.0", plus
// the order's value parameters for that indicator.
func IndicatorSignature(in Indicator) (string, []float64, error) {
	name, ok := in.Str("name")
	if !ok {
		return "", nil, errors.New("strategy indicator has no name")
	}
	fields, ok := indicatorConfigs[name]
	if !ok {
		return "", nil, errors.Errorf("unknown strategy indicator %q", name)
	}

	parts := make([]string, 0, len(fields)+1)
	parts = append(parts, name)
	for _, field := range fields {
		v, ok := in.Float(field)
		if !ok {
			return "", nil, errors.Errorf("indicator %s is missing config field %s", name, field)
		}
		parts = append(parts, formatSignatureFloat(v))
	}

	var values []float64
	for _, field := range indicatorValues[name] {
		v, ok := in.Float(field)
		if !ok {
			return "", nil, errors.Errorf("indicator %s is missing value field %s", name, field)
		}
		values = append(values, v)
	}

	return strings.Join(parts, "|"), values, nil
}

// formatSignatureFloat keeps a trailing ".0" on whole numbers so signatures
// stay stable regardless of how upstream serialized the config.
func formatSignatureFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.ContainsRune(s, '.') {
		s += ".0"
	}
	return s
}
