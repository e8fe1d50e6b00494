package models

import (
	"strconv"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// Tick is one price observation from the upstream feed,
// e.g. {"symbol": "XBT-USD", "price": 9845.5}.
type Tick struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

func (t Tick) Encode() (string, error) {
	raw, err := sonic.MarshalString(t)
	if err != nil {
		return "", errors.Wrap(err, "encode tick")
	}
	return raw, nil
}

// DecodeTick tolerates the price arriving either as a JSON number or as a
// string, which is how the socket bridge publishes it.
func DecodeTick(raw string) (Tick, error) {
	var doc struct {
		Symbol string      `json:"symbol"`
		Price  interface{} `json:"price"`
	}
	if err := sonic.UnmarshalString(raw, &doc); err != nil {
		return Tick{}, errors.Wrap(err, "decode tick")
	}
	if doc.Symbol == "" {
		return Tick{}, errors.New("tick has no symbol")
	}
	switch p := doc.Price.(type) {
	case float64:
		return Tick{Symbol: doc.Symbol, Price: p}, nil
	case string:
		f, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return Tick{}, errors.Wrapf(err, "parse tick price %q", p)
		}
		return Tick{Symbol: doc.Symbol, Price: f}, nil
	default:
		return Tick{}, errors.Errorf("tick for %s has no usable price", doc.Symbol)
	}
}

// TickSize is the minimum price increment of a symbol plus the decimal
// precision used when rounding to the tick grid.
type TickSize struct {
	Tick   float64
	Length int
}

// TickTable is a per-worker read-only copy of the tick-size table, loaded
// once at startup.
type TickTable map[string]TickSize
