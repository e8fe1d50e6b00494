package watcher

import (
	"context"
	"testing"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
)

func TestLoadTickSizes(t *testing.T) {
	mem := store.NewMemory()
	ctx := context.Background()

	mem.SAdd(store.KeyTickSizeKeys, "XBT-USD:ticksize", "ETH-USD:ticksize", "GHOST-USD:ticksize")
	_ = mem.HSet(ctx, store.KeyMarketData, "XBT-USD", `{"tickSize": 0.5, "lotSize": 1}`)
	// string-typed tick sizes arrive from some venues
	_ = mem.HSet(ctx, store.KeyMarketData, "ETH-USD", `{"tickSize": "0.05"}`)

	table, err := LoadTickSizes(ctx, mem)
	if err != nil {
		t.Fatal(err)
	}
	if len(table) != 2 {
		t.Fatalf("table = %+v, want 2 symbols", table)
	}
	if ts := table["XBT-USD"]; ts.Tick != 0.5 || ts.Length != 1 {
		t.Errorf("XBT-USD = %+v, want {0.5 1}", ts)
	}
	if ts := table["ETH-USD"]; ts.Tick != 0.05 || ts.Length != 2 {
		t.Errorf("ETH-USD = %+v, want {0.05 2}", ts)
	}
	if _, ok := table["GHOST-USD"]; ok {
		t.Error("symbol without market data made it into the table")
	}
}
