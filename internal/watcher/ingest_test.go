package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/bytedance/sonic"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
)

func TestIngestBootstrapRebuildsBuckets(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	// a watch order persisted by a previous process, bucket state lost
	price := 99.5
	wo := &models.WatchOrder{
		ID:        "ord-b",
		Status:    models.StatusWaiting,
		Side:      models.SideBuy,
		TradeType: models.TradeLimit,
		IndicatorType: models.IndicatorOpen,
		Symbol:    "XBT-USD",
		PlanType:  models.PlanReserved,
		Direction: 1,
		Price:     &price,
	}
	enc, err := wo.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if err := r.mem.HSet(ctx, store.KeyWatchOrders, "ord-b", enc); err != nil {
		t.Fatal(err)
	}

	ing := NewIngest(r.mem, r.reg, NewRetrier(1, 0, r.notifier))
	if err := ing.bootstrap(ctx); err != nil {
		t.Fatal(err)
	}

	got, err := r.mem.ZRangeByScore(ctx, store.WatchBucket("XBT-USD", 1), "-inf", "+inf")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Member != "ord-b=OPEN" || got[0].Score != 99.5 {
		t.Fatalf("bucket after bootstrap = %+v", got)
	}
}

func TestIngestConsumesNewOrderQueue(t *testing.T) {
	r := newRig()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	o := baseOrder("ord-q", nil)
	raw, err := sonic.MarshalString(o)
	if err != nil {
		t.Fatal(err)
	}
	if err := r.mem.HSet(ctx, store.KeyOrderDetail, "ord-q", raw); err != nil {
		t.Fatal(err)
	}
	if err := r.mem.RPush(ctx, store.KeyNewOrderQueue, "ord-q"); err != nil {
		t.Fatal(err)
	}

	ing := NewIngest(r.mem, r.reg, NewRetrier(1, 0, r.notifier))
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ing.Run(ctx)
	}()

	deadline := time.After(time.Second)
	for {
		got, err := r.mem.ZRangeByScore(context.Background(), store.WatchBucket("XBT-USD", 1), "-inf", "+inf")
		if err != nil {
			t.Fatal(err)
		}
		if len(got) == 1 && got[0].Member == "ord-q=OPEN" {
			break
		}
		select {
		case <-deadline:
			t.Fatal("queued order was never registered")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestIngestIgnoresMissingDetail(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	ing := NewIngest(r.mem, r.reg, NewRetrier(1, 0, r.notifier))
	ing.handle(ctx, "no-such-order")

	if fields, _ := r.mem.HScanMatch(ctx, store.KeyWatchOrders, "*"); len(fields) != 0 {
		t.Errorf("registered something for a missing order: %v", fields)
	}
}
