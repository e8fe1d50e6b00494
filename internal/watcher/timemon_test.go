package watcher

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/audit"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/models"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/store"
)

func TestTimeMonitorActivatesAndExpires(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	start := time.Date(2020, 7, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 7, 7, 0, 0, 0, 0, time.UTC)

	// registered before the window opened
	r.reg.now = func() time.Time { return start.Add(-time.Hour) }
	if err := r.reg.Register(ctx, trendlineTestOrder("ord-tm", nil)); err != nil {
		t.Fatal(err)
	}

	mon := NewTimeMonitor(r.mem, r.reg, time.Minute)

	// before the window nothing moves
	mon.now = func() time.Time { return start.Add(-time.Minute) }
	r.reg.now = mon.now
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if rows, _ := r.mem.HScanMatch(ctx, store.KeyTrendlineQueue, "*"); len(rows) != 0 {
		t.Fatalf("armed before the window: %v", rows)
	}

	// window opens: the start entry is consumed and the row armed
	mon.now = func() time.Time { return start.Add(time.Hour) }
	r.reg.now = mon.now
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if starts, _ := r.mem.ZScanMatch(ctx, store.KeyStartSchedule, "*"); len(starts) != 0 {
		t.Errorf("start schedule not consumed: %v", starts)
	}
	if _, err := r.mem.HGet(ctx, store.KeyTrendlineQueue, "ord-tm=OPEN"); err != nil {
		t.Errorf("queue row not armed: %v", err)
	}

	// a second sweep inside the window must not double-activate
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if q := r.mem.List(store.KeyPostQueue); len(q) != 0 {
		t.Fatalf("posted inside the window: %v", q)
	}

	// window closes: the order ends exactly once and every trace is gone
	mon.now = func() time.Time { return end.Add(time.Minute) }
	r.reg.now = mon.now
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	q := r.mem.List(store.KeyPostQueue)
	if len(q) != 1 || q[0] != "ord-tm=END" {
		t.Fatalf("post queue = %v, want [ord-tm=END]", q)
	}
	if rows, _ := r.mem.HScanMatch(ctx, store.KeyTrendlineQueue, "*"); len(rows) != 0 {
		t.Errorf("queue rows survived: %v", rows)
	}
	if ends, _ := r.mem.ZScanMatch(ctx, store.KeyEndSchedule, "*"); len(ends) != 0 {
		t.Errorf("end schedule survived: %v", ends)
	}
	if _, err := r.mem.HGet(ctx, store.KeyWatchOrders, "ord-tm"); !errors.Is(err, store.ErrNotFound) {
		t.Error("watch order record survived")
	}

	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if q := r.mem.List(store.KeyPostQueue); len(q) != 1 {
		t.Errorf("END posted twice: %v", q)
	}
}

func TestTimeMonitorExpiryBeatsActivation(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	start := time.Date(2020, 7, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2020, 7, 7, 0, 0, 0, 0, time.UTC)

	r.reg.now = func() time.Time { return start.Add(-time.Hour) }
	if err := r.reg.Register(ctx, trendlineTestOrder("ord-tm", nil)); err != nil {
		t.Fatal(err)
	}

	// the whole window passed between two sweeps
	mon := NewTimeMonitor(r.mem, r.reg, time.Minute)
	mon.now = func() time.Time { return end.Add(time.Hour) }
	r.reg.now = mon.now
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}

	q := r.mem.List(store.KeyPostQueue)
	if len(q) != 1 || q[0] != "ord-tm=END" {
		t.Fatalf("post queue = %v, want [ord-tm=END]", q)
	}
	if rows, _ := r.mem.HScanMatch(ctx, store.KeyTrendlineQueue, "*"); len(rows) != 0 {
		t.Errorf("expired order was armed: %v", rows)
	}
	if starts, _ := r.mem.ZScanMatch(ctx, store.KeyStartSchedule, "*"); len(starts) != 0 {
		t.Errorf("start schedule survived: %v", starts)
	}
}

// flakyHGetStore fails a bounded number of watch-order reads to model a
// transient transport error mid-sweep.
type flakyHGetStore struct {
	*store.Memory
	failures int
}

func (s *flakyHGetStore) HGet(ctx context.Context, key, field string) (string, error) {
	if s.failures > 0 && key == store.KeyWatchOrders {
		s.failures--
		return "", errors.New("connection reset")
	}
	return s.Memory.HGet(ctx, key, field)
}

func TestTimeMonitorRetriesActivationAfterStoreError(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	start := time.Date(2020, 7, 6, 0, 0, 0, 0, time.UTC)
	r.reg.now = func() time.Time { return start.Add(-time.Hour) }
	if err := r.reg.Register(ctx, trendlineTestOrder("ord-tm", nil)); err != nil {
		t.Fatal(err)
	}

	flaky := &flakyHGetStore{Memory: r.mem, failures: 1}
	reg := NewRegistrar(flaky, models.TickTable{"XBT-USD": {Tick: 0.5, Length: 1}}, r.notifier, audit.Nop{})
	mon := NewTimeMonitor(flaky, reg, time.Minute)
	mon.now = func() time.Time { return start.Add(time.Hour) }
	reg.now = mon.now

	// the first sweep hits the transport error and must leave the schedule
	// entry in place
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if starts, _ := r.mem.ZScanMatch(ctx, store.KeyStartSchedule, "*"); len(starts) != 1 {
		t.Fatalf("failed activation consumed the schedule entry: %v", starts)
	}
	if rows, _ := r.mem.HScanMatch(ctx, store.KeyTrendlineQueue, "*"); len(rows) != 0 {
		t.Fatalf("failed activation armed a row: %v", rows)
	}

	// the next sweep retries and activates
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := r.mem.HGet(ctx, store.KeyTrendlineQueue, "ord-tm=OPEN"); err != nil {
		t.Errorf("queue row not armed on retry: %v", err)
	}
	if starts, _ := r.mem.ZScanMatch(ctx, store.KeyStartSchedule, "*"); len(starts) != 0 {
		t.Errorf("start schedule not consumed after activation: %v", starts)
	}
}

func TestTimeMonitorDropsOrphanStartSchedule(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	if err := r.mem.ZAdd(ctx, store.KeyStartSchedule, "ghost", 1000); err != nil {
		t.Fatal(err)
	}
	mon := NewTimeMonitor(r.mem, r.reg, time.Minute)
	mon.now = func() time.Time { return time.Unix(10, 0) }
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if starts, _ := r.mem.ZScanMatch(ctx, store.KeyStartSchedule, "*"); len(starts) != 0 {
		t.Errorf("orphan entry survived: %v", starts)
	}
	if rows, _ := r.mem.HScanMatch(ctx, store.KeyTrendlineQueue, "*"); len(rows) != 0 {
		t.Errorf("orphan armed a row: %v", rows)
	}
}

func TestTimeMonitorDropsOrphanEndSchedule(t *testing.T) {
	r := newRig()
	ctx := context.Background()

	if err := r.mem.ZAdd(ctx, store.KeyEndSchedule, "ghost", 1000); err != nil {
		t.Fatal(err)
	}
	mon := NewTimeMonitor(r.mem, r.reg, time.Minute)
	mon.now = func() time.Time { return time.Unix(10, 0) }
	if err := mon.Sweep(ctx); err != nil {
		t.Fatal(err)
	}
	if ends, _ := r.mem.ZScanMatch(ctx, store.KeyEndSchedule, "*"); len(ends) != 0 {
		t.Errorf("orphan entry survived: %v", ends)
	}
	if q := r.mem.List(store.KeyPostQueue); len(q) != 0 {
		t.Errorf("orphan posted: %v", q)
	}
}
