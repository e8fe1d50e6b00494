package watcher

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
)

// fakeWorker blocks until cancelled; the first run can be made to exit early
// or panic.
type fakeWorker struct {
	name     string
	runs     atomic.Int32
	failOnce bool
	panicOn1 bool
}

func (w *fakeWorker) Name() string { return w.name }

func (w *fakeWorker) Run(ctx context.Context) error {
	n := w.runs.Add(1)
	if n == 1 {
		if w.panicOn1 {
			panic("worker blew up")
		}
		if w.failOnce {
			return errors.New("transient failure")
		}
	}
	<-ctx.Done()
	return nil
}

func TestSupervisorRestartsOnlyDeadWorkers(t *testing.T) {
	steady1 := &fakeWorker{name: "steady-1"}
	flaky := &fakeWorker{name: "flaky", failOnce: true}
	steady2 := &fakeWorker{name: "steady-2"}

	n := &recordingNotifier{}
	sup := NewSupervisor(10*time.Millisecond, n, steady1, flaky, steady2)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	deadline := time.After(time.Second)
	for flaky.runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("flaky worker was never restarted")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := steady1.runs.Load(); got != 1 {
		t.Errorf("steady-1 ran %d times, want 1", got)
	}
	if got := steady2.runs.Load(); got != 1 {
		t.Errorf("steady-2 ran %d times, want 1", got)
	}
	if n.count() == 0 {
		t.Error("restart raised no alert")
	}
}

func TestSupervisorRecoversFromPanic(t *testing.T) {
	w := &fakeWorker{name: "panicky", panicOn1: true}
	sup := NewSupervisor(10*time.Millisecond, &recordingNotifier{}, w)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		sup.Run(ctx)
	}()

	deadline := time.After(time.Second)
	for w.runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("panicked worker was never restarted")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}
