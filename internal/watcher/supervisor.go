package watcher

import (
	"context"
	"time"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/notify"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// Worker is one independently failing unit of the engine.
type Worker interface {
	Name() string
	Run(ctx context.Context) error
}

// Supervisor runs every worker in its own goroutine and relaunches any that
// exits or panics. A single worker crash never takes the process down, and a
// relaunched worker starts from clean state.
type Supervisor struct {
	workers  []Worker
	poll     time.Duration
	notifier notify.Notifier
}

func NewSupervisor(poll time.Duration, n notify.Notifier, workers ...Worker) *Supervisor {
	return &Supervisor{workers: workers, poll: poll, notifier: n}
}

func (s *Supervisor) Run(ctx context.Context) {
	done := make([]chan struct{}, len(s.workers))
	for i, w := range s.workers {
		done[i] = s.launch(ctx, w)
	}

	ticker := time.NewTicker(s.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i, w := range s.workers {
				select {
				case <-done[i]:
					if ctx.Err() != nil {
						return
					}
					logger.Warn("worker %s exited, restarting", w.Name())
					s.notifier.Sendf("watcher: worker %s restarted", w.Name())
					done[i] = s.launch(ctx, w)
				default:
				}
			}
		}
	}
}

func (s *Supervisor) launch(ctx context.Context, w Worker) chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer func() {
			if p := recover(); p != nil {
				logger.Error("worker %s panicked: %v", w.Name(), p)
			}
		}()
		logger.Info("worker %s started", w.Name())
		if err := w.Run(ctx); err != nil {
			logger.Error("worker %s: %v", w.Name(), err)
		}
	}()
	return done
}
