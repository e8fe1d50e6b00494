package watcher

import (
	"context"
	"time"

	"github.com/whdqh524/ETS-WATCHER-DEFAULT/internal/notify"
	"github.com/whdqh524/ETS-WATCHER-DEFAULT/pkg/logger"
)

// Retrier retries a critical-path step a bounded number of times with a
// fixed backoff, alerting on the first failure and again when attempts are
// exhausted.
type Retrier struct {
	count    int
	backoff  time.Duration
	notifier notify.Notifier
}

func NewRetrier(count int, backoff time.Duration, n notify.Notifier) *Retrier {
	if count <= 0 {
		count = 1
	}
	return &Retrier{count: count, backoff: backoff, notifier: n}
}

func (r *Retrier) Do(ctx context.Context, name string, fn func() error) error {
	var last error
	for attempt := 1; attempt <= r.count; attempt++ {
		if err := fn(); err != nil {
			last = err
			logger.Error("%s failed (attempt %d/%d): %v", name, attempt, r.count, err)
			if attempt == 1 {
				r.notifier.Sendf("watcher: %s failed: %v", name, err)
			}
			if attempt == r.count {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff):
			}
			continue
		}
		return nil
	}
	r.notifier.Sendf("watcher: %s abandoned after %d attempts: %v", name, r.count, last)
	return last
}
