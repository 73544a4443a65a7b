package watcher

import (
	"context"
	"time"

	"github.com/raoulx24/logkeeper/internal/config"
)

// StartPolling rescans the target every poll interval. An interval changed
// by UpdateConfig takes effect after the next tick.
func (w *Watcher) StartPolling(ctx context.Context) {
	interval := w.pollInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.log.Debug("polling for rollovers", "target", w.target(), "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.detect(ctx)
			if next := w.pollInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (w *Watcher) pollInterval() time.Duration {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.interval <= 0 {
		return config.DefaultPollInterval
	}
	return w.interval
}

func (w *Watcher) target() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.name
}
