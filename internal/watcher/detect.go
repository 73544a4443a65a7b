package watcher

import (
	"context"

	"github.com/raoulx24/logkeeper/internal/worker"
)

// detect posts a rollover job if new archives appeared.
func (w *Watcher) detect(ctx context.Context) {
	fresh := w.scan(ctx)
	if len(fresh) == 0 {
		return
	}

	w.mu.RLock()
	stability := w.stability
	w.mu.RUnlock()

	if stability > 0 && !w.stable(ctx, fresh, stability) {
		w.log.Debug("new archives still growing, retrying later", "target", w.target(), "count", len(fresh))
		w.forget(fresh)
		return
	}

	w.log.Info("rollover detected", "target", w.target(), "archives", len(fresh))
	w.mb.Put(worker.Job{Reason: worker.ReasonRollover, At: w.now(), Paths: fresh})
}
