package worker

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Start pulls jobs from the mailbox until ctx is done. Pass failures are
// logged; the next job runs regardless.
func (w *Worker) Start(ctx context.Context) error {
	w.log.Info("starting worker", "target", w.Target())
	for {
		job, err := w.mb.Take(ctx)
		if err != nil {
			w.log.Info("worker stopped", "target", w.Target())
			return nil
		}

		_, err = w.Handle(ctx, job)
		switch {
		case err == nil:
		case errors.Is(err, ErrLocked):
			w.log.Info("skipping retention pass, target locked", "target", w.Target(), "lock", w.lockPath)
		case ctx.Err() != nil:
			return nil
		default:
			w.log.Error("retention pass failed", "target", w.Target(), "reason", job.Reason, "error", err)
		}
	}
}

func (w *Worker) Target() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.target.Name
}
