// Package worker runs retention passes for one target, one at a time.
package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/gofrs/flock"

	"github.com/raoulx24/logkeeper/internal/config"
	"github.com/raoulx24/logkeeper/internal/logging"
	"github.com/raoulx24/logkeeper/internal/mailbox"
	"github.com/raoulx24/logkeeper/internal/retention"
)

// ErrLocked is returned by Handle when another process holds the target's
// lock.
var ErrLocked = errors.New("retention pass already running elsewhere")

// Worker takes jobs from its target's mailbox and runs retention passes.
type Worker struct {
	mu       sync.RWMutex
	target   config.TargetConfig
	pruner   Pruner
	lockPath string

	log logging.Sink
	mb  *mailbox.Mailbox[Job]
}

// New creates a worker for target. The lock file lives in lockDir.
func New(target config.TargetConfig, pruner Pruner, lockDir string, log logging.Sink, mb *mailbox.Mailbox[Job]) *Worker {
	log.Debug("creating worker", "target", target.Name)
	return &Worker{
		target:   target,
		pruner:   pruner,
		lockPath: filepath.Join(lockDir, lockName(target.Name)),
		log:      log,
		mb:       mb,
	}
}

// UpdateConfig swaps in a reloaded target and its pruner. A pass already
// running finishes with the old ones.
func (w *Worker) UpdateConfig(target config.TargetConfig, pruner Pruner) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.target = target
	w.pruner = pruner
	w.log.Debug("worker config updated", "target", target.Name)
}

func (w *Worker) LockPath() string { return w.lockPath }

// Handle runs one pass unless another process holds the target lock.
func (w *Worker) Handle(ctx context.Context, job Job) (retention.Result, error) {
	w.mu.RLock()
	target := w.target
	pruner := w.pruner
	w.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(w.lockPath), 0o755); err != nil {
		return retention.Result{}, errors.Wrap(err, "creating lock dir")
	}
	lock := flock.New(w.lockPath)
	ok, err := lock.TryLock()
	if err != nil {
		return retention.Result{}, errors.Wrapf(err, "locking %s", w.lockPath)
	}
	if !ok {
		return retention.Result{}, errors.Wrapf(ErrLocked, "target %q", target.Name)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			w.log.Warn("could not release lock", "path", w.lockPath, "error", err)
		}
	}()

	w.log.Debug("starting retention pass",
		"target", target.Name,
		"reason", job.Reason,
		"trigger_paths", len(job.Paths),
	)
	return pruner.Run(ctx, target.BasePath)
}

func lockName(target string) string {
	safe := make([]rune, 0, len(target))
	for _, r := range target {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			safe = append(safe, r)
		default:
			safe = append(safe, '_')
		}
	}
	return "logkeeper-" + string(safe) + ".lock"
}
