// Package watcher detects log rollovers in a target directory and asks the
// target's worker for a retention pass.
//
// A rollover is observed as a new file under the base path. The first scan only records what is already there.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/raoulx24/logkeeper/internal/config"
	"github.com/raoulx24/logkeeper/internal/fs"
	"github.com/raoulx24/logkeeper/internal/fsprobe"
	"github.com/raoulx24/logkeeper/internal/logging"
	"github.com/raoulx24/logkeeper/internal/mailbox"
	"github.com/raoulx24/logkeeper/internal/worker"
)

// Watcher observes one target directory.
type Watcher struct {
	mu sync.RWMutex

	name      string
	dir       string
	maxDepth  int
	interval  time.Duration
	mode      string
	debounce  time.Duration
	stability time.Duration

	fs  fs.FS
	log logging.Sink
	now func() time.Time

	seen   map[string]struct{}
	primed bool

	mb *mailbox.Mailbox[worker.Job]
}

// New creates a watcher from the target configuration. A nil filesystem
// means the OS one.
func New(cfg config.TargetConfig, log logging.Sink, mb *mailbox.Mailbox[worker.Job], filesystem fs.FS) *Watcher {
	if filesystem == nil {
		filesystem = fs.New()
	}
	w := &Watcher{
		fs:   filesystem,
		log:  log,
		now:  time.Now,
		seen: make(map[string]struct{}),
		mb:   mb,
	}
	w.apply(cfg)
	return w
}

func (w *Watcher) apply(cfg config.TargetConfig) {
	w.name = cfg.Name
	w.dir = cfg.BasePath
	w.maxDepth = cfg.MaxDepth
	w.interval = cfg.Watch.PollInterval.Std()
	w.mode = cfg.Watch.Mode
	w.debounce = cfg.Watch.DebounceWindow.Std()
	w.stability = cfg.Watch.StabilityWindow.Std()
}

// Start records the current archives, then watches with the configured
// strategy until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.RLock()
	mode, dir := w.mode, w.dir
	w.mu.RUnlock()

	if mode == config.WatchOff {
		w.log.Info("rollover watching disabled", "target", w.target())
		return nil
	}

	w.detect(ctx)

	switch mode {
	case config.WatchFsnotify:
		return w.StartFsNotify(ctx)

	case config.WatchPoll:
		w.StartPolling(ctx)
		return nil

	case config.WatchAuto:
		res := fsprobe.Probe(dir)
		if res.FsnotifySupported {
			return w.StartFsNotify(ctx)
		}
		w.log.Warn("fsnotify disabled, polling instead", "target", w.target(), "reason", res.Reason)
		w.StartPolling(ctx)
		return nil

	default:
		return errors.Newf("unknown watch mode %q", mode)
	}
}
