package watcher

import (
	"context"
	iofs "io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// StartFsNotify runs detect() once events under the base directory have
// been quiet for the debounce window. Subdirectories are watched down to
// maxDepth, including ones created while running.
func (w *Watcher) StartFsNotify(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	w.mu.RLock()
	dir, maxDepth := filepath.Clean(w.dir), w.maxDepth
	debounce := w.debounce
	w.mu.RUnlock()
	if maxDepth <= 0 {
		maxDepth = 1
	}

	if err := watcher.Add(dir); err != nil {
		return err
	}
	w.watchTree(watcher, dir, dir, maxDepth)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				w.log.Error("events channel closed", "target", w.target())
				return nil
			}

			w.log.Debug("event", "name", ev.Name, "op", ev.Op)

			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				w.watchTree(watcher, dir, ev.Name, maxDepth)
			}

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.detect(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Error("fsnotify error", "target", w.target(), "error", err)
		}
	}
}

// watchTree adds every directory under start whose files are within
// maxDepth of root. start itself is skipped when it is root or not a
// directory.
func (w *Watcher) watchTree(watcher *fsnotify.Watcher, root, start string, maxDepth int) {
	_ = filepath.WalkDir(start, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		if depthOf(root, path) >= maxDepth {
			return filepath.SkipDir
		}
		if path == root {
			return nil
		}
		if err := watcher.Add(path); err != nil {
			w.log.Warn("cannot watch subdirectory", "target", w.target(), "dir", path, "error", err)
			return filepath.SkipDir
		}
		return nil
	})
}

// depthOf counts the path elements between root and path.
func depthOf(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}
