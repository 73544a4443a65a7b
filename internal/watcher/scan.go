package watcher

import (
	"context"
)

// scan returns the files that appeared since the last scan. Files that are
// only written to, like the live log, never count. The first scan only
// records what exists and returns nothing.
func (w *Watcher) scan(ctx context.Context) []string {
	w.mu.RLock()
	dir, depth := w.dir, w.maxDepth
	w.mu.RUnlock()

	files, err := w.fs.Scan(ctx, dir, depth)
	if err != nil {
		w.log.Warn("watcher: scan failed", "target", w.target(), "dir", dir, "error", err)
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	current := make(map[string]struct{}, len(files))
	var fresh []string
	for _, f := range files {
		current[f.Path] = struct{}{}
		if _, ok := w.seen[f.Path]; w.primed && !ok {
			fresh = append(fresh, f.Path)
		}
	}
	// deleted archives drop out so a recreated name counts again
	w.seen = current
	w.primed = true
	return fresh
}

// forget makes paths count as new on the next scan.
func (w *Watcher) forget(paths []string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, p := range paths {
		delete(w.seen, p)
	}
}
