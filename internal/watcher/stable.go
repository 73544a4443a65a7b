package watcher

import (
	"context"
	"time"
)

// stable reports whether none of paths changed size over window.
func (w *Watcher) stable(ctx context.Context, paths []string, window time.Duration) bool {
	before := make(map[string]int64, len(paths))
	for _, p := range paths {
		info, err := w.fs.Stat(p)
		if err != nil {
			return false
		}
		before[p] = info.Size
	}

	t := time.NewTimer(window)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
	}

	for _, p := range paths {
		info, err := w.fs.Stat(p)
		if err != nil || info.Size != before[p] {
			return false
		}
	}
	return true
}
