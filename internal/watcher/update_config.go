package watcher

import (
	"github.com/raoulx24/logkeeper/internal/config"
)

// UpdateConfig updates watcher fields atomically for hot-reload. A new
// watch mode, or a new directory under fsnotify, takes effect on the next
// Start.
func (w *Watcher) UpdateConfig(cfg config.TargetConfig) {
	w.mu.Lock()
	defer w.mu.Unlock()

	dirChanged := cfg.BasePath != w.dir || cfg.MaxDepth != w.maxDepth
	if cfg.Watch.Mode != w.mode {
		w.log.Warn("watch mode change needs a restart", "target", cfg.Name, "from", w.mode, "to", cfg.Watch.Mode)
	}

	mode := w.mode
	w.apply(cfg)
	w.mode = mode

	if dirChanged {
		w.seen = make(map[string]struct{})
		w.primed = false
	}
}
