package bridge

import (
	"sort"
	"sync"
)

// Namespace is the set of loggers belonging to one Context. Entries are
// never removed.
type Namespace[L any] struct {
	mu      sync.RWMutex
	loggers map[string]L
}

func newNamespace[L any]() *Namespace[L] {
	return &Namespace[L]{loggers: make(map[string]L)}
}

func (n *Namespace[L]) Get(name string) (L, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	l, ok := n.loggers[name]
	return l, ok
}

// Put stores l under name, replacing any previous entry.
func (n *Namespace[L]) Put(name string, l L) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.loggers[name] = l
}

// PutIfAbsent stores l unless name is already present, and returns the
// entry that ends up stored.
func (n *Namespace[L]) PutIfAbsent(name string, l L) L {
	n.mu.Lock()
	defer n.mu.Unlock()
	if cur, ok := n.loggers[name]; ok {
		return cur
	}
	n.loggers[name] = l
	return l
}

func (n *Namespace[L]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.loggers)
}

// Names returns the stored logger names in sorted order.
func (n *Namespace[L]) Names() []string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	names := make([]string, 0, len(n.loggers))
	for k := range n.loggers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
