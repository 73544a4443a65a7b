// Package mailbox holds the pending retention trigger of one target.
package mailbox

import (
	"context"
	"sync"
)

// Mailbox is a single-slot buffer where the latest item always wins.
// It is NOT a queue: triggers that arrive while one is pending are merged
// into it. Put never blocks; Take blocks until an item is available or the
// context is done.
type Mailbox[T any] struct {
	mu     sync.Mutex
	item   *T
	merged int
	ready  chan struct{}
	merge  func(prev, next T) T
}

type Option[T any] func(*Mailbox[T])

// WithMerge combines a pending item with a newer one instead of replacing it.
func WithMerge[T any](fn func(prev, next T) T) Option[T] {
	return func(m *Mailbox[T]) { m.merge = fn }
}

// New creates an empty mailbox.
func New[T any](opts ...Option[T]) *Mailbox[T] {
	m := &Mailbox[T]{ready: make(chan struct{}, 1)}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Put stores an item, replacing (or merging with) any pending one.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	if m.item != nil {
		m.merged++
		if m.merge != nil {
			v = m.merge(*m.item, v)
		}
	}
	m.item = &v
	m.mu.Unlock()

	select {
	case m.ready <- struct{}{}:
	default:
	}
}

// Take blocks until an item is available, then returns it and clears the
// slot. It returns ctx.Err() if ctx is done first.
func (m *Mailbox[T]) Take(ctx context.Context) (T, error) {
	for {
		if v, ok := m.TryTake(); ok {
			return v, nil
		}
		select {
		case <-m.ready:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryTake returns the pending item, if any. It never blocks.
func (m *Mailbox[T]) TryTake() (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.item == nil {
		var zero T
		return zero, false
	}
	v := *m.item
	m.item = nil
	return v, true
}

// HasJob reports whether an item is currently waiting.
func (m *Mailbox[T]) HasJob() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.item != nil
}

// Merged returns how many items were folded into a pending one.
func (m *Mailbox[T]) Merged() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.merged
}
