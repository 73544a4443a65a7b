package bridge

import (
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
)

// Factory creates loggers for the bridge and tells it which Context the
// caller is currently in.
type Factory[L any] interface {
	NewLogger(name string, ctx *Context) (L, error)
	CurrentContext() *Context
}

// ContextFunc resolves the caller's current Context.
type ContextFunc func() *Context

// Metrics receives bridge activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	NamespaceCreated()
	LoggerCreated()
	LoggerCreationFailed()
}

type Option[L any] func(*Bridge[L])

// WithDefaultContext makes lookups with a nil Context fall back to ctx
// instead of failing with ErrNilContext.
func WithDefaultContext[L any](ctx *Context) Option[L] {
	return func(b *Bridge[L]) { b.fallback = ctx }
}

func WithMetrics[L any](m Metrics) Option[L] {
	return func(b *Bridge[L]) { b.metrics = m }
}

type slot[L any] struct {
	once sync.Once
	ns   *Namespace[L]
}

// Bridge is safe for concurrent use. Namespaces are never evicted, so a
// Bridge holds on to every Context it has seen.
type Bridge[L any] struct {
	factory  Factory[L]
	fallback *Context
	metrics  Metrics
	slots    sync.Map // *Context -> *slot[L]
}

func New[L any](f Factory[L], opts ...Option[L]) *Bridge[L] {
	b := &Bridge[L]{factory: f}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Logger returns the logger called name in the factory's current Context.
func (b *Bridge[L]) Logger(name string) (L, error) {
	return b.LoggerIn(name, b.factory.CurrentContext())
}

// LoggerIn returns the logger called name in ctx, creating it on first use.
// Concurrent first calls may each invoke the factory, but only one result
// is stored and all callers receive it.
func (b *Bridge[L]) LoggerIn(name string, ctx *Context) (L, error) {
	var zero L

	ns, err := b.Namespace(ctx)
	if err != nil {
		return zero, err
	}
	if l, ok := ns.Get(name); ok {
		return l, nil
	}

	l, err := b.factory.NewLogger(name, b.resolve(ctx))
	if err != nil {
		b.failed()
		return zero, &LoggerCreationError{Name: name, Context: b.resolve(ctx).String(), Err: err}
	}
	if isNil(l) {
		b.failed()
		return zero, &LoggerCreationError{Name: name, Context: b.resolve(ctx).String()}
	}

	if b.metrics != nil {
		b.metrics.LoggerCreated()
	}
	return ns.PutIfAbsent(name, l), nil
}

// Namespace returns the namespace for ctx, creating it exactly once.
func (b *Bridge[L]) Namespace(ctx *Context) (*Namespace[L], error) {
	ctx = b.resolve(ctx)
	if ctx == nil {
		return nil, ErrNilContext
	}

	v, _ := b.slots.LoadOrStore(ctx, &slot[L]{})
	s := v.(*slot[L])
	s.once.Do(func() {
		s.ns = newNamespace[L]()
		if b.metrics != nil {
			b.metrics.NamespaceCreated()
		}
	})
	return s.ns, nil
}

// HasNamespace reports whether ctx has been seen, without creating it.
func (b *Bridge[L]) HasNamespace(ctx *Context) bool {
	if ctx == nil {
		return false
	}
	_, ok := b.slots.Load(ctx)
	return ok
}

// Contexts returns the number of namespaces held.
func (b *Bridge[L]) Contexts() int {
	n := 0
	b.slots.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Verify checks that every slot holds an initialised namespace. It never
// fails on a Bridge used only through its methods.
func (b *Bridge[L]) Verify() error {
	var bad []string
	b.slots.Range(func(k, v any) bool {
		s := v.(*slot[L])
		s.once.Do(func() {})
		if s.ns == nil {
			bad = append(bad, k.(*Context).String())
		}
		return true
	})
	if len(bad) > 0 {
		return errors.Wrapf(ErrInvariant, "contexts without a namespace: %v", bad)
	}
	return nil
}

func (b *Bridge[L]) resolve(ctx *Context) *Context {
	if ctx == nil {
		return b.fallback
	}
	return ctx
}

func (b *Bridge[L]) failed() {
	if b.metrics != nil {
		b.metrics.LoggerCreationFailed()
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
