package script

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// Func is a script implemented in Go.
type Func func(ctx context.Context, b Bindings) (any, error)

// FuncEngine runs Go functions registered by name. A script in the "go"
// language names its function in its source; an empty source falls back
// to the script's own name.
type FuncEngine struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewFuncEngine() *FuncEngine {
	return &FuncEngine{funcs: make(map[string]Func)}
}

func (e *FuncEngine) Define(name string, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[name] = fn
}

func (e *FuncEngine) Execute(ctx context.Context, s Script, b Bindings) (any, error) {
	key := s.Source()
	if key == "" {
		key = s.Name()
	}

	e.mu.RLock()
	fn, ok := e.funcs[key]
	e.mu.RUnlock()
	if !ok {
		return nil, errors.Newf("no Go function %q for script %q", key, s.Name())
	}
	return fn(ctx, b)
}
