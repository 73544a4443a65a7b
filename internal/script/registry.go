package script

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
)

// Bindings are the named values a script sees at execution time.
type Bindings map[string]any

// Well-known binding names.
const (
	BindBasePath      = "basePath"
	BindPathList      = "pathList"
	BindConfiguration = "configuration"
	BindSubstitutor   = "substitutor"
	BindDiagnostics   = "diagnostics"
)

// Engine executes one script against a set of bindings.
type Engine interface {
	Execute(ctx context.Context, s Script, b Bindings) (any, error)
}

// Gateway is the part of a Registry that retention conditions depend on.
type Gateway interface {
	Register(s Script) error
	Lookup(name string) (Script, bool)
	Execute(ctx context.Context, name string, b Bindings) (any, error)
}

// Registry holds declared scripts and the engines that run them.
type Registry struct {
	mu      sync.RWMutex
	scripts map[string]Script
	engines map[string]Engine
}

func NewRegistry() *Registry {
	return &Registry{
		scripts: make(map[string]Script),
		engines: make(map[string]Engine),
	}
}

// RegisterEngine binds a language name to an engine, replacing any
// previous binding.
func (r *Registry) RegisterEngine(language string, e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[normalizeLanguage(language)] = e
}

// Register stores s under its name. A later registration with the same
// name replaces the earlier one.
func (r *Registry) Register(s Script) error {
	if s == nil {
		return ErrNilScript
	}
	if IsRef(s) {
		return errors.Wrapf(ErrRefNotAllowed, "script %q", s.Name())
	}
	if s.Name() == "" {
		return ErrMissingName
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[s.Language()]; !ok {
		return errors.Wrapf(ErrUnknownLanguage, "script %q uses %q", s.Name(), s.Language())
	}
	r.scripts[s.Name()] = s
	return nil
}

func (r *Registry) Lookup(name string) (Script, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.scripts[name]
	return s, ok
}

// Names returns the registered script names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.scripts))
	for n := range r.scripts {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute runs the script registered under name.
func (r *Registry) Execute(ctx context.Context, name string, b Bindings) (any, error) {
	r.mu.RLock()
	s, ok := r.scripts[name]
	var e Engine
	if ok {
		e = r.engines[s.Language()]
	}
	r.mu.RUnlock()

	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "script %q", name)
	}
	if e == nil {
		return nil, errors.Wrapf(ErrUnknownLanguage, "script %q uses %q", name, s.Language())
	}
	return e.Execute(ctx, s, b)
}
