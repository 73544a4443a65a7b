// Package loggers adapts the supported logging backends to the bridge.
//
// Every backend is registered under a name in an explicit table; the daemon
// picks one from the logging.backend setting.
package loggers

import (
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/cockroachdb/errors"

	"github.com/raoulx24/logkeeper/internal/bridge"
	"github.com/raoulx24/logkeeper/internal/logging"
)

var ErrUnknownBackend = errors.New("unknown logging backend")

// Options are shared by every backend.
type Options struct {
	Level   slog.Level
	Format  logging.Format
	Output  io.Writer
	Current bridge.ContextFunc
}

// Constructor builds a bridge factory for one backend.
type Constructor func(Options) (bridge.Factory[logging.Sink], error)

// Registry maps backend names to constructors.
type Registry struct {
	ctors map[string]Constructor
}

func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Default returns a registry with every bundled backend.
func Default() *Registry {
	r := NewRegistry()
	r.Register("slog", NewSlog)
	r.Register("zap", NewZap)
	r.Register("logrus", NewLogrus)
	r.Register("zerolog", NewZerolog)
	return r
}

func (r *Registry) Register(name string, c Constructor) {
	r.ctors[name] = c
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ctors))
	for n := range r.ctors {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Factory(name string, opts Options) (bridge.Factory[logging.Sink], error) {
	c, ok := r.ctors[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownBackend, "%q (have %v)", name, r.Names())
	}
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	return c(opts)
}

// current is embedded by every factory.
type current struct {
	fn bridge.ContextFunc
}

func (c current) CurrentContext() *bridge.Context {
	if c.fn == nil {
		return nil
	}
	return c.fn()
}

// loggerAttrs are attached to every logger a factory creates.
func loggerAttrs(name string, ctx *bridge.Context) []any {
	return []any{"logger", name, "context", ctx.Name()}
}
