package loggers

import (
	"log/slog"

	"github.com/raoulx24/logkeeper/internal/bridge"
	"github.com/raoulx24/logkeeper/internal/logging"
)

// slogFactory derives every logger from one base so they share a handler
// and its write lock.
type slogFactory struct {
	current
	base *slog.Logger
}

func NewSlog(o Options) (bridge.Factory[logging.Sink], error) {
	return &slogFactory{
		current: current{o.Current},
		base:    logging.New(logging.Config{Level: o.Level, Format: o.Format, Output: o.Output}),
	}, nil
}

func (f *slogFactory) NewLogger(name string, ctx *bridge.Context) (logging.Sink, error) {
	return f.base.With(loggerAttrs(name, ctx)...), nil
}
