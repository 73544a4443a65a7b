package loggers

import (
	"log/slog"

	"github.com/rs/zerolog"

	"github.com/raoulx24/logkeeper/internal/bridge"
	"github.com/raoulx24/logkeeper/internal/logging"
)

type zerologFactory struct {
	current
	base zerolog.Logger
}

func NewZerolog(o Options) (bridge.Factory[logging.Sink], error) {
	// zerolog leaves locking to the writer
	out := zerolog.SyncWriter(o.Output)
	if o.Format != logging.FormatJSON {
		out = zerolog.ConsoleWriter{Out: out, NoColor: true}
	}
	base := zerolog.New(out).Level(zerologLevel(o.Level)).With().Timestamp().Logger()
	return &zerologFactory{current: current{o.Current}, base: base}, nil
}

func (f *zerologFactory) NewLogger(name string, ctx *bridge.Context) (logging.Sink, error) {
	l := f.base.With().Fields(loggerAttrs(name, ctx)).Logger()
	return zerologSink{l}, nil
}

type zerologSink struct {
	l zerolog.Logger
}

func (s zerologSink) Debug(msg string, args ...any) { s.l.Debug().Fields(args).Msg(msg) }
func (s zerologSink) Info(msg string, args ...any)  { s.l.Info().Fields(args).Msg(msg) }
func (s zerologSink) Warn(msg string, args ...any)  { s.l.Warn().Fields(args).Msg(msg) }
func (s zerologSink) Error(msg string, args ...any) { s.l.Error().Fields(args).Msg(msg) }

func zerologLevel(l slog.Level) zerolog.Level {
	switch {
	case l < slog.LevelInfo:
		return zerolog.DebugLevel
	case l < slog.LevelWarn:
		return zerolog.InfoLevel
	case l < slog.LevelError:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
