package loggers

import (
	"fmt"
	"log/slog"

	"github.com/sirupsen/logrus"

	"github.com/raoulx24/logkeeper/internal/bridge"
	"github.com/raoulx24/logkeeper/internal/logging"
)

type logrusFactory struct {
	current
	base *logrus.Logger
}

func NewLogrus(o Options) (bridge.Factory[logging.Sink], error) {
	base := logrus.New()
	base.SetOutput(o.Output)
	base.SetLevel(logrusLevel(o.Level))
	if o.Format == logging.FormatJSON {
		base.SetFormatter(&logrus.JSONFormatter{})
	} else {
		base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
	}
	return &logrusFactory{current: current{o.Current}, base: base}, nil
}

func (f *logrusFactory) NewLogger(name string, ctx *bridge.Context) (logging.Sink, error) {
	return logrusSink{f.base.WithFields(fields(loggerAttrs(name, ctx)))}, nil
}

type logrusSink struct {
	e *logrus.Entry
}

func (s logrusSink) Debug(msg string, args ...any) { s.e.WithFields(fields(args)).Debug(msg) }
func (s logrusSink) Info(msg string, args ...any)  { s.e.WithFields(fields(args)).Info(msg) }
func (s logrusSink) Warn(msg string, args ...any)  { s.e.WithFields(fields(args)).Warn(msg) }
func (s logrusSink) Error(msg string, args ...any) { s.e.WithFields(fields(args)).Error(msg) }

// fields pairs up slog-style key/value arguments. A trailing key without a
// value is reported under "!BADKEY", as slog does.
func fields(args []any) logrus.Fields {
	f := make(logrus.Fields, len(args)/2)
	for i := 0; i < len(args); i += 2 {
		if i+1 == len(args) {
			f["!BADKEY"] = args[i]
			break
		}
		f[fmt.Sprint(args[i])] = args[i+1]
	}
	return f
}

func logrusLevel(l slog.Level) logrus.Level {
	switch {
	case l < slog.LevelInfo:
		return logrus.DebugLevel
	case l < slog.LevelWarn:
		return logrus.InfoLevel
	case l < slog.LevelError:
		return logrus.WarnLevel
	default:
		return logrus.ErrorLevel
	}
}
