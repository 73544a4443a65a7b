package loggers

import (
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/raoulx24/logkeeper/internal/bridge"
	"github.com/raoulx24/logkeeper/internal/logging"
)

type zapFactory struct {
	current
	core zapcore.Core
}

func NewZap(o Options) (bridge.Factory[logging.Sink], error) {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	if o.Format == logging.FormatJSON {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.Lock(zapcore.AddSync(o.Output)), zapLevel(o.Level))
	return &zapFactory{current: current{o.Current}, core: core}, nil
}

func (f *zapFactory) NewLogger(name string, ctx *bridge.Context) (logging.Sink, error) {
	l := zap.New(f.core).Sugar().With(loggerAttrs(name, ctx)...)
	return zapSink{l}, nil
}

type zapSink struct {
	l *zap.SugaredLogger
}

func (s zapSink) Debug(msg string, args ...any) { s.l.Debugw(msg, args...) }
func (s zapSink) Info(msg string, args ...any)  { s.l.Infow(msg, args...) }
func (s zapSink) Warn(msg string, args ...any)  { s.l.Warnw(msg, args...) }
func (s zapSink) Error(msg string, args ...any) { s.l.Errorw(msg, args...) }

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l < slog.LevelInfo:
		return zapcore.DebugLevel
	case l < slog.LevelWarn:
		return zapcore.InfoLevel
	case l < slog.LevelError:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
