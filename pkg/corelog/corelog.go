// Package corelog adapts go.uber.org/zap to the core.Logger interface so the
// rest of the tree depends on core.Logger, never on zap directly.
package corelog

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hushcore/hushcore/pkg/core"
)

// ZapLogger is the concrete core.Logger backing implementation.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

// New builds a production-configured zap logger (JSON encoding, ISO8601
// timestamps) at the given level ("debug", "info", "warn", "error").
func New(level string) (*ZapLogger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		lvl = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.Level = lvl

	l, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: l.Sugar()}, nil
}

// NewDevelopment builds a human-readable console logger, used in tests.
func NewDevelopment() *ZapLogger {
	l, err := zap.NewDevelopment()
	if err != nil {
		l = zap.NewNop()
	}
	return &ZapLogger{sugar: l.Sugar()}
}

func (z *ZapLogger) Debug(msg string, args ...interface{}) { z.sugar.Debugw(msg, args...) }
func (z *ZapLogger) Info(msg string, args ...interface{})  { z.sugar.Infow(msg, args...) }
func (z *ZapLogger) Warn(msg string, args ...interface{})  { z.sugar.Warnw(msg, args...) }
func (z *ZapLogger) Error(msg string, args ...interface{}) { z.sugar.Errorw(msg, args...) }

// Sync flushes any buffered log entries; call before process exit.
func (z *ZapLogger) Sync() error { return z.sugar.Sync() }

var _ core.Logger = (*ZapLogger)(nil)
