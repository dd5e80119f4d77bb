// Package logging adapts go.uber.org/zap to the es.Logger interface.
package logging

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/ledgerlock/ledgerlock/es"
)

// ZapLogger implements es.Logger on top of a zap.SugaredLogger.
type ZapLogger struct {
	sugar *zap.SugaredLogger
}

var _ es.Logger = (*ZapLogger)(nil)

// New builds a ZapLogger for the given mode. "prod" or "production"
// selects the production config, anything else the development config.
func New(mode string) (*ZapLogger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	zapLogger, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, err
	}
	return &ZapLogger{sugar: zapLogger.Sugar()}, nil
}

// NewFrom wraps an existing zap.Logger.
func NewFrom(logger *zap.Logger) *ZapLogger {
	return &ZapLogger{sugar: logger.Sugar()}
}

// Debug implements es.Logger.
func (l *ZapLogger) Debug(_ context.Context, msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

// Info implements es.Logger.
func (l *ZapLogger) Info(_ context.Context, msg string, keysAndValues ...interface{}) {
	l.sugar.Infow(msg, keysAndValues...)
}

// Error implements es.Logger.
func (l *ZapLogger) Error(_ context.Context, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, keysAndValues...)
}

// Sync flushes buffered log entries.
func (l *ZapLogger) Sync() {
	_ = l.sugar.Sync()
}
