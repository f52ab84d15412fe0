// Package logging constructs the service logger. All packages depend on the
// ectologger.Logger interface; the sink behind it is a zap logger so output is
// structured JSON with sane timestamps and level handling.
package logging

import (
	"github.com/Gobusters/ectologger"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger builds the service logger. level is one of debug/info/warn/error;
// pretty switches to the console encoder for local development.
func NewLogger(level string, pretty bool) (ectologger.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if pretty {
		zcfg = zap.NewDevelopmentConfig()
	}

	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(lvl)

	zlog, err := zcfg.Build(zap.WithCaller(false))
	if err != nil {
		return nil, err
	}

	logger := ectologger.NewEctoLogger(func(msg ectologger.EctoLogMessage) {
		zlog.Info("log", zap.Any("entry", msg))
	})

	return logger, nil
}

// NewNopLogger returns a logger that discards everything. Used in tests.
func NewNopLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}
