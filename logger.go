package main

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logger is the process-wide SugaredLogger. It is a no-op until
// initLogger runs so early code paths can log safely.
var logger *zap.SugaredLogger = zap.NewNop().Sugar()

func initLogger(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	l, err := cfg.Build()
	if err != nil {
		return err
	}
	logger = l.Sugar()
	return nil
}
