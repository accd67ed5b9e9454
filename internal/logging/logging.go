// Package logging provides the process-wide structured logger.
//
// The rest of the codebase never constructs its own *zap.Logger; it calls
// L() and holds the returned *zap.SugaredLogger for the lifetime of the
// component. Before Init is called, L() returns a no-op logger so that
// tests and early bootstrap code never crash on a nil logger.
package logging

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var current atomic.Pointer[zap.SugaredLogger]

func init() {
	current.Store(zap.NewNop().Sugar())
}

// Init configures the process-wide logger. level is one of "debug", "info",
// "warn", "error"; an unrecognized value falls back to "info" and logs a
// warning, matching the teacher's clamp-and-warn config idiom.
func Init(level string, development bool) error {
	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		cfg.Level.SetLevel(zap.InfoLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return err
	}
	current.Store(logger.Sugar())
	if level != "" && cfg.Level.Level().String() != level {
		L().Warnf("unrecognized LOG_LEVEL %q, using %q", level, cfg.Level.Level().String())
	}
	return nil
}

// L returns the current process-wide sugared logger.
func L() *zap.SugaredLogger {
	return current.Load()
}

// Sync flushes any buffered log entries. Call on shutdown.
func Sync() {
	_ = L().Sync()
}
