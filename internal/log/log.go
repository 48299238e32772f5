package log

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose atomic.Bool
	level   = zap.NewAtomicLevelAt(zapcore.InfoLevel)

	baseOnce sync.Once
	base     *zap.SugaredLogger
)

func logger() *zap.SugaredLogger {
	baseOnce.Do(func() {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = level
		cfg.DisableStacktrace = true
		l, err := cfg.Build()
		if err != nil {
			l = zap.NewNop()
		}
		base = l.Sugar()
	})
	return base
}

// EnableVerbose enables the printing of verbose logs.
func EnableVerbose() {
	verbose.Store(true)
	level.SetLevel(zapcore.DebugLevel)
}

// Printf logs at info level regardless of whether verbose logging is enabled.
func Printf(fmt string, v ...any) {
	logger().Infof(fmt, v...)
}

// Verbosef logs at debug level if verbose logging is enabled. Otherwise, it
// does nothing.
func Verbosef(fmt string, v ...any) {
	if verbose.Load() {
		logger().Debugf(fmt, v...)
	}
}

// Named returns a logger scoped to a single component.
func Named(component string) *zap.SugaredLogger {
	return logger().Named(component)
}

// Sync flushes any buffered log entries.
func Sync() {
	_ = logger().Sync()
}
