package logger

import (
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// The messaging core logs through module-scoped children of one shared root
// logger (server, database, bootstrap, maintenance, http). The root starts as
// a nop so packages can log before Init runs.

var (
	mu   sync.RWMutex
	root = zap.NewNop()
)

// Init builds the root logger at the given level. Unknown level strings fall
// back to info rather than failing start-up.
func Init(level string) error {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.InitialFields = map[string]any{"service": "comms"}

	built, err := cfg.Build()
	if err != nil {
		return err
	}

	mu.Lock()
	root = built
	mu.Unlock()
	return nil
}

// WithModule returns a child logger tagged with the owning module's name.
func WithModule(module string) *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return root.With(zap.String("module", module))
}

// Sync flushes buffered entries, typically deferred from main.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	return root.Sync()
}
