package lsp

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
)

var GlobalAtomicLeveler = &AtomicLeveler{}

type AtomicLeveler struct {
	level atomic.Int32
}

func (a *AtomicLeveler) SetLevel(level slog.Level) {
	a.level.Store(int32(level))
}

// Level implements slog.Leveler.
func (a *AtomicLeveler) Level() slog.Level {
	return slog.Level(a.level.Load())
}

var _ slog.Leveler = (*AtomicLeveler)(nil)

func ParseLogLevel(level string) (slog.Level, bool) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "err", "error":
		return slog.LevelError, true
	default:
		return 0, false
	}
}

// applyLogLevel sets the global level from a settings value. An empty value
// leaves the level unchanged.
func applyLogLevel(level string) error {
	if level == "" {
		return nil
	}
	l, ok := ParseLogLevel(level)
	if !ok {
		return fmt.Errorf("unknown log level %q", level)
	}
	if GlobalAtomicLeveler.Level() != l {
		slog.Info("log level changed", "level", l)
		GlobalAtomicLeveler.SetLevel(l)
	}
	return nil
}
