// Package querylog times data-access calls and reports them through slog and
// Prometheus.
package querylog

import (
	"context"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/vietddude/docsite/internal/core/dberr"
	"github.com/vietddude/docsite/internal/core/metrics"
)

const maxDescriptionLen = 200

// Config controls which events are logged.
type Config struct {
	Enabled            bool          `yaml:"enabled"`
	LogSlowQueries     bool          `yaml:"log_slow_queries"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold"`
	LogErrors          bool          `yaml:"log_errors"`
}

// DefaultConfig returns the defaults for an environment. Logging is only on
// in development.
func DefaultConfig(environment string) Config {
	return Config{
		Enabled:            environment == "development",
		LogSlowQueries:     true,
		SlowQueryThreshold: 100 * time.Millisecond,
		LogErrors:          true,
	}
}

// Logger reports timed operations. A nil *Logger still records metrics.
type Logger struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a query logger writing to logger, or slog.Default() when nil.
func New(cfg Config, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{cfg: cfg, logger: logger}
}

// Op identifies a tracked call. Name is a stable metric label; Description
// is free text for logs.
type Op struct {
	Name        string
	Description string
}

// Track runs fn and reports its duration. The result and error are returned
// untouched.
func Track[T any](ctx context.Context, l *Logger, op Op, fn func(ctx context.Context) (T, error)) (T, error) {
	start := time.Now()
	result, err := fn(ctx)
	l.Query(ctx, op, time.Since(start), err)
	return result, err
}

// Query reports a single finished call.
func (l *Logger) Query(ctx context.Context, op Op, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
		metrics.DBQueryErrors.WithLabelValues(op.Name, kindLabel(err)).Inc()
	}
	metrics.DBQueryDuration.WithLabelValues(op.Name, outcome).Observe(duration.Seconds())

	if l == nil || !l.cfg.Enabled {
		return
	}

	desc := truncate(op.Description)
	switch {
	case err != nil:
		if l.cfg.LogErrors {
			l.logger.ErrorContext(ctx, "db query failed",
				"operation", op.Name,
				"query", desc,
				"duration", duration,
				"error", err.Error(),
			)
		}
	case l.cfg.LogSlowQueries && duration >= l.cfg.SlowQueryThreshold:
		l.logger.WarnContext(ctx, "slow query",
			"operation", op.Name,
			"query", desc,
			"duration", duration,
			"threshold", l.cfg.SlowQueryThreshold,
		)
	default:
		l.logger.InfoContext(ctx, "db query",
			"operation", op.Name,
			"query", desc,
			"duration", duration,
		)
	}
}

// Transaction reports a whole unit of work including its retries.
func (l *Logger) Transaction(ctx context.Context, operation string, duration time.Duration, attempts int, err error) {
	if l == nil || !l.cfg.Enabled {
		return
	}
	if err != nil {
		if l.cfg.LogErrors {
			l.logger.ErrorContext(ctx, "db transaction failed",
				"operation", operation,
				"duration", duration,
				"attempts", attempts,
				"error", err.Error(),
			)
		}
		return
	}
	l.logger.InfoContext(ctx, "db transaction",
		"operation", operation,
		"duration", duration,
		"attempts", attempts,
	)
}

func kindLabel(err error) string {
	if kind := dberr.KindOf(err); kind != "" {
		return string(kind)
	}
	return "UNKNOWN"
}

// truncate cuts s to at most maxDescriptionLen bytes without splitting a rune.
func truncate(s string) string {
	if len(s) <= maxDescriptionLen {
		return s
	}
	cut := maxDescriptionLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
