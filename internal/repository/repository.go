// Package repository exposes user and post persistence with validation,
// retries, query logging and typed errors on top of a storage backend.
package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/docsite/internal/core/dberr"
	"github.com/vietddude/docsite/internal/core/metrics"
	"github.com/vietddude/docsite/internal/core/querylog"
	"github.com/vietddude/docsite/internal/core/retry"
	"github.com/vietddude/docsite/internal/infra/events"
	"github.com/vietddude/docsite/internal/infra/storage"
)

// Option configures a repository.
type Option func(*base)

// WithRetry sets the retry policy for mutations.
func WithRetry(cfg retry.Config) Option {
	return func(b *base) { b.retry = cfg }
}

// WithQueryLogger sets the query logger.
func WithQueryLogger(l *querylog.Logger) Option {
	return func(b *base) { b.ql = l }
}

// WithClock overrides the time source for created/updated/deleted timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *base) { b.now = now }
}

// WithPublisher sets where domain events go.
func WithPublisher(p events.Publisher) Option {
	return func(b *base) { b.events = p }
}

// WithLogger sets the logger for retries and event failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *base) { b.logger = l }
}

// base carries what both repositories share.
type base struct {
	retry  retry.Config
	ql     *querylog.Logger
	now    func() time.Time
	events events.Publisher
	logger *slog.Logger
}

func newBase(opts []Option) base {
	b := base{
		retry:  retry.DefaultConfig(),
		now:    time.Now,
		events: events.Nop{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// timestamp returns the current time at the precision the database keeps.
func (b *base) timestamp() time.Time {
	return b.now().UTC().Truncate(time.Microsecond)
}

// publish sends an event. Delivery failures are logged and never fail the
// operation that produced the event.
func (b *base) publish(ctx context.Context, event events.Event) {
	if err := b.events.Publish(ctx, event); err != nil {
		b.logger.WarnContext(ctx, "Failed to publish event", "type", event.Type, "error", err)
	}
}

// query runs a read under the query logger.
func query[T any](ctx context.Context, b *base, op querylog.Op, fn func(ctx context.Context) (T, error)) (T, error) {
	return querylog.Track(ctx, b.ql, op, classified(fn))
}

// mutate runs a write under the retry executor with the query logger inside it.
func mutate[T any](ctx context.Context, b *base, op querylog.Op, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg := b.retry
	hook := cfg.OnRetry
	cfg.OnRetry = func(attempt int, err error) {
		metrics.DBRetries.WithLabelValues(op.Name).Inc()
		b.logger.WarnContext(ctx, "Retrying database operation",
			"operation", op.Name,
			"attempt", attempt,
			"error", err,
		)
		if hook != nil {
			hook(attempt, err)
		}
	}

	attempts := 0
	start := time.Now()
	result, err := retry.Do(ctx, cfg, func(ctx context.Context) (T, error) {
		attempts++
		return querylog.Track(ctx, b.ql, op, classified(fn))
	})
	b.ql.Transaction(ctx, op.Name, time.Since(start), attempts, err)
	return result, err
}

func classified[T any](fn func(ctx context.Context) (T, error)) func(ctx context.Context) (T, error) {
	return func(ctx context.Context) (T, error) {
		result, err := fn(ctx)
		return result, dberr.Classify(err)
	}
}

// constraintFields maps constraint names, and the table.column form sqlite
// reports, to input field names.
var constraintFields = map[string]string{
	storage.ConstraintUserEmail:  "email",
	"users.email":                "email",
	storage.ConstraintPostSlug:   "slug",
	"posts.slug":                 "slug",
	storage.ConstraintPostAuthor: "userId",
}

func fieldFor(constraint, fallback string) string {
	if field, ok := constraintFields[constraint]; ok {
		return field
	}
	return fallback
}

// conflict rewrites a classified unique violation into a client-facing conflict.
func conflict(e *dberr.Error, fallbackField, message string) *dberr.Error {
	return &dberr.Error{
		Kind:       dberr.KindConflict,
		Code:       e.Code,
		Field:      fieldFor(e.Constraint, fallbackField),
		Constraint: e.Constraint,
		Message:    message,
		Err:        e.Err,
	}
}
