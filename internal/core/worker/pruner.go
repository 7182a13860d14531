package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/docsite/internal/core/config"
	"github.com/vietddude/docsite/internal/core/metrics"
)

// Purger hard deletes rows soft deleted before a threshold.
type Purger interface {
	PurgeDeleted(ctx context.Context, before time.Time) (int64, error)
}

// PruneResult reports how many rows each table lost in one pass.
type PruneResult struct {
	Posts int64
	Users int64
}

// Pruner hard deletes soft-deleted rows once they exceed the retention period.
type Pruner struct {
	cfg   config.RetentionConfig
	posts Purger
	users Purger
	now   func() time.Time
	log   *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(cfg config.RetentionConfig, posts, users Purger) *Pruner {
	return &Pruner{
		cfg:   cfg,
		posts: posts,
		users: users,
		now:   time.Now,
		log:   slog.Default().With("component", "pruner"),
	}
}

// Interval returns the time between passes. Without an explicit interval it
// is a tenth of the retention period, clamped to [1m, 1h].
func (p *Pruner) Interval() time.Duration {
	if p.cfg.Interval > 0 {
		return p.cfg.Interval
	}
	interval := min(p.cfg.PurgeAfter/10, time.Hour)
	return max(interval, time.Minute)
}

// Start runs the pruner loop until ctx is cancelled.
func (p *Pruner) Start(ctx context.Context) {
	if p.cfg.PurgeAfter <= 0 {
		return // Retention disabled
	}

	ticker := time.NewTicker(p.Interval())
	defer ticker.Stop()

	p.run(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.run(ctx)
		}
	}
}

func (p *Pruner) run(ctx context.Context) {
	res, err := p.Prune(ctx, p.cfg.PurgeAfter)
	if err != nil {
		p.log.Error("Prune failed", "error", err)
		return
	}
	if res.Posts > 0 || res.Users > 0 {
		p.log.Info("Pruned soft-deleted rows", "posts", res.Posts, "users", res.Users)
	}
}

// Prune removes rows soft deleted more than olderThan ago. Posts go first so
// the user pass only cascades over rows that were still live.
func (p *Pruner) Prune(ctx context.Context, olderThan time.Duration) (PruneResult, error) {
	var res PruneResult
	if olderThan <= 0 {
		return res, errors.New("retention period must be positive")
	}
	threshold := p.now().UTC().Add(-olderThan)

	n, err := p.posts.PurgeDeleted(ctx, threshold)
	if err != nil {
		return res, fmt.Errorf("failed to purge posts: %w", err)
	}
	res.Posts = n
	metrics.RowsPurged.WithLabelValues("posts").Add(float64(n))

	n, err = p.users.PurgeDeleted(ctx, threshold)
	if err != nil {
		return res, fmt.Errorf("failed to purge users: %w", err)
	}
	res.Users = n
	metrics.RowsPurged.WithLabelValues("users").Add(float64(n))

	return res, nil
}
