package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/docsite/internal/core/config"
)

type recordingPurger struct {
	n      int64
	err    error
	before []time.Time
}

func (r *recordingPurger) PurgeDeleted(_ context.Context, before time.Time) (int64, error) {
	r.before = append(r.before, before)
	return r.n, r.err
}

func TestPruneUsesThreshold(t *testing.T) {
	posts := &recordingPurger{n: 3}
	users := &recordingPurger{n: 1}
	p := NewPruner(config.RetentionConfig{PurgeAfter: 24 * time.Hour}, posts, users)
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }

	res, err := p.Prune(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, PruneResult{Posts: 3, Users: 1}, res)

	want := now.Add(-24 * time.Hour)
	assert.Equal(t, []time.Time{want}, posts.before)
	assert.Equal(t, []time.Time{want}, users.before)
}

func TestPruneStopsOnPostFailure(t *testing.T) {
	posts := &recordingPurger{err: errors.New("disk full")}
	users := &recordingPurger{}
	p := NewPruner(config.RetentionConfig{PurgeAfter: time.Hour}, posts, users)

	_, err := p.Prune(context.Background(), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to purge posts")
	assert.Empty(t, users.before)
}

func TestPruneRejectsNonPositiveRetention(t *testing.T) {
	p := NewPruner(config.RetentionConfig{}, &recordingPurger{}, &recordingPurger{})
	_, err := p.Prune(context.Background(), 0)
	assert.Error(t, err)
}

func TestInterval(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.RetentionConfig
		want time.Duration
	}{
		{"explicit", config.RetentionConfig{PurgeAfter: 30 * 24 * time.Hour, Interval: 5 * time.Minute}, 5 * time.Minute},
		{"capped at an hour", config.RetentionConfig{PurgeAfter: 30 * 24 * time.Hour}, time.Hour},
		{"at least a minute", config.RetentionConfig{PurgeAfter: time.Minute}, time.Minute},
		{"tenth of retention", config.RetentionConfig{PurgeAfter: 5 * time.Hour}, 30 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPruner(tt.cfg, &recordingPurger{}, &recordingPurger{})
			assert.Equal(t, tt.want, p.Interval())
		})
	}
}

func TestStartDisabledReturnsImmediately(t *testing.T) {
	posts := &recordingPurger{}
	p := NewPruner(config.RetentionConfig{}, posts, &recordingPurger{})

	done := make(chan struct{})
	go func() {
		p.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return with retention disabled")
	}
	assert.Empty(t, posts.before)
}

func TestStartRunsImmediately(t *testing.T) {
	posts := &recordingPurger{}
	p := NewPruner(config.RetentionConfig{PurgeAfter: time.Hour}, posts, &recordingPurger{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	cancel()
	<-done
	assert.Len(t, posts.before, 1)
}
