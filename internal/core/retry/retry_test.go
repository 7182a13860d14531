package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietddude/docsite/internal/core/dberr"
)

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	orig := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = orig })
	return &delays
}

func TestDo_SucceedsFirstTime(t *testing.T) {
	delays := stubSleep(t)

	calls := 0
	got, err := Do(context.Background(), DefaultConfig(), func(context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestDo_NonTransientStopsImmediately(t *testing.T) {
	delays := stubSleep(t)

	for _, opErr := range []error{
		dberr.Conflict("email", "taken"),
		dberr.Validation("name", "required"),
		dberr.NotFound("User", "1"),
		errors.New("unclassified"),
	} {
		calls := 0
		_, err := Do(context.Background(), DefaultConfig(), func(context.Context) (int, error) {
			calls++
			return 0, opErr
		})
		assert.Same(t, opErr, err)
		assert.Equal(t, 1, calls, "err=%v", opErr)
	}
	assert.Empty(t, *delays)
}

func TestDo_RecoversAfterTransientFailure(t *testing.T) {
	delays := stubSleep(t)

	var retried []int
	cfg := DefaultConfig()
	cfg.OnRetry = func(attempt int, err error) { retried = append(retried, attempt) }

	calls := 0
	got, err := Do(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, dberr.Connection("connection reset", nil)
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, *delays)
}

func TestDo_ExhaustionReturnsLastError(t *testing.T) {
	delays := stubSleep(t)

	cfg := Config{
		MaxAttempts:       5,
		InitialDelay:      100 * time.Millisecond,
		MaxDelay:          300 * time.Millisecond,
		BackoffMultiplier: 2,
	}

	calls := 0
	var last error
	_, err := Do(context.Background(), cfg, func(context.Context) (struct{}, error) {
		calls++
		last = dberr.Transaction("deadlock", "40P01", nil)
		return struct{}{}, last
	})

	assert.Same(t, last, err)
	assert.Equal(t, dberr.KindTransaction, dberr.KindOf(err))
	assert.Equal(t, 5, calls)
	require.Len(t, *delays, 4)
	for i := 1; i < len(*delays); i++ {
		assert.GreaterOrEqual(t, (*delays)[i], (*delays)[i-1])
		assert.LessOrEqual(t, (*delays)[i], cfg.MaxDelay)
	}
}

func TestDo_CancelledContextStopsWaiting(t *testing.T) {
	stubSleep(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Do(ctx, DefaultConfig(), func(context.Context) (int, error) {
		calls++
		return 0, dberr.Connection("down", nil)
	})

	assert.Equal(t, dberr.KindConnection, dberr.KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestBackoff(t *testing.T) {
	cfg := Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, BackoffMultiplier: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, time.Second},
		{10, time.Second},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Backoff(tt.attempt, cfg), "attempt %d", tt.attempt)
	}
}

func TestDo_ZeroFieldsUseDefaults(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		calls  int
		delays []time.Duration
	}{
		{"empty config", Config{}, 3, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}},
		{"attempts only", Config{MaxAttempts: 3}, 3, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}},
		{"custom delay", Config{MaxAttempts: 4, InitialDelay: 300 * time.Millisecond}, 4,
			[]time.Duration{300 * time.Millisecond, 600 * time.Millisecond, time.Second}},
		{"single attempt", Config{MaxAttempts: 1}, 1, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delays := stubSleep(t)

			calls := 0
			_, err := Do(context.Background(), tt.cfg, func(context.Context) (int, error) {
				calls++
				return 0, dberr.Connection("connection reset", nil)
			})

			assert.Equal(t, dberr.KindConnection, dberr.KindOf(err))
			assert.Equal(t, tt.calls, calls)
			if tt.delays == nil {
				assert.Empty(t, *delays)
			} else {
				assert.Equal(t, tt.delays, *delays)
			}
		})
	}
}

func TestDefaultConfigIsACopy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxAttempts = 10
	assert.Equal(t, 3, DefaultConfig().MaxAttempts)
}
