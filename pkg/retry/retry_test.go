package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBusy = errors.New("database is locked")

func isBusy(err error) bool { return errors.Is(err, errBusy) }

// instant replaces timers so tests do not sleep, recording requested delays.
func instant(delays *[]time.Duration) func(time.Duration) <-chan time.Time {
	return func(d time.Duration) <-chan time.Time {
		*delays = append(*delays, d)
		ch := make(chan time.Time, 1)
		ch <- time.Now()
		return ch
	}
}

func testConfig(delays *[]time.Duration) Config {
	return Config{
		MaxAttempts:  4,
		InitialDelay: 10 * time.Millisecond,
		MaxDelay:     100 * time.Millisecond,
		Multiplier:   2.0,
		After:        instant(delays),
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 50*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 2*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
	assert.True(t, cfg.Jitter)
	require.NoError(t, cfg.Normalize())
}

func TestCalculateDelay(t *testing.T) {
	config := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     1 * time.Second,
		Multiplier:   2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{1, 100 * time.Millisecond},
		{2, 200 * time.Millisecond},
		{3, 400 * time.Millisecond},
		{4, 800 * time.Millisecond},
		{5, 1 * time.Second}, // 1600ms, capped
		{6, 1 * time.Second},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.expected, config.calculateDelay(tt.attempt))
		})
	}
}

func TestDoSuccess(t *testing.T) {
	var delays []time.Duration
	attempts := 0

	err := Do(context.Background(), testConfig(&delays), func(context.Context) error {
		attempts++
		return nil
	}, isBusy)

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, delays)
}

func TestDoRetryableError(t *testing.T) {
	var delays []time.Duration
	attempts := 0

	err := Do(context.Background(), testConfig(&delays), func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errBusy
		}
		return nil
	}, isBusy)

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, delays)
}

func TestDoNonRetryableError(t *testing.T) {
	var delays []time.Duration
	constraint := errors.New("UNIQUE constraint failed")
	attempts := 0

	err := Do(context.Background(), testConfig(&delays), func(context.Context) error {
		attempts++
		return constraint
	}, isBusy)

	assert.Same(t, constraint, err)
	assert.Equal(t, 1, attempts)

	// A nil classifier never retries
	attempts = 0
	err = Do(context.Background(), testConfig(&delays), func(context.Context) error {
		attempts++
		return errBusy
	}, nil)
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 1, attempts)
}

func TestDoMaxAttemptsReached(t *testing.T) {
	var delays []time.Duration
	attempts := 0

	err := Do(context.Background(), testConfig(&delays), func(context.Context) error {
		attempts++
		return errBusy
	}, isBusy)

	var exceeded *RetriesExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, 4, exceeded.Attempts)
	assert.ErrorIs(t, err, errBusy)
	assert.Equal(t, 4, attempts)
	assert.Len(t, delays, 3)
	assert.Contains(t, err.Error(), "4 attempts")
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	cfg := Config{
		MaxAttempts:  5,
		InitialDelay: time.Hour,
		MaxDelay:     time.Hour,
		OnRetry:      func(int, error, time.Duration) { cancel() },
	}
	err := Do(ctx, cfg, func(context.Context) error {
		attempts++
		return errBusy
	}, isBusy)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)

	// An already canceled context never runs fn
	err = Do(ctx, cfg, func(context.Context) error {
		t.Fatal("fn must not run")
		return nil
	}, isBusy)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoContextDeadlineCapsDelay(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var delays []time.Duration
	cfg := testConfig(&delays)
	cfg.MaxAttempts = 2
	cfg.InitialDelay = time.Minute
	cfg.MaxDelay = time.Hour

	_ = Do(ctx, cfg, func(context.Context) error { return errBusy }, isBusy)

	require.Len(t, delays, 1)
	assert.LessOrEqual(t, delays[0], time.Second)
}

func TestDoInvalidConfig(t *testing.T) {
	err := Do(context.Background(), Config{}, func(context.Context) error { return nil }, isBusy)
	assert.Error(t, err)
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{"valid", Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Second, Multiplier: 2}, false},
		{"defaults filled", Config{MaxAttempts: 1, InitialDelay: time.Millisecond}, false},
		{"zero attempts", Config{MaxAttempts: 0, InitialDelay: time.Millisecond}, true},
		{"zero delay", Config{MaxAttempts: 1}, true},
		{"initial above max", Config{MaxAttempts: 1, InitialDelay: time.Minute, MaxDelay: time.Second}, true},
		{"shrinking multiplier", Config{MaxAttempts: 1, InitialDelay: time.Millisecond, Multiplier: 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.config
			err := cfg.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, cfg.Rand)
			assert.NotNil(t, cfg.After)
			assert.Positive(t, cfg.MaxDelay)
			assert.GreaterOrEqual(t, cfg.Multiplier, 1.0)
		})
	}
}

func TestJitterBounds(t *testing.T) {
	cfg := Config{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		Jitter:       true,
		Rand:         rand.New(rand.NewSource(1)),
	}

	seen := map[time.Duration]bool{}
	for range 50 {
		d := cfg.applyJitter(100 * time.Millisecond)
		assert.GreaterOrEqual(t, d, 75*time.Millisecond)
		assert.Less(t, d, 125*time.Millisecond)
		seen[d] = true
	}
	assert.Greater(t, len(seen), 1, "jitter should vary delays")

	cfg.Jitter = false
	assert.Equal(t, 100*time.Millisecond, cfg.applyJitter(100*time.Millisecond))
}

func TestOnRetryCallback(t *testing.T) {
	var delays []time.Duration
	type call struct {
		attempt int
		err     error
	}
	var calls []call

	cfg := testConfig(&delays)
	cfg.MaxAttempts = 3
	cfg.OnRetry = func(attempt int, err error, _ time.Duration) {
		calls = append(calls, call{attempt, err})
	}

	_ = Do(context.Background(), cfg, func(context.Context) error { return errBusy }, isBusy)

	assert.Equal(t, []call{{1, errBusy}, {2, errBusy}}, calls)
}
