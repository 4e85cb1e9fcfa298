package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetryConfig(4), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(eris.New("service unavailable"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	permanent := eris.New("bad request")

	var calls int
	err := Do(context.Background(), fastRetryConfig(4), func(ctx context.Context) error {
		calls++
		return permanent
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoExhaustsAttempts(t *testing.T) {
	var calls int
	err := Do(context.Background(), fastRetryConfig(3), func(ctx context.Context) error {
		calls++
		return NewTransientError(eris.New("timeout"), 504)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	var calls int
	err := Do(ctx, fastRetryConfig(10), func(ctx context.Context) error {
		calls++
		cancel()
		return NewTransientError(eris.New("reset"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoCustomShouldRetry(t *testing.T) {
	cfg := fastRetryConfig(3)
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "again" }

	var calls int
	err := Do(context.Background(), cfg, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return eris.New("again")
		}
		return eris.New("done")
	})
	require.Error(t, err)
	assert.Equal(t, "done", err.Error())
	assert.Equal(t, 2, calls)
}

func TestDoOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := fastRetryConfig(3)
	cfg.OnRetry = func(attempt int, err error) { attempts = append(attempts, attempt) }

	_ = Do(context.Background(), cfg, func(ctx context.Context) error {
		return NewTransientError(eris.New("flaky"), 500)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestDoValReturnsValue(t *testing.T) {
	var calls int
	got, err := DoVal(context.Background(), fastRetryConfig(4), func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", NewTransientError(eris.New("retry me"), 429)
		}
		return "hello", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
	assert.Equal(t, 2, calls)
}

func TestDoValReturnsZeroOnFailure(t *testing.T) {
	got, err := DoVal(context.Background(), fastRetryConfig(2), func(ctx context.Context) (int, error) {
		return 42, eris.New("permanent")
	})
	require.Error(t, err)
	assert.Zero(t, got)
}

func TestComputeBackoffGrowth(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		JitterFraction: 0,
	})

	assert.Equal(t, 100*time.Millisecond, computeBackoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, computeBackoff(1, cfg))
	assert.Equal(t, 400*time.Millisecond, computeBackoff(2, cfg))
	// Capped at MaxBackoff.
	assert.Equal(t, time.Second, computeBackoff(10, cfg))
}

func TestBackoffForRateLimited(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		JitterFraction: 0,
	})

	assert.Equal(t, 100*time.Millisecond, backoffFor(0, cfg, eris.New("boom")))
	assert.Equal(t, 200*time.Millisecond, backoffFor(0, cfg, NewTransientError(eris.New("throttled"), 429)))
	// Doubling never exceeds MaxBackoff.
	assert.Equal(t, time.Second, backoffFor(4, cfg, NewTransientError(eris.New("throttled"), 429)))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(NewTransientError(eris.New("oops"), 500)))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(eris.New("oops"), 503), "outer")))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
	assert.True(t, IsTransient(eris.New("dial tcp: i/o timeout")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "status %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "status %d", code)
	}
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(NewTransientError(eris.New("slow down"), 429)))
	assert.False(t, IsRateLimited(NewTransientError(eris.New("oops"), 500)))
	assert.False(t, IsRateLimited(eris.New("plain")))
}
