package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
	}
}

func TestDoValRetriesTransient(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastPolicy(3), func(_ context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, NewTransientError(eris.New("flaky"), 503)
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, val)
	assert.Equal(t, 3, calls)
}

func TestDoValStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastPolicy(5), func(_ context.Context) (int, error) {
		calls++
		return 0, eris.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastPolicy(3), func(_ context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("down"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoValContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := DoVal(ctx, fastPolicy(5), func(_ context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("down"), 502)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValCustomShouldRetry(t *testing.T) {
	p := fastPolicy(3)
	p.ShouldRetry = func(error) bool { return true }

	calls := 0
	_, err := DoVal(context.Background(), p, func(_ context.Context) (int, error) {
		calls++
		return 0, eris.New("normally permanent")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoValOnRetryCallback(t *testing.T) {
	p := fastPolicy(3)
	var attempts []int
	p.OnRetry = func(attempt int, _ error) { attempts = append(attempts, attempt) }

	_, _ = DoVal(context.Background(), p, func(_ context.Context) (int, error) {
		return 0, NewTransientError(eris.New("down"), 502)
	})
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	p := Policy{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
	}.withDefaults()

	assert.Equal(t, 100*time.Millisecond, p.backoff(0))
	assert.Equal(t, 200*time.Millisecond, p.backoff(1))
	assert.Equal(t, 300*time.Millisecond, p.backoff(2))
	assert.Equal(t, 300*time.Millisecond, p.backoff(6))
}

func TestBackoffJitterStaysInRange(t *testing.T) {
	p := Policy{
		MaxAttempts:    3,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.5,
	}.withDefaults()

	for i := 0; i < 50; i++ {
		d := p.backoff(0)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}
