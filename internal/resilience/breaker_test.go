package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transientErr() error {
	return NewTransientError(eris.New("upstream down"), 503)
}

func TestBreakerOpensAtThreshold(t *testing.T) {
	b := NewBreaker("test", 3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		assert.Equal(t, BreakerClosed, b.State())
		_ = b.Execute(ctx, func(_ context.Context) error { return transientErr() })
	}
	assert.Equal(t, BreakerOpen, b.State())

	err := b.Execute(ctx, func(_ context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreakerIgnoresPermanentErrors(t *testing.T) {
	b := NewBreaker("test", 2, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_ = b.Execute(ctx, func(_ context.Context) error { return eris.New("bad input") })
	}
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerSuccessResetsCount(t *testing.T) {
	b := NewBreaker("test", 2, time.Minute)
	ctx := context.Background()

	_ = b.Execute(ctx, func(_ context.Context) error { return transientErr() })
	_ = b.Execute(ctx, func(_ context.Context) error { return nil })
	_ = b.Execute(ctx, func(_ context.Context) error { return transientErr() })
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker("test", 1, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Execute(ctx, func(_ context.Context) error { return transientErr() })
	require.Equal(t, BreakerOpen, b.State())

	// Before the reset timeout calls are rejected.
	err := b.Execute(ctx, func(_ context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// After the timeout a probe is admitted; success closes the breaker.
	now = now.Add(2 * time.Minute)
	called := false
	err = b.Execute(ctx, func(_ context.Context) error { called = true; return nil })
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, BreakerClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	b := NewBreaker("test", 1, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.nowFunc = func() time.Time { return now }
	ctx := context.Background()

	_ = b.Execute(ctx, func(_ context.Context) error { return transientErr() })
	now = now.Add(2 * time.Minute)

	_ = b.Execute(ctx, func(_ context.Context) error { return transientErr() })
	assert.Equal(t, BreakerOpen, b.State())
}

func TestExecuteValPassesThrough(t *testing.T) {
	b := NewBreaker("test", 5, time.Minute)

	v, err := ExecuteVal(context.Background(), b, func(_ context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(transientErr()))
	assert.True(t, IsTransient(eris.Wrap(transientErr(), "outer")))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "code %d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "code %d", code)
	}
}
