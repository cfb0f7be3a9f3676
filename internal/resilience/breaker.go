package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a call is rejected because the
// breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// BreakerState is the state of a circuit breaker.
type BreakerState int

const (
	// BreakerClosed is normal operation.
	BreakerClosed BreakerState = iota
	// BreakerOpen rejects calls immediately after repeated failures.
	BreakerOpen
	// BreakerHalfOpen admits a single probe to test recovery.
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// Breaker trips after consecutive failures so a dead upstream fails
// fast across the remaining sources instead of burning its timeout on
// each one.
type Breaker struct {
	name             string
	failureThreshold int
	resetTimeout     time.Duration

	mu                  sync.Mutex
	state               BreakerState
	consecutiveFailures int
	lastFailure         time.Time

	nowFunc func() time.Time
}

// NewBreaker creates a Breaker. A failureThreshold <= 0 defaults to 5,
// a resetTimeout <= 0 defaults to 30s.
func NewBreaker(name string, failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		name:             name,
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            BreakerClosed,
		nowFunc:          time.Now,
	}
}

// Execute runs fn through the breaker, returning ErrCircuitOpen while
// the breaker is open.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// ExecuteVal is Execute for calls that return a value.
func ExecuteVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := b.allow(); err != nil {
		return zero, err
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// State returns the current breaker state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == BreakerOpen && b.nowFunc().Sub(b.lastFailure) >= b.resetTimeout {
		return BreakerHalfOpen
	}
	return b.state
}

func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerOpen {
		if b.nowFunc().Sub(b.lastFailure) < b.resetTimeout {
			return ErrCircuitOpen
		}
		b.transition(BreakerHalfOpen)
	}
	return nil
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		if b.state != BreakerClosed {
			b.transition(BreakerClosed)
		}
		b.consecutiveFailures = 0
		return
	}

	if !IsTransient(err) {
		return
	}

	b.consecutiveFailures++
	b.lastFailure = b.nowFunc()
	if b.state == BreakerHalfOpen || b.consecutiveFailures >= b.failureThreshold {
		b.transition(BreakerOpen)
	}
}

func (b *Breaker) transition(to BreakerState) {
	from := b.state
	b.state = to
	zap.L().Info("circuit breaker state change",
		zap.String("breaker", b.name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}
