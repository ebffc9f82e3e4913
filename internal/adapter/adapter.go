// Package adapter defines the live-exchange adapter contract for the
// (optional, out-of-backtest-loop) live-trading surface: candle
// polling, order placement/cancellation, open-order and balance
// queries, and a fill stream, each returning a *types.AdapterError
// classified retryable or fatal. Only the narrow contract the
// deterministic engine drives through lives here; venue-specific wire
// types belong to concrete implementations outside this module.
package adapter

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/uprootiny/arbitragefx/pkg/types"
)

// Exchange is the contract a live adapter must satisfy to feed the run
// loop candles and carry its intents to a venue. Every method returns
// a *types.AdapterError on failure so callers can branch on
// Retryable without a type switch.
type Exchange interface {
	Candles(ctx context.Context, symbol string, since int64) ([]types.Candle, error)
	Aux(ctx context.Context, symbol string, since int64) ([]types.AuxBundle, error)
	PlaceOrder(ctx context.Context, intent types.Intent) error
	Cancel(ctx context.Context, clientOrderID string) error
	OpenOrders(ctx context.Context) ([]types.PendingOrder, error)
	Balance(ctx context.Context) (float64, error)
	Fills(ctx context.Context) (<-chan types.Fill, error)
}

// RateLimiter is a token-bucket limiter shared by every call an
// Exchange implementation makes, with a context-aware Wait instead of
// an unconditional blocking sleep.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     int
	maxTokens  int
	refillRate time.Duration
	lastRefill time.Time
}

// NewRateLimiter returns a limiter that holds maxTokens and refills
// one token every refillRate.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	for {
		rl.mu.Lock()
		now := time.Now()
		if elapsed := now.Sub(rl.lastRefill); elapsed >= rl.refillRate {
			refills := int(elapsed / rl.refillRate)
			rl.tokens = minInt(rl.maxTokens, rl.tokens+refills)
			rl.lastRefill = now
		}
		if rl.tokens > 0 {
			rl.tokens--
			rl.mu.Unlock()
			return nil
		}
		rl.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(rl.refillRate):
		}
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// CircuitBreaker trips after a run of consecutive adapter failures and
// rejects calls for a cooldown window, mirroring the run loop's own
// risk-gate circuit breaker but scoped to one adapter's reliability
// rather than strategy drift.
type CircuitBreaker struct {
	mu          sync.Mutex
	logger      *zap.Logger
	maxFailures int
	cooldown    time.Duration
	failures    int
	trippedAt   time.Time
	tripped     bool
}

// NewCircuitBreaker returns a breaker that trips after maxFailures
// consecutive failures and resets after cooldown elapses.
func NewCircuitBreaker(logger *zap.Logger, maxFailures int, cooldown time.Duration) *CircuitBreaker {
	return &CircuitBreaker{logger: logger, maxFailures: maxFailures, cooldown: cooldown}
}

// Allow reports whether a call may proceed, resetting the trip once
// the cooldown has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if !cb.tripped {
		return true
	}
	if time.Since(cb.trippedAt) >= cb.cooldown {
		cb.tripped = false
		cb.failures = 0
		return true
	}
	return false
}

// RecordResult feeds back the outcome of a call that Allow permitted.
func (cb *CircuitBreaker) RecordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err == nil {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.failures >= cb.maxFailures && !cb.tripped {
		cb.tripped = true
		cb.trippedAt = time.Now()
		if cb.logger != nil {
			cb.logger.Warn("adapter circuit breaker tripped", zap.Int("failures", cb.failures))
		}
	}
}

// Classify wraps err from op as a *types.AdapterError, marking it
// retryable unless it is a context cancellation/deadline, which the
// caller should treat as fatal for the current call.
func Classify(op string, err error) *types.AdapterError {
	if err == nil {
		return nil
	}
	retryable := err != context.Canceled && err != context.DeadlineExceeded
	return &types.AdapterError{Op: op, Err: err, Retryable: retryable}
}
