package collab

import (
	"context"
	"time"
)

// CallResult wraps a collaborator response with degradation metadata so
// callers can tell a full answer from a heuristic stand-in.
type CallResult[T any] struct {
	Value      T
	Degraded   bool
	FailReason string
}

// Client composes the three reliability layers around a single
// collaborator call: an optional circuit breaker (only the architect
// client uses one), retry-with-backoff, and a filesystem/heuristic
// fallback. It holds no collaborator-specific knowledge — architect.go,
// contracts.go, codeintel.go and graphrag.go each supply their own
// primary/fallback closures.
type Client[T any] struct {
	breaker *CircuitBreaker
	policy  RetryPolicy
}

// NewClient builds a Client. Pass a nil breaker to skip circuit
// protection (contract engine, codebase intelligence, graph RAG all
// retry/fallback without one).
func NewClient[T any](breaker *CircuitBreaker, policy RetryPolicy) *Client[T] {
	return &Client[T]{breaker: breaker, policy: policy}
}

// Call runs primary behind retry (and, if configured, a circuit
// breaker), falling back to fallback when the retried primary still
// fails. The result is marked Degraded whenever the fallback path ran,
// whether or not it then succeeded.
func (c *Client[T]) Call(ctx context.Context, primary, fallback func(context.Context) (T, error)) (CallResult[T], error) {
	guardedPrimary := primary
	if c.breaker != nil {
		guardedPrimary = func(ctx context.Context) (T, error) {
			var result T
			err := c.breaker.Execute(func() error {
				var innerErr error
				result, innerErr = primary(ctx)
				return innerErr
			})
			return result, err
		}
	}

	value, primaryErr := WithRetry(ctx, c.policy, guardedPrimary)
	if primaryErr == nil {
		return CallResult[T]{Value: value}, nil
	}

	fallbackValue, fallbackErr := fallback(ctx)
	if fallbackErr != nil {
		var zero T
		return CallResult[T]{Value: zero, Degraded: true, FailReason: fallbackErr.Error()}, fallbackErr
	}
	return CallResult[T]{Value: fallbackValue, Degraded: true, FailReason: primaryErr.Error()}, nil
}

// WithTimeout is a small helper so each collaborator client can apply
// its own per-phase timeout without importing context directly.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}
