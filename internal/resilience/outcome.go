package resilience

import (
	"context"
	"time"
)

// Outcome is the result of a best-effort upstream call. Exactly one of Value or
// Err is meaningful unless the call was Skipped because the upstream is not
// configured.
type Outcome[T any] struct {
	Value   T
	Err     *UpstreamError
	Skipped bool
}

// OK reports whether the call ran and succeeded.
func (o Outcome[T]) OK() bool {
	return !o.Skipped && o.Err == nil
}

// Failed reports whether the call ran and failed.
func (o Outcome[T]) Failed() bool {
	return !o.Skipped && o.Err != nil
}

// Skip returns the outcome of a call that was not attempted.
func Skip[T any]() Outcome[T] {
	return Outcome[T]{Skipped: true}
}

// Call runs fn through br with its own timeout and captures the result as an
// Outcome. It never returns an error: failures, including an open breaker or
// an expired timeout, end up in Outcome.Err.
func Call[T any](ctx context.Context, br *Breaker, op string, timeout time.Duration, fn func(ctx context.Context) (T, error)) Outcome[T] {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var val T
	err := br.Do(ctx, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		val = v
		return nil
	})
	if err != nil {
		return Outcome[T]{Err: &UpstreamError{Upstream: br.Name(), Op: op, Err: err}}
	}
	return Outcome[T]{Value: val}
}
