// Package retry provides a bounded-retry combinator.
//
// An operation is repeated while a Classifier maps its error to Retry and
// attempts remain. The classifier also chooses the wait before the next
// attempt, which lets callers honor server supplied hints such as rate-limit
// reset times.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrExhausted wraps the last error once every attempt has failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Decision is the classifier verdict for a failed attempt.
type Decision int

const (
	// Fail stops immediately and returns the error unchanged.
	Fail Decision = iota
	// Retry waits and runs the operation again.
	Retry
)

// Classifier inspects the error of attempt (1-based) and decides what to do next.
type Classifier func(err error, attempt int) (Decision, time.Duration)

// Policy configures Do.
type Policy struct {
	Classify Classifier
	// Sleep waits between attempts; SleepContext when nil.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry observes every retried failure.
	OnRetry func(err error, attempt int, wait time.Duration)
	// MaxAttempts bounds the number of runs; zero means unbounded.
	MaxAttempts int
}

// Do runs op under the policy and returns its first successful result.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		val, err := op(ctx)
		if err == nil {
			return val, nil
		}

		decision, wait := Fail, time.Duration(0)
		if p.Classify != nil {
			decision, wait = p.Classify(err, attempt)
		}

		if decision == Fail {
			return zero, err
		}

		if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		if p.OnRetry != nil {
			p.OnRetry(err, attempt, wait)
		}

		if wait > 0 {
			if err := sleep(ctx, wait); err != nil {
				return zero, err
			}
		}
	}
}

// Run is Do for operations without a result.
func Run(ctx context.Context, p Policy, op func(ctx context.Context) error) error {
	_, err := Do(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})

	return err
}

// SleepContext blocks for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// When retries errors accepted by match, waiting backoff(attempt) in between.
// A nil backoff retries immediately.
func When(match func(error) bool, backoff func(attempt int) time.Duration) Classifier {
	return func(err error, attempt int) (Decision, time.Duration) {
		if !match(err) {
			return Fail, 0
		}

		if backoff == nil {
			return Retry, 0
		}

		return Retry, backoff(attempt + 1)
	}
}

// Chain tries each classifier in order and returns the first Retry verdict.
func Chain(classifiers ...Classifier) Classifier {
	return func(err error, attempt int) (Decision, time.Duration) {
		for _, c := range classifiers {
			if d, wait := c(err, attempt); d == Retry {
				return d, wait
			}
		}

		return Fail, 0
	}
}
