// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

// Package resilience provides caller-side timeout, retry, fallback and
// circuit breaker helpers. Nothing here is invoked implicitly by the core
// packages; callers opt in per operation. See docs/ERROR_HANDLING.md for
// when to reach for each pattern.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/jllopis/ergon/pkg/errors"
)

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, first call included.
	MaxAttempts int

	// InitialDelay is the backoff before the second attempt.
	InitialDelay time.Duration

	// MaxDelay caps the grown backoff. Zero leaves it uncapped.
	MaxDelay time.Duration

	// Multiplier grows the delay between attempts (default 2.0).
	Multiplier float64

	// Jitter spreads each delay by up to this fraction in either
	// direction. 0.1 means plus or minus 10 percent.
	Jitter float64

	// IsRecoverable decides whether an error is worth another attempt.
	// Nil falls back to the ErgonError.Recoverable flag, treating plain
	// errors as recoverable.
	IsRecoverable func(error) bool
}

// DefaultRetryConfig returns the standard policy: three attempts, 100ms
// initial delay doubling up to 10s, 10 percent jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  100 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		Multiplier:    2.0,
		Jitter:        0.1,
		IsRecoverable: isRecoverableDefault,
	}
}

// WithMaxAttempts returns a copy of the config with MaxAttempts set.
func (rc RetryConfig) WithMaxAttempts(n int) RetryConfig {
	rc.MaxAttempts = n
	return rc
}

// WithInitialDelay returns a copy of the config with InitialDelay set.
func (rc RetryConfig) WithInitialDelay(d time.Duration) RetryConfig {
	rc.InitialDelay = d
	return rc
}

// WithMaxDelay returns a copy of the config with MaxDelay set.
func (rc RetryConfig) WithMaxDelay(d time.Duration) RetryConfig {
	rc.MaxDelay = d
	return rc
}

// WithIsRecoverable returns a copy of the config with IsRecoverable set.
func (rc RetryConfig) WithIsRecoverable(fn func(error) bool) RetryConfig {
	rc.IsRecoverable = fn
	return rc
}

// Do runs fn until it succeeds, the error is not recoverable, attempts run
// out, or the context ends mid-backoff. The last error is returned.
func (rc RetryConfig) Do(ctx context.Context, fn func() error) error {
	if rc.MaxAttempts < 1 {
		rc.MaxAttempts = 1
	}
	if rc.IsRecoverable == nil {
		rc.IsRecoverable = isRecoverableDefault
	}

	var lastErr error
	for attempt := 0; attempt < rc.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return errors.New(errors.CodeContextLost, "context canceled during retry", ctx.Err()).
					WithContext("attempt", attempt).
					WithContext("max_attempts", rc.MaxAttempts)
			case <-time.After(backoffDelay(attempt, rc)):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !rc.IsRecoverable(err) {
			return err
		}
	}

	return lastErr
}

// DoWithResult runs fn under the config's retry policy and returns its
// value alongside the final error.
func DoWithResult[T any](ctx context.Context, rc RetryConfig, fn func() (T, error)) (T, error) {
	var result T
	err := rc.Do(ctx, func() error {
		var fnErr error
		result, fnErr = fn()
		return fnErr
	})
	return result, err
}

// backoffDelay computes the exponential delay before the given attempt.
func backoffDelay(attempt int, rc RetryConfig) time.Duration {
	mult := rc.Multiplier
	if mult == 0 {
		mult = 2.0
	}

	delay := time.Duration(float64(rc.InitialDelay) * math.Pow(mult, float64(attempt-1)))
	if rc.MaxDelay > 0 && delay > rc.MaxDelay {
		delay = rc.MaxDelay
	}

	if rc.Jitter > 0 {
		spread := float64(delay) * rc.Jitter
		delay += time.Duration(spread * 2 * (rand.Float64() - 0.5))
		if delay < 0 {
			delay = 0
		}
	}

	return delay
}

func isRecoverableDefault(err error) bool {
	if err == nil {
		return false
	}
	if ee := errors.AsErgonError(err); ee != nil {
		return ee.Recoverable
	}
	// Plain errors carry no classification; give them another chance.
	return true
}
