// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"
	"time"

	"github.com/jllopis/ergon/pkg/errors"
)

// TimeoutConfig bounds a single operation.
type TimeoutConfig struct {
	// Duration is the maximum time allowed. Zero disables the bound.
	Duration time.Duration
}

// WithTimeout runs fn under a deadline and returns CodeTimeout when it is
// exceeded. The operation goroutine is not interrupted on timeout; it is
// abandoned and its eventual result discarded.
func WithTimeout(ctx context.Context, config TimeoutConfig, fn func() error) error {
	if config.Duration == 0 {
		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	select {
	case <-ctx.Done():
		return errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", config.Duration.String()).
			WithRecoverable(true)
	case err := <-done:
		return err
	}
}

// WithTimeoutResult runs fn under a deadline and returns its value, or the
// zero value plus a CodeTimeout error when the deadline passes first.
func WithTimeoutResult[T any](ctx context.Context, config TimeoutConfig, fn func() (T, error)) (T, error) {
	if config.Duration == 0 {
		return fn()
	}

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := fn()
		done <- result{value, err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, errors.New(errors.CodeTimeout, "operation exceeded timeout", ctx.Err()).
			WithContext("timeout", config.Duration.String()).
			WithRecoverable(true)
	case res := <-done:
		return res.value, res.err
	}
}
