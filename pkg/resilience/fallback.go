// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package resilience

import (
	"context"

	"github.com/jllopis/ergon/pkg/errors"
)

// FallbackStrategy produces a substitute result when the primary
// operation has failed.
type FallbackStrategy interface {
	Execute(ctx context.Context, primaryErr error) (any, error)
}

// FallbackFunc adapts a function to a FallbackStrategy.
type FallbackFunc func(ctx context.Context, primaryErr error) (any, error)

// Execute implements FallbackStrategy.
func (f FallbackFunc) Execute(ctx context.Context, primaryErr error) (any, error) {
	return f(ctx, primaryErr)
}

// StaticFallback substitutes a fixed value.
type StaticFallback struct {
	Value any
}

// Execute implements FallbackStrategy.
func (s *StaticFallback) Execute(_ context.Context, _ error) (any, error) {
	return s.Value, nil
}

// ErrorFallback replaces the primary error with a terminal one.
type ErrorFallback struct {
	Message string
}

// Execute implements FallbackStrategy.
func (e *ErrorFallback) Execute(_ context.Context, primaryErr error) (any, error) {
	return nil, errors.New(errors.CodeInternal, e.Message, primaryErr).
		WithContext("fallback", "error").
		WithRecoverable(false)
}

// CachedFallback substitutes the last known good value.
type CachedFallback struct {
	Cache any
}

// Execute implements FallbackStrategy.
func (c *CachedFallback) Execute(_ context.Context, primaryErr error) (any, error) {
	if c.Cache == nil {
		return nil, errors.New(errors.CodeInternal, "no cached value available", primaryErr).
			WithContext("fallback", "cache").
			WithRecoverable(false)
	}
	return c.Cache, nil
}

// ChainedFallback tries each strategy in order until one succeeds.
type ChainedFallback struct {
	Fallbacks []FallbackStrategy
}

// Execute implements FallbackStrategy.
func (c *ChainedFallback) Execute(ctx context.Context, primaryErr error) (any, error) {
	lastErr := primaryErr
	for _, fallback := range c.Fallbacks {
		value, err := fallback.Execute(ctx, lastErr)
		if err == nil {
			return value, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// WithFallback runs fn and, on error, hands the failure to the strategy.
func WithFallback(ctx context.Context, fn func() (any, error), fallback FallbackStrategy) (any, error) {
	value, err := fn()
	if err == nil {
		return value, nil
	}
	return fallback.Execute(ctx, err)
}
