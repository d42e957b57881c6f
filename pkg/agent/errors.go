// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"sync"

	"github.com/jllopis/ergon/pkg/errors"
	"github.com/jllopis/ergon/pkg/telemetry"
)

// ErrorMetricsIntegration provides error metrics integration for agents.
// It wraps telemetry.ErrorMetrics and degrades to a no-op when metrics
// initialization fails.
type ErrorMetricsIntegration struct {
	metrics *telemetry.ErrorMetrics
	enabled bool
}

var (
	globalErrorMetrics     *ErrorMetricsIntegration
	globalErrorMetricsOnce sync.Once
)

// InitErrorMetrics initializes the global error metrics for agents. It is
// called once during application startup; later calls return the first
// result.
func InitErrorMetrics(ctx context.Context) *ErrorMetricsIntegration {
	globalErrorMetricsOnce.Do(func() {
		metrics, err := telemetry.NewErrorMetrics(ctx)
		if err != nil {
			globalErrorMetrics = &ErrorMetricsIntegration{enabled: false}
			return
		}
		globalErrorMetrics = &ErrorMetricsIntegration{
			metrics: metrics,
			enabled: true,
		}
	})
	return globalErrorMetrics
}

// GetErrorMetrics returns the global error metrics integration, or nil when
// not initialized.
func GetErrorMetrics() *ErrorMetricsIntegration {
	return globalErrorMetrics
}

// RecordError records an error metric for the given component.
func (e *ErrorMetricsIntegration) RecordError(ctx context.Context, err error, component string) {
	if e == nil || !e.enabled || e.metrics == nil {
		return
	}
	e.metrics.RecordErrorMetric(ctx, err, component)
}

// RecordRecovery records a successful recovery for the given error code.
func (e *ErrorMetricsIntegration) RecordRecovery(ctx context.Context, code errors.ErrorCode) {
	if e == nil || !e.enabled || e.metrics == nil {
		return
	}
	e.metrics.RecordRecovery(ctx, code)
}

// recordTaskFault reports handler faults caught at the execute boundary.
// Semantic task failures are not system errors and are not recorded here.
func recordTaskFault(ctx context.Context, kind, msg string) {
	if kind != "panic" {
		return
	}
	if em := GetErrorMetrics(); em != nil {
		em.RecordError(ctx, errors.New(errors.CodeInternal, msg, nil), "agent-execute")
	}
}

// WrapProviderError wraps a completion-provider error with model context.
// Provider errors are recoverable: handlers degrade to partial results.
func WrapProviderError(err error, model string) *errors.ErgonError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeLLMError, "completion provider call failed", err).
		WithContext("model", model).
		WithAttribute(telemetry.AttrLLMModel, model).
		WithRecoverable(true)
}

// WrapMemoryError wraps a memory system error with operation context.
func WrapMemoryError(err error, operation string) *errors.ErgonError {
	if err == nil {
		return nil
	}
	return errors.New(errors.CodeMemoryError, "memory operation failed", err).
		WithContext("operation", operation).
		WithAttribute("memory.operation", operation).
		WithRecoverable(true)
}

// NewInvalidInputError creates a new invalid input error.
func NewInvalidInputError(msg string) *errors.ErgonError {
	return errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
}
