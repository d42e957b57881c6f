// SPDX-License-Identifier: Apache-2.0
// Package telemetry provides observability for Ergon agents and error handling.
// See docs/ERROR_HANDLING.md for metric integration patterns.
package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/ergon/pkg/errors"
)

// AgentMetrics tracks task throughput, memory churn, and messaging volume
// for production monitoring of agent fleets.
type AgentMetrics struct {
	// tasksCompleted counts successfully executed tasks by agent and task type
	tasksCompleted metric.Int64Counter

	// tasksFailed counts failed tasks by agent, task type, and failure kind
	tasksFailed metric.Int64Counter

	// taskDuration records task execution time in milliseconds
	taskDuration metric.Float64Histogram

	// stateChanges counts agent state transitions
	stateChanges metric.Int64Counter

	// memoryStored counts memory entries written by tier
	memoryStored metric.Int64Counter

	// memoryEvicted counts memory entries removed by cleanup, by tier and reason
	memoryEvicted metric.Int64Counter

	// messagesSent counts inter-agent messages by type
	messagesSent metric.Int64Counter
}

// NewAgentMetrics creates the agent metrics set with OTEL meters.
func NewAgentMetrics(ctx context.Context) (*AgentMetrics, error) {
	meter := otel.Meter("ergon/agent")

	tasksCompleted, err := meter.Int64Counter(
		"ergon.tasks.completed",
		metric.WithDescription("Tasks completed successfully by agent and task type"),
	)
	if err != nil {
		return nil, err
	}

	tasksFailed, err := meter.Int64Counter(
		"ergon.tasks.failed",
		metric.WithDescription("Tasks failed by agent, task type, and failure kind"),
	)
	if err != nil {
		return nil, err
	}

	taskDuration, err := meter.Float64Histogram(
		"ergon.tasks.duration_ms",
		metric.WithDescription("Task execution duration in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	stateChanges, err := meter.Int64Counter(
		"ergon.agent.state_changes",
		metric.WithDescription("Agent state transitions by from/to state"),
	)
	if err != nil {
		return nil, err
	}

	memoryStored, err := meter.Int64Counter(
		"ergon.memory.stored",
		metric.WithDescription("Memory entries stored by tier"),
	)
	if err != nil {
		return nil, err
	}

	memoryEvicted, err := meter.Int64Counter(
		"ergon.memory.evicted",
		metric.WithDescription("Memory entries evicted by tier and reason"),
	)
	if err != nil {
		return nil, err
	}

	messagesSent, err := meter.Int64Counter(
		"ergon.messages.sent",
		metric.WithDescription("Inter-agent messages sent by type"),
	)
	if err != nil {
		return nil, err
	}

	return &AgentMetrics{
		tasksCompleted: tasksCompleted,
		tasksFailed:    tasksFailed,
		taskDuration:   taskDuration,
		stateChanges:   stateChanges,
		memoryStored:   memoryStored,
		memoryEvicted:  memoryEvicted,
		messagesSent:   messagesSent,
	}, nil
}

// RecordTaskCompleted records a successful task execution with its duration.
func (am *AgentMetrics) RecordTaskCompleted(ctx context.Context, agentID, taskType string, duration time.Duration) {
	if am == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrTaskType, taskType),
	)
	am.tasksCompleted.Add(ctx, 1, attrs)
	am.taskDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordTaskFailed records a failed task execution with its duration and failure kind.
// Kind is "error" for handler failures and "panic" for recovered panics.
func (am *AgentMetrics) RecordTaskFailed(ctx context.Context, agentID, taskType, kind string, duration time.Duration) {
	if am == nil {
		return
	}
	am.tasksFailed.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrTaskType, taskType),
		attribute.String("failure.kind", kind),
	))
	am.taskDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrTaskType, taskType),
	))
}

// RecordStateChange records an agent state transition.
func (am *AgentMetrics) RecordStateChange(ctx context.Context, agentID, from, to string) {
	if am == nil {
		return
	}
	am.stateChanges.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String("state.from", from),
		attribute.String("state.to", to),
	))
}

// RecordMemoryStored increments the stored-entries counter for a tier.
func (am *AgentMetrics) RecordMemoryStored(ctx context.Context, agentID, tier string) {
	if am == nil {
		return
	}
	am.memoryStored.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrMemoryTier, tier),
	))
}

// RecordMemoryEvicted records cleanup removals for a tier.
// Reason is "cap" for capacity eviction and "age" for expiry.
func (am *AgentMetrics) RecordMemoryEvicted(ctx context.Context, agentID, tier, reason string, count int64) {
	if am == nil || count <= 0 {
		return
	}
	am.memoryEvicted.Add(ctx, count, metric.WithAttributes(
		attribute.String(AttrAgentID, agentID),
		attribute.String(AttrMemoryTier, tier),
		attribute.String("eviction.reason", reason),
	))
}

// RecordMessageSent counts an outbound inter-agent message.
func (am *AgentMetrics) RecordMessageSent(ctx context.Context, sender, msgType string) {
	if am == nil {
		return
	}
	am.messagesSent.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttrMessageSender, sender),
		attribute.String(AttrMessageType, msgType),
	))
}

// ErrorMetrics tracks error rates, types, and recovery patterns for production monitoring.
type ErrorMetrics struct {
	// errorCounter tracks total errors by code and component
	errorCounter metric.Int64Counter

	// recoveryCounter tracks successful recoveries
	recoveryCounter metric.Int64Counter

	// errorRateGauge tracks error rate (errors per minute)
	errorRateGauge metric.Float64Gauge

	// healthStatusGauge tracks component health (0=unhealthy, 1=degraded, 2=healthy)
	healthStatusGauge metric.Int64Gauge

	// circuitBreakerStateGauge tracks circuit breaker state per component
	circuitBreakerStateGauge metric.Int64Gauge

	mu sync.RWMutex
}

// NewErrorMetrics creates a new error metrics tracker with OTEL meters.
func NewErrorMetrics(ctx context.Context) (*ErrorMetrics, error) {
	meter := otel.Meter("ergon/errors")

	errorCounter, err := meter.Int64Counter(
		"ergon.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	recoveryCounter, err := meter.Int64Counter(
		"ergon.errors.recovered",
		metric.WithDescription("Successful error recoveries by code"),
	)
	if err != nil {
		return nil, err
	}

	errorRateGauge, err := meter.Float64Gauge(
		"ergon.errors.rate",
		metric.WithDescription("Error rate per minute by component"),
	)
	if err != nil {
		return nil, err
	}

	healthStatusGauge, err := meter.Int64Gauge(
		"ergon.health.status",
		metric.WithDescription("Component health status (0=unhealthy, 1=degraded, 2=healthy)"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerStateGauge, err := meter.Int64Gauge(
		"ergon.circuitbreaker.state",
		metric.WithDescription("Circuit breaker state per component (0=open, 1=half-open, 2=closed)"),
	)
	if err != nil {
		return nil, err
	}

	return &ErrorMetrics{
		errorCounter:             errorCounter,
		recoveryCounter:          recoveryCounter,
		errorRateGauge:           errorRateGauge,
		healthStatusGauge:        healthStatusGauge,
		circuitBreakerStateGauge: circuitBreakerStateGauge,
	}, nil
}

// RecordErrorMetric increments the error counter for the given error code and component.
// This is called by error handling code to track error rates.
func (em *ErrorMetrics) RecordErrorMetric(ctx context.Context, err error, component string) {
	if em == nil || err == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	if ee, ok := err.(*errors.ErgonError); ok {
		em.errorCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("error.code", string(ee.Code)),
				attribute.String("component", component),
				attribute.String("recoverable", ee.RecoverableString()),
			),
		)
	} else {
		// Generic error
		em.errorCounter.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("error.code", "UNKNOWN"),
				attribute.String("component", component),
				attribute.String("recoverable", "unknown"),
			),
		)
	}
}

// RecordRecovery increments the recovery counter for the given error code.
// This is called when an error is successfully handled (retry succeeded, fallback used, etc).
func (em *ErrorMetrics) RecordRecovery(ctx context.Context, errorCode errors.ErrorCode) {
	if em == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	em.recoveryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("error.code", string(errorCode)),
		),
	)
}

// RecordErrorRate records the current error rate for a component (errors per minute).
func (em *ErrorMetrics) RecordErrorRate(ctx context.Context, component string, ratePerMinute float64) {
	if em == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	em.errorRateGauge.Record(ctx, ratePerMinute,
		metric.WithAttributes(
			attribute.String("component", component),
		),
	)
}

// RecordHealthStatus records the health status of a component (0=unhealthy, 1=degraded, 2=healthy).
func (em *ErrorMetrics) RecordHealthStatus(ctx context.Context, component string, status int64) {
	if em == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	em.healthStatusGauge.Record(ctx, status,
		metric.WithAttributes(
			attribute.String("component", component),
		),
	)
}

// RecordCircuitBreakerState records the circuit breaker state (0=open, 1=half-open, 2=closed).
func (em *ErrorMetrics) RecordCircuitBreakerState(ctx context.Context, component string, state int64) {
	if em == nil {
		return
	}

	em.mu.RLock()
	defer em.mu.RUnlock()

	em.circuitBreakerStateGauge.Record(ctx, state,
		metric.WithAttributes(
			attribute.String("component", component),
		),
	)
}
