// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/memory"
	"github.com/jllopis/ergon/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ExecuteTask runs one task through the registered handler. It returns
// exactly one TaskResult per call; handler faults are converted into failed
// results, never propagated. The agent is IDLE again when the call returns.
func (b *Base) ExecuteTask(ctx context.Context, task *core.Task) (result core.TaskResult) {
	if task == nil {
		return core.NewFailureResult("task is nil", nil)
	}

	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := b.tracer.Start(ctx, "Agent.ExecuteTask", trace.WithAttributes(
		telemetry.AgentAttributes(b.id, b.name, b.agentType, "")...))
	defer span.End()
	span.SetAttributes(telemetry.TaskAttributes(task.ID, task.Type, string(task.Capability))...)
	span.SetAttributes(attribute.String(telemetry.AttrAgentRunID, runID))
	traceID, spanID := traceIDs(span)

	// The reservation is atomic with the availability check so two
	// concurrent calls cannot both pass the precondition.
	b.mu.Lock()
	if !b.state.Available() {
		state := b.state
		b.mu.Unlock()
		b.logger.Warn("agent.task.rejected",
			slog.String("agent_id", b.id),
			slog.String("task_id", task.ID),
			slog.String("run_id", runID),
			slog.String("state", string(state)),
		)
		return core.NewFailureResult(
			fmt.Sprintf("agent %s is not available (current state: %s)", b.name, state),
			map[string]any{"agent_state": string(state)},
		)
	}
	b.state = core.StateBusy
	b.currentTaskID = task.ID
	b.mu.Unlock()
	b.afterTransition(ctx, core.StateIdle, core.StateBusy)

	started := time.Now()
	b.logger.Info("agent.task.start",
		slog.String("agent_id", b.id),
		slog.String("task_id", task.ID),
		slog.String("task_type", task.Type),
		slog.String("run_id", runID),
		slog.String("trace_id", traceID),
		slog.String("span_id", spanID),
	)
	b.emit(ctx, core.EventTaskStarted, task.ID, map[string]any{
		"run_id":    runID,
		"task_type": task.Type,
	})

	b.remember(ctx, "task_execution", map[string]any{
		"task_id":    task.ID,
		"task_data":  task.Data,
		"context":    task.Context,
		"started_at": started.UTC().Format(time.RFC3339Nano),
	})

	// Restore IDLE and release the task slot whatever happens in between.
	defer func() {
		b.UpdateStatus(ctx, core.StateIdle)
		b.mu.Lock()
		b.currentTaskID = ""
		b.mu.Unlock()
	}()

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		duration := time.Since(started)
		failure := core.NewFailureResult(
			fmt.Sprintf("unexpected fault during task execution: %v", r),
			map[string]any{"fault": "panic", "task_id": task.ID},
		)
		result = b.finishTask(ctx, task, failure, duration, runID, "panic")
	}()

	result = b.handler(ctx, task)
	return b.finishTask(ctx, task, result, time.Since(started), runID, "error")
}

// finishTask updates counters, records telemetry, and persists the
// task_result memory entry. It returns the result unchanged apart from a
// backfilled completion timestamp.
func (b *Base) finishTask(ctx context.Context, task *core.Task, result core.TaskResult, duration time.Duration, runID, failureKind string) core.TaskResult {
	if result.CompletedAt.IsZero() {
		result.CompletedAt = time.Now().UTC()
	}

	b.mu.Lock()
	b.totalExecution += duration
	if result.Success {
		b.tasksCompleted++
	} else {
		b.tasksFailed++
	}
	b.mu.Unlock()

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(telemetry.TaskResultAttributes(result.Success, float64(duration.Milliseconds()))...)

	if result.Success {
		b.metrics.RecordTaskCompleted(ctx, b.id, task.Type, duration)
		b.logger.Info("agent.task.complete",
			slog.String("agent_id", b.id),
			slog.String("task_id", task.ID),
			slog.String("run_id", runID),
			slog.Duration("duration", duration),
		)
		b.emit(ctx, core.EventTaskCompleted, task.ID, map[string]any{
			"run_id":      runID,
			"duration_ms": duration.Milliseconds(),
		})
	} else {
		b.metrics.RecordTaskFailed(ctx, b.id, task.Type, failureKind, duration)
		b.logger.Error("agent.task.error",
			slog.String("agent_id", b.id),
			slog.String("task_id", task.ID),
			slog.String("run_id", runID),
			slog.String("error", result.Error),
			slog.String("fault", failureKind),
		)
		b.emit(ctx, core.EventTaskFailed, task.ID, map[string]any{
			"run_id": runID,
			"error":  result.Error,
			"fault":  failureKind,
		})
		recordTaskFault(ctx, failureKind, result.Error)
	}

	b.remember(ctx, "task_result", map[string]any{
		"task_id":        task.ID,
		"success":        result.Success,
		"result":         result.Result,
		"error":          result.Error,
		"execution_time": duration.Seconds(),
		"completed_at":   result.CompletedAt.UTC().Format(time.RFC3339Nano),
	})
	return result
}

// remember writes an entry to the agent's memory store. Store failures are
// advisory there; here they are logged and dropped.
func (b *Base) remember(ctx context.Context, contextType string, content map[string]any, opts ...memory.StoreOption) {
	if b.store == nil {
		return
	}
	if _, err := b.store.Store(ctx, contextType, content, opts...); err != nil {
		b.logger.Warn("agent.memory.store_error",
			slog.String("agent_id", b.id),
			slog.String("context_type", contextType),
			slog.String("error", err.Error()),
		)
	}
}

func traceIDs(span trace.Span) (string, string) {
	sc := span.SpanContext()
	return sc.TraceID().String(), sc.SpanID().String()
}
