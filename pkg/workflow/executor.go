// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/resilience"
)

// Dispatcher hands a task to an agent and reports its outcome. A
// runtime.Pool satisfies it.
type Dispatcher interface {
	Dispatch(ctx context.Context, task *core.Task) (core.TaskResult, error)
}

// Executor runs workflows step by step over a dispatcher.
type Executor struct {
	dispatcher Dispatcher
	audit      AuditStore
	logger     *slog.Logger
	tracer     trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithAuditStore sets where step outcomes are recorded. The default is an
// in-memory store.
func WithAuditStore(store AuditStore) ExecutorOption {
	return func(e *Executor) { e.audit = store }
}

// WithLogger sets the executor's structured logger.
func WithLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewExecutor creates a workflow executor over the given dispatcher.
func NewExecutor(dispatcher Dispatcher, opts ...ExecutorOption) *Executor {
	e := &Executor{
		dispatcher: dispatcher,
		audit:      NewMemoryAuditStore(),
		logger:     slog.Default(),
		tracer:     otel.Tracer("ergon/workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Result reports one workflow run.
type Result struct {
	WorkflowID string       `json:"workflow_id"`
	RunID      string       `json:"run_id"`
	Success    bool         `json:"success"`
	Steps      []StepResult `json:"steps"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
}

// StepResult reports one step of a run.
type StepResult struct {
	StepID   string        `json:"step_id"`
	TaskType string        `json:"task_type"`
	AgentID  string        `json:"agent_id,omitempty"`
	Status   string        `json:"status"`
	Output   any           `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Run executes the workflow's steps in order. base is merged under each
// step's input (the step wins on conflicts). The first failed step marks
// the run failed and the remaining steps are recorded as skipped. A
// timed-out step abandons its dispatch; the executing agent may still be
// busy finishing it.
func (e *Executor) Run(ctx context.Context, wf *Workflow, base map[string]any) (*Result, error) {
	if err := wf.Validate(); err != nil {
		return nil, err
	}

	ctx, runID := core.EnsureRunID(ctx)
	ctx, span := e.tracer.Start(ctx, "Workflow.Run", trace.WithAttributes(
		attribute.String("workflow.id", wf.ID),
		attribute.Int("workflow.steps", len(wf.Steps)),
	))
	defer span.End()

	result := &Result{
		WorkflowID: wf.ID,
		RunID:      runID,
		Success:    true,
		StartedAt:  time.Now().UTC(),
	}

	var prior []map[string]any
	for _, step := range wf.Steps {
		if !result.Success {
			e.recordSkipped(ctx, wf.ID, runID, step)
			result.Steps = append(result.Steps, StepResult{
				StepID:   step.ID,
				TaskType: step.TaskType,
				Status:   StatusSkipped,
			})
			continue
		}

		sr := e.runStep(ctx, wf.ID, runID, step, base, prior)
		result.Steps = append(result.Steps, sr)
		prior = append(prior, map[string]any{
			"step_id": sr.StepID,
			"success": sr.Status == StatusCompleted,
			"error":   sr.Error,
		})
		if sr.Status != StatusCompleted {
			result.Success = false
		}
	}

	result.FinishedAt = time.Now().UTC()
	e.logger.Info("workflow.run",
		slog.String("workflow_id", wf.ID),
		slog.String("run_id", runID),
		slog.Bool("success", result.Success),
		slog.Int("steps", len(result.Steps)),
		slog.Duration("duration", result.FinishedAt.Sub(result.StartedAt)),
	)
	return result, nil
}

func (e *Executor) runStep(ctx context.Context, workflowID, runID string, step Step, base map[string]any, prior []map[string]any) StepResult {
	started := time.Now().UTC()

	data := make(map[string]any, len(base)+len(step.Input))
	for k, v := range base {
		data[k] = v
	}
	for k, v := range step.Input {
		data[k] = v
	}

	task := core.NewTask(step.TaskType, data).
		WithContext(map[string]any{
			"workflow_id": workflowID,
			"run_id":      runID,
			"step_id":     step.ID,
			"prior_steps": append([]map[string]any(nil), prior...),
		}).
		WithCapability(step.Capability)

	e.record(ctx, AuditEvent{
		WorkflowID: workflowID,
		RunID:      runID,
		StepID:     step.ID,
		TaskType:   step.TaskType,
		Status:     StatusStarted,
		StartedAt:  started,
	})

	stepCtx, span := e.tracer.Start(ctx, "Workflow.Step", trace.WithAttributes(
		attribute.String("step.id", step.ID),
		attribute.String("task.type", step.TaskType),
		attribute.String("capability", string(step.Capability)),
	))
	taskResult, err := resilience.WithTimeoutResult(stepCtx,
		resilience.TimeoutConfig{Duration: step.Timeout.Std()},
		func() (core.TaskResult, error) {
			return e.dispatcher.Dispatch(stepCtx, task)
		},
	)
	span.End()

	finished := time.Now().UTC()
	sr := StepResult{
		StepID:   step.ID,
		TaskType: step.TaskType,
		Duration: finished.Sub(started),
	}
	switch {
	case err != nil:
		sr.Status = StatusFailed
		sr.Error = err.Error()
	case !taskResult.Success:
		sr.Status = StatusFailed
		sr.Error = taskResult.Error
		sr.AgentID = metaString(taskResult.Metadata, "agent_id")
	default:
		sr.Status = StatusCompleted
		sr.Output = taskResult.Result
		sr.AgentID = metaString(taskResult.Metadata, "agent_id")
	}

	e.record(ctx, AuditEvent{
		WorkflowID: workflowID,
		RunID:      runID,
		StepID:     step.ID,
		TaskType:   step.TaskType,
		AgentID:    sr.AgentID,
		Status:     sr.Status,
		Output:     sr.Output,
		Error:      sr.Error,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   sr.Duration,
	})
	e.logger.Info("workflow.step",
		slog.String("workflow_id", workflowID),
		slog.String("run_id", runID),
		slog.String("step_id", step.ID),
		slog.String("status", sr.Status),
		slog.String("agent_id", sr.AgentID),
		slog.Duration("duration", sr.Duration),
	)
	return sr
}

func (e *Executor) recordSkipped(ctx context.Context, workflowID, runID string, step Step) {
	now := time.Now().UTC()
	e.record(ctx, AuditEvent{
		WorkflowID: workflowID,
		RunID:      runID,
		StepID:     step.ID,
		TaskType:   step.TaskType,
		Status:     StatusSkipped,
		StartedAt:  now,
		FinishedAt: now,
	})
}

func (e *Executor) record(ctx context.Context, event AuditEvent) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Record(ctx, event); err != nil {
		e.logger.Warn("workflow.audit.record_error",
			slog.String("workflow_id", event.WorkflowID),
			slog.String("step_id", event.StepID),
			slog.String("error", err.Error()),
		)
	}
}

func metaString(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}
