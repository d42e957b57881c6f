package core

import (
	"time"

	"github.com/google/uuid"
)

// Task represents a first-class unit of work in Ergon. A task is immutable
// once constructed; its outcome is reported through a separate TaskResult.
type Task struct {
	ID         string
	Type       string
	Data       map[string]any
	Context    map[string]any
	Capability Capability
	CreatedAt  time.Time
	Metadata   map[string]string
}

// NewTask creates a task of the given type with a generated ID.
func NewTask(taskType string, data map[string]any) *Task {
	return &Task{
		ID:        uuid.NewString(),
		Type:      taskType,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
}

// WithContext returns the task with execution context attached.
func (t *Task) WithContext(taskContext map[string]any) *Task {
	t.Context = taskContext
	return t
}

// WithCapability returns the task with a required capability for dispatch.
func (t *Task) WithCapability(cap Capability) *Task {
	t.Capability = cap
	return t
}

// TaskResult reports the outcome of a single task execution attempt.
// Exactly one TaskResult is produced per ExecuteTask call; it is immutable
// after construction and owned by the caller.
type TaskResult struct {
	Success     bool
	Result      any
	Error       string
	Metadata    map[string]any
	CompletedAt time.Time
}

// NewSuccessResult builds a successful TaskResult carrying result.
func NewSuccessResult(result any, metadata map[string]any) TaskResult {
	return TaskResult{
		Success:     true,
		Result:      result,
		Metadata:    metadata,
		CompletedAt: time.Now().UTC(),
	}
}

// NewFailureResult builds a failed TaskResult carrying an error description.
func NewFailureResult(errMsg string, metadata map[string]any) TaskResult {
	return TaskResult{
		Success:     false,
		Error:       errMsg,
		Metadata:    metadata,
		CompletedAt: time.Now().UTC(),
	}
}
