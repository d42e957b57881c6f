package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/ergon/pkg/core"
)

// UpdateStatus moves the agent to newState unconditionally. The transition
// is recorded in memory, every registered status callback runs in
// registration order, and a state-change metric and event are emitted.
// Callback faults are logged and never affect the transition.
func (b *Base) UpdateStatus(ctx context.Context, newState core.AgentState) {
	b.mu.Lock()
	old := b.state
	b.state = newState
	b.mu.Unlock()
	b.afterTransition(ctx, old, newState)
}

func (b *Base) afterTransition(ctx context.Context, from, to core.AgentState) {
	b.logger.Debug("agent.state_change",
		slog.String("agent_id", b.id),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
	)

	b.remember(ctx, "state_change", map[string]any{
		"old_state": string(from),
		"new_state": string(to),
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})

	b.mu.RLock()
	callbacks := append([]StatusCallback(nil), b.statusCallbacks...)
	b.mu.RUnlock()
	for _, cb := range callbacks {
		b.invokeCallback(ctx, cb, from, to)
	}

	b.metrics.RecordStateChange(ctx, b.id, string(from), string(to))
	b.emit(ctx, core.EventStateChange, "", map[string]any{
		"from": string(from),
		"to":   string(to),
	})
}

func (b *Base) invokeCallback(ctx context.Context, cb StatusCallback, from, to core.AgentState) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("agent.status_callback.panic",
				slog.String("agent_id", b.id),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := cb(ctx, b.id, from, to); err != nil {
		b.logger.Error("agent.status_callback.error",
			slog.String("agent_id", b.id),
			slog.String("error", err.Error()),
		)
	}
}

func (b *Base) emit(ctx context.Context, eventType core.EventType, taskID string, payload map[string]any) {
	if b.emitter == nil {
		return
	}
	b.emitter.Emit(ctx, core.NewEvent(eventType, b.id, taskID, payload))
}

// SuccessRate returns completed/(completed+failed), or 0 with no tasks.
func (b *Base) SuccessRate() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return successRate(b.tasksCompleted, b.tasksFailed)
}

// AverageExecutionTime returns total execution time divided by completed
// tasks, or 0 with no completions.
func (b *Base) AverageExecutionTime() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return averageExecution(b.totalExecution, b.tasksCompleted)
}

// StatusInfo snapshots identity, state, and cumulative counters. The
// snapshot shares no state with the agent.
func (b *Base) StatusInfo() core.StatusInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return core.StatusInfo{
		ID:                   b.id,
		Name:                 b.name,
		Type:                 b.agentType,
		State:                b.state,
		CurrentTaskID:        b.currentTaskID,
		Capabilities:         append([]core.Capability(nil), b.capabilities...),
		TasksCompleted:       b.tasksCompleted,
		TasksFailed:          b.tasksFailed,
		SuccessRate:          successRate(b.tasksCompleted, b.tasksFailed),
		AverageExecutionTime: averageExecution(b.totalExecution, b.tasksCompleted),
		Timestamp:            time.Now().UTC(),
	}
}

// Shutdown transitions the agent offline and closes its memory store.
// Failures are logged, never returned.
func (b *Base) Shutdown(ctx context.Context) {
	b.logger.Info("agent.shutdown",
		slog.String("agent_id", b.id),
		slog.String("name", b.name),
	)
	b.UpdateStatus(ctx, core.StateOffline)
	if err := b.store.Close(); err != nil {
		b.logger.Error("agent.shutdown.store_error",
			slog.String("agent_id", b.id),
			slog.String("error", err.Error()),
		)
	}
}

func successRate(completed, failed int64) float64 {
	total := completed + failed
	if total == 0 {
		return 0
	}
	return float64(completed) / float64(total)
}

func averageExecution(total time.Duration, completed int64) time.Duration {
	if completed == 0 {
		return 0
	}
	return total / time.Duration(completed)
}
