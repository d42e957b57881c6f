package core

import "context"

// Agent is the executable unit managed by the runtime pool. Concrete agents
// embed pkg/agent.Base and supply their own task handling; the pool only
// depends on this surface.
type Agent interface {
	ID() string
	Name() string
	Type() string
	State() AgentState
	Capabilities() []Capability

	// ExecuteTask runs a single task. It returns exactly one TaskResult and
	// leaves the agent available again regardless of handler outcome.
	ExecuteTask(ctx context.Context, task *Task) TaskResult

	// ReceiveMessage delivers a message to the agent. Handler faults are
	// absorbed by the agent, never surfaced to the sender.
	ReceiveMessage(ctx context.Context, msg Message)

	// StatusInfo snapshots identity, state, and counters.
	StatusInfo() StatusInfo

	// Shutdown transitions the agent offline and releases its memory store.
	// Best-effort: failures are logged by the agent, not returned.
	Shutdown(ctx context.Context)
}
