package core

// AgentState describes the lifecycle state of an agent.
type AgentState string

const (
	// StateIdle means the agent is available for task assignment.
	StateIdle AgentState = "idle"

	// StateBusy means the agent is executing a task.
	StateBusy AgentState = "busy"

	// StateThinking means the agent is waiting on a completion provider.
	StateThinking AgentState = "thinking"

	// StateCommunicating means the agent is sending a message.
	StateCommunicating AgentState = "communicating"

	// StateError marks an agent that hit an unrecoverable condition.
	StateError AgentState = "error"

	// StateOffline is terminal and reached only via explicit shutdown.
	StateOffline AgentState = "offline"
)

// Available reports whether the state permits accepting a new task.
func (s AgentState) Available() bool {
	return s == StateIdle
}

// Terminal reports whether the state admits no further transitions.
func (s AgentState) Terminal() bool {
	return s == StateOffline
}
