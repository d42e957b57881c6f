package core

import "time"

// StatusInfo is a point-in-time snapshot of an agent's identity, state, and
// cumulative performance counters. Snapshots are safe to hand across
// goroutines; they share no state with the agent that produced them.
type StatusInfo struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	Type                 string        `json:"type"`
	State                AgentState    `json:"state"`
	CurrentTaskID        string        `json:"current_task_id,omitempty"`
	Capabilities         []Capability  `json:"capabilities"`
	TasksCompleted       int64         `json:"tasks_completed"`
	TasksFailed          int64         `json:"tasks_failed"`
	SuccessRate          float64       `json:"success_rate"`
	AverageExecutionTime time.Duration `json:"average_execution_time"`
	Timestamp            time.Time     `json:"timestamp"`
}
