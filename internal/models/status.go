package models

import "time"

// StatusSnapshot is a read-only view of orchestrator state at one instant.
// Task lists are in the order the tasks entered each set.
type StatusSnapshot struct {
	CurrentWorkflow string     `json:"current_workflow,omitempty"`
	LastWorkflow    string     `json:"last_workflow,omitempty"`
	RunningTasks    []string   `json:"running_tasks"`
	CompletedTasks  []string   `json:"completed_tasks"`
	FailedTasks     []string   `json:"failed_tasks"`
	StartTime       *time.Time `json:"start_time,omitempty"`
	ElapsedMs       int64      `json:"elapsed_ms"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Idle reports whether no workflow is in flight
func (s StatusSnapshot) Idle() bool {
	return s.CurrentWorkflow == "" && len(s.RunningTasks) == 0
}
