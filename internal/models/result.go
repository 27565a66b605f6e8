package models

import "time"

// TaskState is the lifecycle state of a single task within a run
type TaskState string

// Task lifecycle: pending -> running -> succeeded | failed
const (
	TaskPending   TaskState = "pending"
	TaskRunning   TaskState = "running"
	TaskSucceeded TaskState = "succeeded"
	TaskFailed    TaskState = "failed"
)

// RunState is the lifecycle state of a workflow run
type RunState string

// Run lifecycle: not_started -> in_progress -> completed_success | completed_partial_failure
const (
	RunNotStarted              RunState = "not_started"
	RunInProgress              RunState = "in_progress"
	RunCompletedSuccess        RunState = "completed_success"
	RunCompletedPartialFailure RunState = "completed_partial_failure"
)

// TaskResult represents the sealed outcome of executing a single task
type TaskResult struct {
	Name       string    `json:"name"`             // Task name
	StartTime  time.Time `json:"start_time"`       // When the handler was invoked
	EndTime    time.Time `json:"end_time"`         // When the handler returned
	DurationMs int64     `json:"duration_ms"`      // EndTime - StartTime in milliseconds
	Success    bool      `json:"success"`          // Whether the handler returned without error
	Output     string    `json:"output,omitempty"` // Captured stdout or return value
	Error      string    `json:"error,omitempty"`  // Error message, present iff Success is false
}

// State returns the terminal state of the task.
func (r TaskResult) State() TaskState {
	if r.Success {
		return TaskSucceeded
	}
	return TaskFailed
}

// Duration returns the task duration as a time.Duration
func (r TaskResult) Duration() time.Duration {
	return time.Duration(r.DurationMs) * time.Millisecond
}

// Summary aggregates task counts for a run
type Summary struct {
	Total      int `json:"total"`      // Number of tasks that produced a result
	Successful int `json:"successful"` // Number of successful tasks
	Failed     int `json:"failed"`     // Number of failed tasks
	Skipped    int `json:"skipped"`    // Declared tasks that never ran (fail-fast or interrupt)
}

// WorkflowRun is the full record of one execution of a workflow
type WorkflowRun struct {
	ID              string       `json:"id"`                  // Unique run identifier
	WorkflowName    string       `json:"workflow"`            // Name of the executed workflow
	Tasks           []string     `json:"tasks"`               // Declared task order
	StartTime       time.Time    `json:"start_time"`          // When the run began
	EndTime         time.Time    `json:"end_time"`            // When the run was sealed
	TaskResults     []TaskResult `json:"task_results"`        // Results in execution order
	OverallSuccess  bool         `json:"overall_success"`     // True iff all declared tasks ran and passed
	ContinueOnError bool         `json:"continue_on_error"`   // Continuation policy used for the run
	Interrupted     bool         `json:"interrupted"`         // Run was cut short by cancellation
	ReportID        string       `json:"report_id,omitempty"` // Identifier of the persisted report
}

// Duration returns the wall-clock duration of the run
func (r *WorkflowRun) Duration() time.Duration {
	if r.EndTime.IsZero() {
		return time.Since(r.StartTime)
	}
	return r.EndTime.Sub(r.StartTime)
}

// Summary counts successful, failed, and skipped tasks.
func (r *WorkflowRun) Summary() Summary {
	s := Summary{Total: len(r.TaskResults)}
	for _, result := range r.TaskResults {
		if result.Success {
			s.Successful++
		} else {
			s.Failed++
		}
	}
	if skipped := len(r.Tasks) - len(r.TaskResults); skipped > 0 {
		s.Skipped = skipped
	}
	return s
}

// FailedResults returns the results of tasks that failed, in execution order
func (r *WorkflowRun) FailedResults() []TaskResult {
	var failed []TaskResult
	for _, result := range r.TaskResults {
		if !result.Success {
			failed = append(failed, result)
		}
	}
	return failed
}

// State reports the lifecycle state of the run.
func (r *WorkflowRun) State() RunState {
	switch {
	case r.StartTime.IsZero():
		return RunNotStarted
	case r.EndTime.IsZero():
		return RunInProgress
	case r.OverallSuccess:
		return RunCompletedSuccess
	default:
		return RunCompletedPartialFailure
	}
}

// ComputeOverallSuccess reports whether every declared task ran and succeeded.
// A run cut short by fail-fast or interruption is never successful.
func (r *WorkflowRun) ComputeOverallSuccess() bool {
	if r.Interrupted || len(r.TaskResults) != len(r.Tasks) {
		return false
	}
	for _, result := range r.TaskResults {
		if !result.Success {
			return false
		}
	}
	return true
}
