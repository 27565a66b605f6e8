// Package report persists sealed workflow runs as JSON reports, renders an
// HTML summary next to each one, and publishes the orchestrator status file.
package report

import (
	"time"

	"github.com/harrison/taskflow/internal/models"
)

// Report is the persisted form of a WorkflowRun.
type Report struct {
	ID             string         `json:"id"`
	RunID          string         `json:"run_id"`
	Workflow       string         `json:"workflow"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    time.Time      `json:"completed_at"` // ISO-8601 on the wire
	DurationMs     int64          `json:"duration_ms"`
	OverallSuccess bool           `json:"overall_success"`
	Interrupted    bool           `json:"interrupted"`
	Options        Options        `json:"options"`
	Tasks          []TaskEntry    `json:"tasks"`
	Summary        models.Summary `json:"summary"`
}

// Options records the run options that influence the outcome.
type Options struct {
	ContinueOnError bool `json:"continue_on_error"`
}

// TaskEntry is one task result in execution order.
type TaskEntry struct {
	Name       string    `json:"name"`
	Success    bool      `json:"success"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
	DurationMs int64     `json:"duration_ms"`
}

// FromRun builds the report for a sealed run.
func FromRun(id string, run *models.WorkflowRun) *Report {
	r := &Report{
		ID:             id,
		RunID:          run.ID,
		Workflow:       run.WorkflowName,
		StartedAt:      run.StartTime.UTC(),
		CompletedAt:    run.EndTime.UTC(),
		DurationMs:     run.Duration().Milliseconds(),
		OverallSuccess: run.OverallSuccess,
		Interrupted:    run.Interrupted,
		Options:        Options{ContinueOnError: run.ContinueOnError},
		Tasks:          make([]TaskEntry, 0, len(run.TaskResults)),
		Summary:        run.Summary(),
	}

	for _, result := range run.TaskResults {
		r.Tasks = append(r.Tasks, TaskEntry{
			Name:       result.Name,
			Success:    result.Success,
			Output:     result.Output,
			Error:      result.Error,
			StartedAt:  result.StartTime.UTC(),
			EndedAt:    result.EndTime.UTC(),
			DurationMs: result.DurationMs,
		})
	}

	return r
}

// FailedTasks returns the entries of failed tasks.
func (r *Report) FailedTasks() []TaskEntry {
	var failed []TaskEntry
	for _, t := range r.Tasks {
		if !t.Success {
			failed = append(failed, t)
		}
	}
	return failed
}
