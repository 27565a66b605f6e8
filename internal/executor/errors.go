package executor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/harrison/taskflow/internal/registry"
)

// UnknownWorkflowError is returned when the requested workflow is not defined.
type UnknownWorkflowError struct {
	Name      string   // Requested workflow name
	Available []string // Defined workflow names
}

// Error implements the error interface for UnknownWorkflowError.
func (e *UnknownWorkflowError) Error() string {
	available := append([]string(nil), e.Available...)
	sort.Strings(available)
	if len(available) == 0 {
		return fmt.Sprintf("unknown workflow %q", e.Name)
	}
	return fmt.Sprintf("unknown workflow %q (available: %s)", e.Name, strings.Join(available, ", "))
}

// TaskError represents an error that occurred during task execution.
// It includes context about which task failed and when.
type TaskError struct {
	TaskName  string    // Name of the task that failed
	Message   string    // Human-readable error message
	Err       error     // Underlying error (optional)
	Timestamp time.Time // When the error occurred
}

// NewTaskError creates a new TaskError with the current timestamp.
func NewTaskError(name, msg string, err error) *TaskError {
	return &TaskError{
		TaskName:  name,
		Message:   msg,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface for TaskError.
func (e *TaskError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("task %s: %s", e.TaskName, e.Message))
	if e.Err != nil {
		sb.WriteString(fmt.Sprintf(": %v", e.Err))
	}
	return sb.String()
}

// Unwrap returns the underlying error for error wrapping support.
func (e *TaskError) Unwrap() error {
	return e.Err
}

// TimeoutError represents a task that exceeded the configured task timeout.
type TimeoutError struct {
	TaskName        string        // Name of the task that timed out
	TimeoutDuration time.Duration // Duration after which timeout occurred
	Timestamp       time.Time     // When the timeout occurred
}

// NewTimeoutError creates a new TimeoutError with the current timestamp.
func NewTimeoutError(name string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		TaskName:        name,
		TimeoutDuration: duration,
		Timestamp:       time.Now(),
	}
}

// Error implements the error interface for TimeoutError.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("task %s: timeout after %v", e.TaskName, e.TimeoutDuration)
}

// Unwrap returns context.DeadlineExceeded to support error wrapping.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// IsUnknownWorkflow checks if the error is or wraps an UnknownWorkflowError.
func IsUnknownWorkflow(err error) bool {
	if err == nil {
		return false
	}
	var uwe *UnknownWorkflowError
	return errors.As(err, &uwe)
}

// IsConfigurationError reports whether err is one of the fatal pre-run errors:
// unknown workflow or unknown task.
func IsConfigurationError(err error) bool {
	return IsUnknownWorkflow(err) || registry.IsUnknownTask(err)
}

// IsTaskError checks if the error is or wraps a TaskError.
func IsTaskError(err error) bool {
	if err == nil {
		return false
	}
	var te *TaskError
	return errors.As(err, &te)
}

// IsTimeoutError checks if the error is or wraps a TimeoutError or context.DeadlineExceeded.
func IsTimeoutError(err error) bool {
	if err == nil {
		return false
	}

	var te *TimeoutError
	if errors.As(err, &te) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
