package registry

import (
	"errors"
	"fmt"
	"strings"
)

// UnknownTaskError is returned when a task name has no registered handler.
type UnknownTaskError struct {
	Task     string // Task name that failed to resolve
	Workflow string // Workflow referencing the task (optional)
}

// Error implements the error interface for UnknownTaskError.
func (e *UnknownTaskError) Error() string {
	if e.Workflow != "" {
		return fmt.Sprintf("unknown task %q in workflow %q", e.Task, e.Workflow)
	}
	return fmt.Sprintf("unknown task %q", e.Task)
}

// IsUnknownTask checks if the error is or wraps an UnknownTaskError.
func IsUnknownTask(err error) bool {
	if err == nil {
		return false
	}
	var ute *UnknownTaskError
	return errors.As(err, &ute)
}

// ExitError reports an external command that exited with a nonzero status.
type ExitError struct {
	Command  string // Command line that was run
	ExitCode int    // Process exit status
	Stderr   string // Captured standard error
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("command %q exited with status %d", e.Command, e.ExitCode))
	if stderr := strings.TrimSpace(e.Stderr); stderr != "" {
		sb.WriteString(": ")
		sb.WriteString(lastLines(stderr, 5))
	}
	return sb.String()
}

// lastLines returns at most n trailing lines of s.
func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) <= n {
		return s
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}
