package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/taskflow/internal/filelock"
	"github.com/harrison/taskflow/internal/models"
)

// LogFileName is the name of the append-only run log inside the log directory.
const LogFileName = "taskflow.log"

// FileLogger appends one line per event to <logDir>/taskflow.log.
// Format: "<RFC3339 timestamp> [LEVEL] <message>"
//
// The file is opened in append mode for every line under a lock file, so
// runs from separate processes never interleave partial lines. Write failures
// are swallowed; the first one is reported through the OnError callback.
type FileLogger struct {
	path     string
	logLevel string
	now      func() time.Time

	errOnce sync.Once
	onError func(error)
}

// NewFileLogger creates a FileLogger writing to logDir/taskflow.log.
// The directory is created if needed.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	return &FileLogger{
		path:     filepath.Join(logDir, LogFileName),
		logLevel: normalizeLogLevel(logLevel),
		now:      time.Now,
	}, nil
}

// Path returns the log file path.
func (fl *FileLogger) Path() string {
	return fl.path
}

// OnError registers a callback for the first write failure.
func (fl *FileLogger) OnError(fn func(error)) {
	fl.onError = fn
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) {
	fl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) {
	fl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) {
	fl.logWithLevel("INFO", message)
}

// LogSuccess logs a success message at info level.
func (fl *FileLogger) LogSuccess(message string) {
	fl.logWithLevel("SUCCESS", message)
}

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) {
	fl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) {
	fl.logWithLevel("ERROR", message)
}

// LogWorkflowStart logs the start of a workflow run.
func (fl *FileLogger) LogWorkflowStart(run *models.WorkflowRun) {
	fl.logWithLevel("INFO", fmt.Sprintf("workflow %s started (run %s, tasks: %s, continue_on_error=%t)",
		run.WorkflowName, run.ID, strings.Join(run.Tasks, ","), run.ContinueOnError))
}

// LogTaskStart logs the start of a task.
func (fl *FileLogger) LogTaskStart(task string, position, total int) {
	fl.logWithLevel("INFO", fmt.Sprintf("task %s started [%d/%d]", task, position, total))
}

// LogTaskComplete logs a successful task.
func (fl *FileLogger) LogTaskComplete(result models.TaskResult, position, total int) {
	fl.logWithLevel("SUCCESS", fmt.Sprintf("task %s succeeded [%d/%d] in %dms", result.Name, position, total, result.DurationMs))
	if result.Output != "" {
		fl.logWithLevel("DEBUG", fmt.Sprintf("task %s output: %s", result.Name, oneLine(result.Output)))
	}
}

// LogTaskFail logs a failed task.
func (fl *FileLogger) LogTaskFail(result models.TaskResult, position, total int) {
	fl.logWithLevel("ERROR", fmt.Sprintf("task %s failed [%d/%d] in %dms: %s", result.Name, position, total, result.DurationMs, oneLine(result.Error)))
}

// LogSummary logs the end of a workflow run.
func (fl *FileLogger) LogSummary(run *models.WorkflowRun) {
	s := run.Summary()
	level := "SUCCESS"
	if !run.OverallSuccess {
		level = "ERROR"
	}
	fl.logWithLevel(level, fmt.Sprintf("workflow %s finished: success=%t interrupted=%t total=%d successful=%d failed=%d skipped=%d duration=%dms report=%s",
		run.WorkflowName, run.OverallSuccess, run.Interrupted, s.Total, s.Successful, s.Failed, s.Skipped, run.Duration().Milliseconds(), run.ReportID))
}

// logWithLevel appends a line if the level passes the filter.
func (fl *FileLogger) logWithLevel(level string, message string) {
	if !shouldLog(fl.logLevel, strings.ToLower(level)) {
		return
	}

	line := fmt.Sprintf("%s [%s] %s", fl.now().Format(time.RFC3339), level, message)
	if err := filelock.AppendLine(fl.path, line); err != nil {
		fl.errOnce.Do(func() {
			if fl.onError != nil {
				fl.onError(err)
			}
		})
	}
}

// oneLine collapses multi-line text so each event stays on one log line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " | ")), " ")
}
