// Package logger provides the logging sinks for workflow runs.
//
// ConsoleLogger prints human-readable, optionally colourised progress;
// FileLogger appends one line per event to the persistent run log.
// Both implement executor.Logger and are safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/harrison/taskflow/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Log level constants for filtering
const (
	levelTrace int = 0
	levelDebug int = 1
	levelInfo  int = 2
	levelWarn  int = 3
	levelError int = 4
)

// ConsoleLogger logs execution progress to a writer with timestamps and thread safety.
// All output is prefixed with [HH:MM:SS] timestamps.
// Color output is automatically enabled for terminal output (os.Stdout/os.Stderr).
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// Valid levels: trace, debug, info, warn, error (case-insensitive).
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
func isTerminal(w io.Writer) bool {
	if w == nil {
		return false
	}
	if w == os.Stdout || w == os.Stderr {
		// color.NoColor covers NO_COLOR, TERM=dumb and non-TTY stdout
		return !color.NoColor
	}
	return false
}

// normalizeLogLevel converts a log level string to lowercase and validates it.
// Returns "info" as default for empty or invalid levels.
func normalizeLogLevel(level string) string {
	normalized := strings.ToLower(strings.TrimSpace(level))
	switch normalized {
	case "trace", "debug", "info", "warn", "error":
		return normalized
	}
	return "info"
}

// logLevelToInt converts a log level string to its numeric value.
func logLevelToInt(level string) int {
	switch level {
	case "trace":
		return levelTrace
	case "debug":
		return levelDebug
	case "info", "success":
		return levelInfo
	case "warn":
		return levelWarn
	case "error":
		return levelError
	default:
		return levelInfo
	}
}

// shouldLog checks if a message at the given level passes the filter.
func shouldLog(configured, message string) bool {
	return logLevelToInt(message) >= logLevelToInt(configured)
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
// Format: "[HH:MM:SS] [INFO] <message>"
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogSuccess logs a success message at info level, rendered green.
func (cl *ConsoleLogger) LogSuccess(message string) {
	cl.logWithLevel("SUCCESS", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

// logWithLevel writes one formatted line if the level passes the filter.
func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !shouldLog(cl.logLevel, strings.ToLower(level)) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()
	cl.writeLine(level, message)
}

// writeLine must be called with the mutex held.
func (cl *ConsoleLogger) writeLine(level, message string) {
	ts := timestamp()
	if cl.colorOutput {
		fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, levelColor(level).Sprint(level), message)
		return
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", ts, level, message)
}

// levelColor returns the colour used for a level tag.
func levelColor(level string) *color.Color {
	switch level {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "INFO":
		return color.New(color.FgBlue)
	case "SUCCESS":
		return color.New(color.FgGreen)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.Reset)
	}
}

// LogWorkflowStart logs the start of a workflow at INFO level.
// Format: "[HH:MM:SS] Starting workflow <Name>: <count> tasks"
func (cl *ConsoleLogger) LogWorkflowStart(run *models.WorkflowRun) {
	if cl.writer == nil || !shouldLog(cl.logLevel, "info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	name := TitleCase(run.WorkflowName)
	if cl.colorOutput {
		name = color.New(color.Bold).Sprint(name)
	}
	fmt.Fprintf(cl.writer, "[%s] Starting workflow %s: %d tasks\n", timestamp(), name, len(run.Tasks))
	if run.ContinueOnError && shouldLog(cl.logLevel, "debug") {
		cl.writeLine("DEBUG", "continue-on-error enabled")
	}
}

// LogTaskStart logs that a task is about to run.
// Format: "[HH:MM:SS] [INFO] [2/4] Running <task>"
func (cl *ConsoleLogger) LogTaskStart(task string, position, total int) {
	cl.logWithLevel("INFO", fmt.Sprintf("[%d/%d] Running %s", position, total, task))
}

// LogTaskComplete logs a successful task followed by the progress bar.
// Task output is shown at DEBUG level.
func (cl *ConsoleLogger) LogTaskComplete(result models.TaskResult, position, total int) {
	if cl.writer == nil || !shouldLog(cl.logLevel, "info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.writeLine("SUCCESS", fmt.Sprintf("%s completed (%s)", result.Name, FormatDuration(result.Duration())))
	if result.Output != "" && shouldLog(cl.logLevel, "debug") {
		for _, line := range strings.Split(result.Output, "\n") {
			cl.writeLine("DEBUG", "  "+line)
		}
	}
	cl.writeProgress(position, total)
}

// LogTaskFail logs a failed task with its error message.
func (cl *ConsoleLogger) LogTaskFail(result models.TaskResult, position, total int) {
	if cl.writer == nil || !shouldLog(cl.logLevel, "error") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.writeLine("ERROR", fmt.Sprintf("%s failed (%s): %s", result.Name, FormatDuration(result.Duration()), result.Error))
	if shouldLog(cl.logLevel, "info") {
		cl.writeProgress(position, total)
	}
}

// writeProgress renders the progress bar line. Mutex must be held.
func (cl *ConsoleLogger) writeProgress(position, total int) {
	pb := NewProgressBar(total, 20, cl.colorOutput)
	pb.Update(position)
	fmt.Fprintf(cl.writer, "[%s] Progress: %s\n", timestamp(), pb.Render())
}

// LogSummary logs the run summary at INFO level, and failed tasks at ERROR
// level so they stay visible when only errors are shown.
func (cl *ConsoleLogger) LogSummary(run *models.WorkflowRun) {
	if cl.writer == nil {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	summary := run.Summary()
	durationStr := FormatDuration(run.Duration())

	status := "SUCCESS"
	statusColor := color.New(color.FgGreen, color.Bold)
	switch {
	case run.Interrupted:
		status = "INTERRUPTED"
		statusColor = color.New(color.FgYellow, color.Bold)
	case !run.OverallSuccess:
		status = "FAILED"
		statusColor = color.New(color.FgRed, color.Bold)
	}

	paint := func(c *color.Color, s string) string {
		if cl.colorOutput {
			return c.Sprint(s)
		}
		return s
	}

	var sb strings.Builder
	if shouldLog(cl.logLevel, "info") {
		header := fmt.Sprintf("=== %s Workflow Summary ===", TitleCase(run.WorkflowName))
		sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, paint(color.New(color.Bold), header)))
		sb.WriteString(fmt.Sprintf("[%s] Status: %s\n", ts, paint(statusColor, status)))
		sb.WriteString(fmt.Sprintf("[%s] Total tasks: %d\n", ts, summary.Total))
		sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, paint(color.New(color.FgGreen), fmt.Sprintf("Successful: %d", summary.Successful))))
		if summary.Failed > 0 {
			sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, paint(color.New(color.FgRed), fmt.Sprintf("Failed: %d", summary.Failed))))
		} else {
			sb.WriteString(fmt.Sprintf("[%s] Failed: %d\n", ts, summary.Failed))
		}
		if summary.Skipped > 0 {
			sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, paint(color.New(color.FgYellow), fmt.Sprintf("Skipped: %d", summary.Skipped))))
		}
		sb.WriteString(fmt.Sprintf("[%s] Duration: %s\n", ts, durationStr))
		if run.ReportID != "" {
			sb.WriteString(fmt.Sprintf("[%s] Report: %s\n", ts, run.ReportID))
		}
	}

	if failed := run.FailedResults(); len(failed) > 0 {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", ts, paint(color.New(color.FgRed), "Failed tasks:")))
		for _, r := range failed {
			sb.WriteString(fmt.Sprintf("[%s]   - %s: %s\n", ts, paint(color.New(color.FgRed), r.Name), r.Error))
		}
	}

	cl.writer.Write([]byte(sb.String()))
}

// TitleCase renders a workflow name for display ("production" -> "Production").
func TitleCase(name string) string {
	return cases.Title(language.English).String(strings.ReplaceAll(name, "-", " "))
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

// FormatDuration renders d for humans.
// Examples: "850ms", "5s", "1m30s", "2h15m"
func FormatDuration(d time.Duration) string {
	switch {
	case d >= time.Hour:
		hours := d / time.Hour
		remainder := d % time.Hour
		if remainder == 0 {
			return fmt.Sprintf("%dh", hours)
		}
		minutes := remainder / time.Minute
		remainder = remainder % time.Minute
		if remainder < time.Second {
			return fmt.Sprintf("%dh%dm", hours, minutes)
		}
		return fmt.Sprintf("%dh%dm%ds", hours, minutes, remainder/time.Second)
	case d >= time.Minute:
		minutes := d / time.Minute
		remainder := d % time.Minute
		if remainder < time.Second {
			return fmt.Sprintf("%dm", minutes)
		}
		return fmt.Sprintf("%dm%ds", minutes, remainder/time.Second)
	case d >= time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
}
