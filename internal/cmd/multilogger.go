package cmd

import (
	"github.com/harrison/taskflow/internal/executor"
	"github.com/harrison/taskflow/internal/models"
)

// runLogger is implemented by both the console and the file logger.
type runLogger interface {
	executor.Logger
	LogDebug(message string)
	LogInfo(message string)
	LogSuccess(message string)
	LogError(message string)
}

// multiLogger implements executor.Logger by delegating to multiple loggers
type multiLogger struct {
	loggers []runLogger
}

// LogWorkflowStart forwards to all loggers
func (ml *multiLogger) LogWorkflowStart(run *models.WorkflowRun) {
	for _, l := range ml.loggers {
		l.LogWorkflowStart(run)
	}
}

// LogTaskStart forwards to all loggers
func (ml *multiLogger) LogTaskStart(task string, position, total int) {
	for _, l := range ml.loggers {
		l.LogTaskStart(task, position, total)
	}
}

// LogTaskComplete forwards to all loggers
func (ml *multiLogger) LogTaskComplete(result models.TaskResult, position, total int) {
	for _, l := range ml.loggers {
		l.LogTaskComplete(result, position, total)
	}
}

// LogTaskFail forwards to all loggers
func (ml *multiLogger) LogTaskFail(result models.TaskResult, position, total int) {
	for _, l := range ml.loggers {
		l.LogTaskFail(result, position, total)
	}
}

// LogSummary forwards to all loggers
func (ml *multiLogger) LogSummary(run *models.WorkflowRun) {
	for _, l := range ml.loggers {
		l.LogSummary(run)
	}
}

func (ml *multiLogger) LogDebug(message string) {
	for _, l := range ml.loggers {
		l.LogDebug(message)
	}
}

func (ml *multiLogger) LogInfo(message string) {
	for _, l := range ml.loggers {
		l.LogInfo(message)
	}
}

func (ml *multiLogger) LogSuccess(message string) {
	for _, l := range ml.loggers {
		l.LogSuccess(message)
	}
}

func (ml *multiLogger) LogWarn(message string) {
	for _, l := range ml.loggers {
		l.LogWarn(message)
	}
}

func (ml *multiLogger) LogError(message string) {
	for _, l := range ml.loggers {
		l.LogError(message)
	}
}
