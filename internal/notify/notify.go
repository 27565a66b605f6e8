// Package notify runs the configured notification command after a workflow run.
package notify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/harrison/taskflow/internal/config"
	"github.com/harrison/taskflow/internal/models"
	"github.com/harrison/taskflow/internal/registry"
)

// Environment variables passed to the notification command.
const (
	EnvWorkflow = "TASKFLOW_WORKFLOW"
	EnvSuccess  = "TASKFLOW_SUCCESS"
	EnvReport   = "TASKFLOW_REPORT"
	EnvMessage  = "TASKFLOW_MESSAGE"
)

// Notifier delivers run outcomes through an external command.
type Notifier struct {
	cfg    config.NotificationConfig
	runner registry.CommandRunner
}

// New creates a Notifier. A nil runner defaults to registry.ExecRunner.
func New(cfg config.NotificationConfig, runner registry.CommandRunner) *Notifier {
	if runner == nil {
		runner = registry.NewExecRunner()
	}
	return &Notifier{cfg: cfg, runner: runner}
}

// Enabled reports whether a notification command is configured.
func (n *Notifier) Enabled() bool {
	return n.cfg.Command != ""
}

// ShouldNotify reports whether the run outcome is one the user subscribed to.
func (n *Notifier) ShouldNotify(run *models.WorkflowRun) bool {
	if !n.Enabled() {
		return false
	}
	if run.OverallSuccess {
		return n.cfg.OnSuccess
	}
	return n.cfg.OnFailure
}

// AfterRun sends the notification for run, if any.
func (n *Notifier) AfterRun(ctx context.Context, run *models.WorkflowRun) error {
	if !n.ShouldNotify(run) {
		return nil
	}

	spec := registry.CommandSpec{
		Path: n.cfg.Command,
		Args: append([]string(nil), n.cfg.Args...),
		Env: map[string]string{
			EnvWorkflow: run.WorkflowName,
			EnvSuccess:  strconv.FormatBool(run.OverallSuccess),
			EnvReport:   run.ReportID,
			EnvMessage:  Message(run),
		},
	}

	result, err := n.runner.Run(ctx, spec)
	if err != nil {
		return fmt.Errorf("notification command failed: %w", err)
	}
	if result.ExitCode != 0 {
		return &registry.ExitError{Command: spec.String(), ExitCode: result.ExitCode, Stderr: result.Stderr}
	}
	return nil
}

// Message returns a one-line, human-readable outcome of run.
func Message(run *models.WorkflowRun) string {
	s := run.Summary()
	declared := len(run.Tasks)

	switch {
	case run.Interrupted:
		return fmt.Sprintf("Workflow %s interrupted after %d of %d tasks", run.WorkflowName, s.Total, declared)
	case run.OverallSuccess:
		return fmt.Sprintf("Workflow %s completed. All %d tasks passed", run.WorkflowName, declared)
	}

	msg := fmt.Sprintf("Workflow %s failed. %d of %d tasks passed, %d failed", run.WorkflowName, s.Successful, declared, s.Failed)
	if failed := run.FailedResults(); len(failed) > 0 {
		msg += fmt.Sprintf(" (first failure: %s)", failed[0].Name)
	}
	return msg
}
