// Package executor runs workflows: it resolves each task through the registry,
// invokes the handlers strictly in declared order, tracks diagnostic state, and
// seals the outcome into a models.WorkflowRun.
package executor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/harrison/taskflow/internal/models"
	"github.com/harrison/taskflow/internal/registry"
)

// Logger receives every state transition of a run.
type Logger interface {
	LogWorkflowStart(run *models.WorkflowRun)
	LogTaskStart(task string, position, total int)
	LogTaskComplete(result models.TaskResult, position, total int)
	LogTaskFail(result models.TaskResult, position, total int)
	LogSummary(run *models.WorkflowRun)
	LogWarn(message string)
}

// ReportWriter persists a sealed run and returns the report identifier.
type ReportWriter interface {
	Write(run *models.WorkflowRun) (string, error)
}

// StatusPublisher exposes state snapshots to other processes.
type StatusPublisher interface {
	Publish(snapshot models.StatusSnapshot) error
}

// RunHook is called after a run has been sealed and its report written.
// Hook errors are logged as warnings and never change the run outcome.
type RunHook interface {
	AfterRun(ctx context.Context, run *models.WorkflowRun) error
}

// RunHookFunc adapts a function to the RunHook interface.
type RunHookFunc func(ctx context.Context, run *models.WorkflowRun) error

// AfterRun calls f(ctx, run).
func (f RunHookFunc) AfterRun(ctx context.Context, run *models.WorkflowRun) error {
	return f(ctx, run)
}

// RunOptions controls a single RunWorkflow call.
type RunOptions struct {
	ContinueOnError bool              // Keep going after a failed task
	Verbose         bool              // Passed through to handlers
	Env             map[string]string // Extra environment for external commands
}

// OrchestratorConfig holds the optional collaborators of an Orchestrator.
type OrchestratorConfig struct {
	Logger      Logger           // Defaults to a no-op logger
	Reports     ReportWriter     // Optional report persistence
	Status      StatusPublisher  // Optional status publication
	Hooks       []RunHook        // Called in order after each run
	TaskTimeout time.Duration    // Per-task deadline (0 = none)
	Clock       func() time.Time // Defaults to time.Now
}

// Orchestrator executes named workflows one task at a time.
type Orchestrator struct {
	registry    *registry.Registry
	workflows   models.WorkflowSet
	logger      Logger
	reports     ReportWriter
	status      StatusPublisher
	hooks       []RunHook
	taskTimeout time.Duration
	now         func() time.Time

	state *State
	runMu sync.Mutex
}

// NewOrchestrator creates a new Orchestrator instance.
// Panics if reg is nil.
func NewOrchestrator(reg *registry.Registry, workflows models.WorkflowSet, cfg OrchestratorConfig) *Orchestrator {
	if reg == nil {
		panic("task registry cannot be nil")
	}
	if workflows == nil {
		workflows = models.WorkflowSet{}
	}

	o := &Orchestrator{
		registry:    reg,
		workflows:   workflows,
		logger:      cfg.Logger,
		reports:     cfg.Reports,
		status:      cfg.Status,
		hooks:       cfg.Hooks,
		taskTimeout: cfg.TaskTimeout,
		now:         cfg.Clock,
		state:       NewState(),
	}
	if o.logger == nil {
		o.logger = nopLogger{}
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// Workflows returns the workflow definitions known to the orchestrator.
func (o *Orchestrator) Workflows() models.WorkflowSet {
	return o.workflows
}

// Registry returns the task registry used to resolve handlers.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// Status returns an instantaneous, read-only snapshot of the orchestrator state.
// Safe to call while a run is in flight.
func (o *Orchestrator) Status() models.StatusSnapshot {
	return o.state.Snapshot(o.now())
}

// Validate checks that the named workflow exists and all its tasks resolve.
func (o *Orchestrator) Validate(name string) (models.Workflow, error) {
	wf, ok := o.workflows.Get(name)
	if !ok {
		return models.Workflow{}, &UnknownWorkflowError{Name: name, Available: o.workflows.Names()}
	}
	if err := o.registry.Validate(wf); err != nil {
		return models.Workflow{}, err
	}
	return wf, nil
}

// RunWorkflow executes the named workflow and returns the sealed run.
//
// Only configuration problems (unknown workflow, unknown task) are returned as
// errors, and they are detected before any task runs. Task failures are
// recorded in the run. SIGINT/SIGTERM cancel the run: the in-flight task sees
// a cancelled context, no further task starts, and the partial run is sealed
// with Interrupted set.
func (o *Orchestrator) RunWorkflow(ctx context.Context, name string, opts RunOptions) (*models.WorkflowRun, error) {
	o.runMu.Lock()
	defer o.runMu.Unlock()

	wf, err := o.Validate(name)
	if err != nil {
		return nil, err
	}

	handlers := make([]registry.Handler, len(wf.Tasks))
	for i, task := range wf.Tasks {
		h, err := o.registry.Resolve(task)
		if err != nil {
			return nil, err
		}
		handlers[i] = h
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			o.logger.LogWarn(fmt.Sprintf("Received %s, shutting down gracefully...", sig))
			cancel()
		case <-ctx.Done():
		}
	}()

	start := o.now()
	run := &models.WorkflowRun{
		ID:              uuid.NewString(),
		WorkflowName:    wf.Name,
		Tasks:           append([]string(nil), wf.Tasks...),
		StartTime:       start,
		TaskResults:     make([]models.TaskResult, 0, len(wf.Tasks)),
		ContinueOnError: opts.ContinueOnError,
	}

	o.state.Reset(wf.Name, start)
	o.publishStatus()
	o.logger.LogWorkflowStart(run)

	handlerOpts := registry.Options{
		WorkflowName:    wf.Name,
		ContinueOnError: opts.ContinueOnError,
		Verbose:         opts.Verbose,
		Env:             opts.Env,
	}

	total := len(wf.Tasks)
	for i, task := range wf.Tasks {
		if ctx.Err() != nil {
			run.Interrupted = true
			break
		}

		result := o.runTask(ctx, task, handlers[i], handlerOpts, i+1, total)
		run.TaskResults = append(run.TaskResults, result)

		if result.Success {
			continue
		}
		if ctx.Err() != nil {
			run.Interrupted = true
			break
		}
		if !opts.ContinueOnError {
			break
		}
	}

	run.EndTime = o.now()
	run.OverallSuccess = run.ComputeOverallSuccess()

	o.state.Finish(run.EndTime)
	o.publishStatus()

	o.finalize(context.WithoutCancel(ctx), run)

	return run, nil
}

// runTask invokes one handler and seals its result. The task is removed from
// the running set whatever the outcome.
func (o *Orchestrator) runTask(ctx context.Context, name string, handler registry.Handler, opts registry.Options, position, total int) models.TaskResult {
	o.state.MarkRunning(name)
	o.publishStatus()
	defer func() {
		o.state.ClearRunning(name)
		o.publishStatus()
	}()

	o.logger.LogTaskStart(name, position, total)

	taskCtx := ctx
	if o.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, o.taskTimeout)
		defer cancel()
	}

	start := o.now()
	output, err := invokeHandler(taskCtx, name, handler, opts)
	end := o.now()

	if err != nil && o.taskTimeout > 0 && ctx.Err() == nil && taskCtx.Err() == context.DeadlineExceeded {
		err = NewTimeoutError(name, o.taskTimeout)
	}

	result := models.TaskResult{
		Name:       name,
		StartTime:  start,
		EndTime:    end,
		DurationMs: end.Sub(start).Milliseconds(),
		Output:     output,
	}

	if err != nil {
		result.Error = err.Error()
		o.state.MarkFailed(name)
		o.logger.LogTaskFail(result, position, total)
		return result
	}

	result.Success = true
	o.state.MarkCompleted(name)
	o.logger.LogTaskComplete(result, position, total)
	return result
}

// invokeHandler calls the handler and converts a panic into a task failure.
func invokeHandler(ctx context.Context, name string, handler registry.Handler, opts registry.Options) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = ""
			err = NewTaskError(name, "handler panicked", fmt.Errorf("%v", r))
		}
	}()
	return handler.Invoke(ctx, opts)
}

// finalize persists the run and runs hooks. Every step is best-effort.
func (o *Orchestrator) finalize(ctx context.Context, run *models.WorkflowRun) {
	if o.reports != nil {
		id, err := o.reports.Write(run)
		if err != nil {
			o.logger.LogWarn(fmt.Sprintf("failed to write report: %v", err))
		} else {
			run.ReportID = id
		}
	}

	for _, hook := range o.hooks {
		if err := hook.AfterRun(ctx, run); err != nil {
			o.logger.LogWarn(fmt.Sprintf("post-run hook failed: %v", err))
		}
	}

	o.logger.LogSummary(run)
}

// publishStatus hands the current snapshot to the publisher, if any.
func (o *Orchestrator) publishStatus() {
	if o.status == nil {
		return
	}
	if err := o.status.Publish(o.Status()); err != nil {
		o.logger.LogWarn(fmt.Sprintf("failed to publish status: %v", err))
	}
}

// nopLogger discards all events.
type nopLogger struct{}

func (nopLogger) LogWorkflowStart(*models.WorkflowRun) {}
func (nopLogger) LogTaskStart(string, int, int) {}
func (nopLogger) LogTaskComplete(models.TaskResult, int, int) {}
func (nopLogger) LogTaskFail(models.TaskResult, int, int) {}
func (nopLogger) LogSummary(*models.WorkflowRun) {}
func (nopLogger) LogWarn(string) {}
