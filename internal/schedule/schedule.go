// Package schedule turns the configured cron expressions into due times and
// runs workflows when they fall due.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/harrison/taskflow/internal/models"
)

// cronParser accepts standard 5-field expressions and @descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateCronExpr checks that expr is a valid cron expression.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Entry binds a workflow to its cron schedule.
type Entry struct {
	Workflow string
	Expr     string
	schedule cron.Schedule
}

// Next returns the first activation strictly after from.
func (e Entry) Next(from time.Time) time.Time {
	return e.schedule.Next(from)
}

// Parse validates every schedule against the known workflows and returns the
// entries sorted by workflow name. All problems are reported together.
func Parse(schedules map[string]string, workflows models.WorkflowSet) ([]Entry, error) {
	names := make([]string, 0, len(schedules))
	for name := range schedules {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		entries []Entry
		errs    []error
	)
	for _, name := range names {
		expr := schedules[name]
		if _, ok := workflows.Get(name); !ok {
			errs = append(errs, fmt.Errorf("schedule %s: unknown workflow", name))
			continue
		}
		sched, err := cronParser.Parse(expr)
		if err != nil {
			errs = append(errs, fmt.Errorf("schedule %s: invalid cron expression %q: %w", name, expr, err))
			continue
		}
		entries = append(entries, Entry{Workflow: name, Expr: expr, schedule: sched})
	}

	return entries, errors.Join(errs...)
}

// RunFunc executes one scheduled workflow run.
type RunFunc func(ctx context.Context, workflow string) error

// Logger receives scheduler events.
type Logger interface {
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
}

// Runner fires workflows on their cron schedules until stopped.
// Scheduled runs never overlap: a run that falls due while another is in
// flight is skipped.
type Runner struct {
	cron    *cron.Cron
	entries []Entry
	run     RunFunc
	logger  Logger

	busy sync.Mutex
	ctx  context.Context
}

// NewRunner creates a Runner for entries.
func NewRunner(entries []Entry, run RunFunc, logger Logger) *Runner {
	r := &Runner{
		entries: entries,
		run:     run,
		logger:  logger,
		ctx:     context.Background(),
	}

	cl := cronLogger{logger: logger}
	r.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	for _, e := range entries {
		workflow := e.Workflow
		r.cron.Schedule(e.schedule, cron.FuncJob(func() { r.trigger(workflow) }))
	}
	return r
}

// Entries returns the scheduled entries.
func (r *Runner) Entries() []Entry {
	return r.entries
}

// Run starts the scheduler and blocks until ctx is cancelled. A run in
// flight is allowed to finish before Run returns.
func (r *Runner) Run(ctx context.Context) error {
	if len(r.entries) == 0 {
		return errors.New("no schedules configured")
	}

	r.ctx = ctx
	r.cron.Start()
	for _, e := range r.entries {
		r.logger.LogInfo(fmt.Sprintf("scheduled %s (%s), next run %s", e.Workflow, e.Expr, e.Next(time.Now()).Format(time.RFC3339)))
	}

	<-ctx.Done()
	<-r.cron.Stop().Done()
	return nil
}

// trigger runs workflow unless another scheduled run is in flight.
func (r *Runner) trigger(workflow string) {
	if !r.busy.TryLock() {
		r.logger.LogWarn(fmt.Sprintf("skipping scheduled %s run: another run is in progress", workflow))
		return
	}
	defer r.busy.Unlock()

	if r.ctx.Err() != nil {
		return
	}

	r.logger.LogInfo(fmt.Sprintf("starting scheduled %s run", workflow))
	if err := r.run(r.ctx, workflow); err != nil {
		r.logger.LogError(fmt.Sprintf("scheduled %s run failed: %v", workflow, err))
	}
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	logger Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	if msg == "skip" {
		l.logger.LogWarn("skipping scheduled run: previous run of the same schedule still in progress")
	}
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.LogError(fmt.Sprintf("scheduler: %s: %v", msg, err))
}
