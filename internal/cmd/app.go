package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/taskflow/internal/config"
	"github.com/harrison/taskflow/internal/executor"
	"github.com/harrison/taskflow/internal/history"
	"github.com/harrison/taskflow/internal/logger"
	"github.com/harrison/taskflow/internal/metrics"
	"github.com/harrison/taskflow/internal/models"
	"github.com/harrison/taskflow/internal/notify"
	"github.com/harrison/taskflow/internal/registry"
	"github.com/harrison/taskflow/internal/report"
	"github.com/harrison/taskflow/internal/tasks"
)

// newCommandRunner creates the runner for external tasks and notifications.
// Tests replace it to avoid spawning processes.
var newCommandRunner = func() registry.CommandRunner {
	return registry.NewExecRunner()
}

// loadConfig loads the file named by --config, or the default config path.
// The flag is looked up through the parents so help for the root sees it.
// The returned warning is non-nil when built-in defaults were used.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	var path string
	if f := cmd.Flag("config"); f != nil {
		path = f.Value.String()
	}
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.LoadConfig(path)
}

// app holds the collaborators shared by the commands that run workflows.
type app struct {
	cfg     *config.Config
	console *logger.ConsoleLogger
	file    *logger.FileLogger
	log     *multiLogger
	runner  registry.CommandRunner
	history *history.Store
}

// newApp loads configuration, creates the working directories, and sets up
// console and file logging. Directory failures are fatal.
func newApp(cmd *cobra.Command, verbose bool) (*app, error) {
	cfg, warning := loadConfig(cmd)
	if verbose {
		level := "debug"
		cfg.MergeWithFlags(&level, nil)
	}

	a := &app{
		cfg:     cfg,
		console: logger.NewConsoleLogger(cmd.OutOrStdout(), cfg.LogLevel),
		runner:  newCommandRunner(),
	}
	a.log = &multiLogger{loggers: []runLogger{a.console}}

	if warning != nil {
		a.console.LogWarn(warning.Error())
	}

	if err := cfg.EnsureDirectories(); err != nil {
		a.console.LogError(err.Error())
		return nil, err
	}

	file, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
	if err != nil {
		a.console.LogWarn(fmt.Sprintf("file logging disabled: %v", err))
	} else {
		file.OnError(func(err error) {
			a.console.LogWarn(fmt.Sprintf("log file unavailable, continuing without it: %v", err))
		})
		a.file = file
		a.log.loggers = append(a.log.loggers, file)
	}

	return a, nil
}

// newOrchestrator builds the registry, persistence, and post-run hooks from
// configuration. Optional stores that fail to open are skipped with a warning.
func (a *app) newOrchestrator() *executor.Orchestrator {
	reg := registry.New()
	tasks.RegisterDefaults(reg, a.cfg, a.runner)

	var hooks []executor.RunHook
	if a.cfg.History.Enabled {
		store, err := history.Open(a.cfg.History.DBPath)
		if err != nil {
			a.log.LogWarn(fmt.Sprintf("run history disabled: %v", err))
		} else {
			a.history = store
			hooks = append(hooks, store)
		}
	}
	if a.cfg.Monitoring.Enabled {
		hooks = append(hooks, metrics.NewCollector(a.cfg.Monitoring.MetricsFile))
	}
	if n := notify.New(a.cfg.Notifications, a.runner); n.Enabled() {
		hooks = append(hooks, n)
	}

	return executor.NewOrchestrator(reg, models.NewWorkflowSet(a.cfg.Workflows), executor.OrchestratorConfig{
		Logger:      a.log,
		Reports:     report.NewWriter(a.cfg.ReportDir, report.WithHTML(a.cfg.Reports.HTML)),
		Status:      report.NewStatusFile(a.cfg.StatusPath()),
		Hooks:       hooks,
		TaskTimeout: a.cfg.TaskTimeout,
	})
}

// runEnv loads the env file for external tasks. A broken file is reported
// and ignored.
func (a *app) runEnv() map[string]string {
	env, err := tasks.LoadEnvFile(a.cfg.EnvFile)
	if err != nil {
		a.log.LogWarn(err.Error())
		return nil
	}
	if len(env) > 0 {
		a.log.LogDebug(fmt.Sprintf("loaded %d variable(s) from %s", len(env), a.cfg.EnvFile))
	}
	return env
}

// Close releases the history database.
func (a *app) Close() error {
	if a.history == nil {
		return nil
	}
	return a.history.Close()
}

// ErrWorkflowFailed is returned when a run finished without overall success.
var ErrWorkflowFailed = errors.New("workflow failed")

// runError converts an unsuccessful run into the command error.
func runError(run *models.WorkflowRun) error {
	if run.OverallSuccess {
		return nil
	}
	s := run.Summary()
	if run.Interrupted {
		return fmt.Errorf("%w: %s interrupted after %d of %d task(s)", ErrWorkflowFailed, run.WorkflowName, s.Total, len(run.Tasks))
	}
	return fmt.Errorf("%w: %s had %d failed task(s)", ErrWorkflowFailed, run.WorkflowName, s.Failed)
}
