package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/taskflow/internal/display"
	"github.com/harrison/taskflow/internal/executor"
	"github.com/harrison/taskflow/internal/models"
	"github.com/harrison/taskflow/internal/schedule"
)

// NewScheduleCommand creates the schedule command group
func NewScheduleCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "List or run the configured cron schedules",
		Long: `Workflows run on the 5-field cron expressions configured under
'schedules', for example:

  schedules:
    maintenance: "0 3 * * *"

'taskflow schedule run' stays in the foreground and runs each workflow when
it falls due, until interrupted. A run that falls due while another is in
flight is skipped.`,
	}

	cmd.AddCommand(newScheduleListCommand())
	cmd.AddCommand(newScheduleRunCommand())
	return cmd
}

// scheduleNow is the reference time for next-run computations
var scheduleNow = time.Now

func newScheduleListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "list",
		Short:        "Show each schedule and its next run",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonMode, _ := cmd.Flags().GetBool("json")
			cfg, _ := loadConfig(cmd)

			entries, err := schedule.Parse(cfg.Schedules, models.NewWorkflowSet(cfg.Workflows))
			if err != nil {
				return err
			}

			type entryJSON struct {
				Workflow string    `json:"workflow"`
				Cron     string    `json:"cron"`
				NextRun  time.Time `json:"next_run"`
			}

			now := scheduleNow()
			rows := make([][]string, 0, len(entries))
			data := make([]entryJSON, 0, len(entries))
			for _, e := range entries {
				next := e.Next(now)
				rows = append(rows, []string{e.Workflow, e.Expr, next.Format(time.DateTime)})
				data = append(data, entryJSON{Workflow: e.Workflow, Cron: e.Expr, NextRun: next})
			}
			return display.NewOutput(cmd.OutOrStdout(), jsonMode).Print([]string{"WORKFLOW", "CRON", "NEXT RUN"}, rows, data)
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func newScheduleRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run workflows on their schedules until interrupted",
		Long: `Run workflows on their schedules until SIGINT or SIGTERM.

Workflows that require approval only run when --yes is given.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         scheduleRunCommand,
	}
	cmd.Flags().Bool("continue-on-error", false, "Keep running the remaining tasks after a task fails")
	cmd.Flags().Bool("verbose", false, "Show debug output, including task output")
	cmd.Flags().BoolP("yes", "y", false, "Allow scheduled runs of workflows that require approval")
	return cmd
}

func scheduleRunCommand(cmd *cobra.Command, args []string) error {
	flags := readRunFlags(cmd)

	a, err := newApp(cmd, flags.verbose)
	if err != nil {
		return err
	}
	defer a.Close()

	orch := a.newOrchestrator()
	entries, err := schedule.Parse(a.cfg.Schedules, orch.Workflows())
	if err != nil {
		a.log.LogError(err.Error())
		return err
	}

	runner := schedule.NewRunner(entries, func(ctx context.Context, workflow string) error {
		if a.cfg.RequiresApproval(workflow) && !flags.yes {
			return &ApprovalError{Workflow: workflow}
		}
		run, err := orch.RunWorkflow(ctx, workflow, executor.RunOptions{
			ContinueOnError: flags.continueOnError,
			Verbose:         flags.verbose,
			Env:             a.runEnv(),
		})
		if err != nil {
			return err
		}
		return runError(run)
	}, a.log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.log.LogInfo("scheduler started, press Ctrl+C to stop")
	if err := runner.Run(ctx); err != nil {
		a.log.LogError(err.Error())
		return err
	}
	a.log.LogInfo("scheduler stopped")
	return nil
}
