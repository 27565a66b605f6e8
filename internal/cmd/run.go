package cmd

import (
	"github.com/spf13/cobra"

	"github.com/harrison/taskflow/internal/executor"
)

// runFlags are shared by the root command and the run command.
type runFlags struct {
	continueOnError bool
	verbose         bool
	yes             bool
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("continue-on-error", false, "Keep running the remaining tasks after a task fails")
	cmd.Flags().Bool("verbose", false, "Show debug output, including task output")
	cmd.Flags().BoolP("yes", "y", false, "Approve workflows that require confirmation (e.g. production)")
}

func readRunFlags(cmd *cobra.Command) runFlags {
	var f runFlags
	f.continueOnError, _ = cmd.Flags().GetBool("continue-on-error")
	f.verbose, _ = cmd.Flags().GetBool("verbose")
	f.yes, _ = cmd.Flags().GetBool("yes")
	return f
}

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [workflow]",
		Short: "Run a workflow (default: " + defaultWorkflow + ")",
		Long: `Run the named workflow, one task at a time in declared order.

The first failed task stops the workflow unless --continue-on-error is given.
SIGINT or SIGTERM stops the run after the current task is cancelled; the
partial run is still reported.

Workflows listed under deployment.approval_workflows ask for confirmation on
a terminal, and need --yes otherwise.

Exit code: 0 if every task succeeded, 1 otherwise`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         runWorkflowCommand,
	}
	addRunFlags(cmd)
	return cmd
}

// runWorkflowCommand runs args[0], or the default workflow.
func runWorkflowCommand(cmd *cobra.Command, args []string) error {
	name := defaultWorkflow
	if len(args) == 1 {
		name = args[0]
	}
	flags := readRunFlags(cmd)

	a, err := newApp(cmd, flags.verbose)
	if err != nil {
		return err
	}
	defer a.Close()

	orch := a.newOrchestrator()

	// Configuration problems are reported before asking for approval
	if _, err := orch.Validate(name); err != nil {
		a.log.LogError(err.Error())
		return err
	}

	if a.cfg.RequiresApproval(name) {
		approved, err := confirmRun(cmd, name, flags.yes)
		if err != nil {
			return err
		}
		if !approved {
			err := &ApprovalError{Workflow: name}
			a.log.LogError(err.Error())
			return err
		}
	}

	run, err := orch.RunWorkflow(cmd.Context(), name, executor.RunOptions{
		ContinueOnError: flags.continueOnError,
		Verbose:         flags.verbose,
		Env:             a.runEnv(),
	})
	if err != nil {
		a.log.LogError(err.Error())
		return err
	}

	return runError(run)
}
