package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/taskflow/internal/display"
	"github.com/harrison/taskflow/internal/report"
)

// NewStatusCommand creates the status command
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the orchestrator status as JSON",
		Long: `Print the last status snapshot published by a running or finished workflow:
the current workflow, running, completed and failed tasks, and elapsed time.

The snapshot is read from status.json in the state directory, so this works
while a workflow is running in another terminal.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := loadConfig(cmd)

			snapshot, err := report.ReadStatus(cfg.StatusPath())
			if errors.Is(err, report.ErrNoStatus) {
				fmt.Fprintln(cmd.OutOrStdout(), "No workflow has run yet.")
				return nil
			}
			if err != nil {
				return err
			}
			return display.NewOutput(cmd.OutOrStdout(), true).JSON(snapshot)
		},
	}
}
