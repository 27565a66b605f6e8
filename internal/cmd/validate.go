package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/taskflow/internal/config"
	"github.com/harrison/taskflow/internal/display"
	"github.com/harrison/taskflow/internal/models"
	"github.com/harrison/taskflow/internal/registry"
	"github.com/harrison/taskflow/internal/schedule"
	"github.com/harrison/taskflow/internal/tasks"
)

// NewValidateCommand creates and returns the validate subcommand
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration without running anything",
		Long: `Load the configuration and check that:
  - The file parses and matches the configuration schema
  - Every task of every workflow is registered
  - Every schedule names a workflow and has a valid cron expression

Exit code: 0 if valid, 1 if problems were found`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, warning := loadConfig(cmd)
			return validateConfig(cmd, cfg, warning)
		},
	}
}

// validateConfig prints one row per workflow and schedule and returns an
// error when anything is wrong.
func validateConfig(cmd *cobra.Command, cfg *config.Config, loadWarning error) error {
	out := cmd.OutOrStdout()
	var problems []string

	switch {
	case errors.Is(loadWarning, config.ErrConfigNotFound):
		fmt.Fprintln(out, "No configuration file found, checking the built-in defaults.")
	case loadWarning != nil:
		problems = append(problems, loadWarning.Error())
	}

	reg := registry.New()
	tasks.RegisterDefaults(reg, cfg, newCommandRunner())
	workflows := models.NewWorkflowSet(cfg.Workflows)

	rows := make([][]string, 0, len(workflows))
	for _, name := range workflows.Names() {
		wf, _ := workflows.Get(name)
		status := "ok"
		if err := reg.Validate(wf); err != nil {
			status = "invalid"
			problems = append(problems, fmt.Sprintf("workflow %s: %v", name, err))
		}
		rows = append(rows, []string{name, strings.Join(wf.Tasks, ", "), status})
	}
	if err := display.NewOutput(out, false).Table([]string{"WORKFLOW", "TASKS", "STATUS"}, rows); err != nil {
		return err
	}

	if _, err := schedule.Parse(cfg.Schedules, workflows); err != nil {
		problems = append(problems, splitErrors(err)...)
	}

	if len(problems) > 0 {
		display.Warning{
			Title:      fmt.Sprintf("%d problem(s) found", len(problems)),
			Items:      problems,
			Suggestion: "Fix the configuration file and run 'taskflow validate' again",
		}.Display(cmd.ErrOrStderr())
		return fmt.Errorf("configuration is invalid: %d problem(s)", len(problems))
	}

	fmt.Fprintf(out, "\nConfiguration is valid: %d workflow(s), %d schedule(s).\n", len(rows), len(cfg.Schedules))
	return nil
}

// splitErrors flattens an errors.Join result into its messages.
func splitErrors(err error) []string {
	var joined interface{ Unwrap() []error }
	if errors.As(err, &joined) {
		var msgs []string
		for _, e := range joined.Unwrap() {
			msgs = append(msgs, e.Error())
		}
		return msgs
	}
	return []string{err.Error()}
}
