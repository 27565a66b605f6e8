package cmd

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/harrison/taskflow/internal/config"
)

// Version is injected at build time via -ldflags
var Version = "dev"

// defaultWorkflow runs when no workflow is named
const defaultWorkflow = "development"

// rootDescription introduces the tool; the workflow list and examples follow it.
const rootDescription = `Taskflow runs named workflows for the donation site: ordered lists of tasks
such as validating data files, regenerating simulated campaigns and donations,
building, backing up, and deploying.

Tasks run one at a time in declared order. A failed task stops the workflow
unless --continue-on-error is given. Every run is written to a report under
the reports directory, and the exit code is 0 only when every task succeeded.

Configuration is loaded from .taskflow/config.yaml (TASKFLOW_HOME overrides
the .taskflow directory). A missing or invalid file falls back to the
built-in defaults.
`

const rootExamples = `
Examples:
  taskflow                           # Run the development workflow
  taskflow staging --verbose         # Run staging with debug logging
  taskflow run production --yes      # Run production without the approval prompt
  taskflow maintenance --continue-on-error`

// NewRootCommand creates and returns the root cobra command for taskflow
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "taskflow [workflow]",
		Short:        "Run the donation site's automation workflows",
		Long:         rootLong(config.DefaultWorkflows()),
		Args:         cobra.MaximumNArgs(1),
		Version:      Version,
		SilenceUsage: true,
		// main prints the returned error once
		SilenceErrors: true,
		RunE:          runWorkflowCommand,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .taskflow/config.yaml)")
	addRunFlags(cmd)

	// The workflow list comes from the configuration in effect when help is shown
	defaultHelp := cmd.HelpFunc()
	cmd.SetHelpFunc(func(c *cobra.Command, args []string) {
		if c == c.Root() {
			cfg, _ := loadConfig(c)
			workflows := cfg.Workflows
			if len(workflows) == 0 {
				workflows = config.DefaultWorkflows()
			}
			c.Long = rootLong(workflows)
		}
		defaultHelp(c, args)
	})

	cmd.AddCommand(NewRunCommand())
	cmd.AddCommand(NewStatusCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(NewReportsCommand())
	cmd.AddCommand(NewHistoryCommand())
	cmd.AddCommand(NewScheduleCommand())

	return cmd
}

func rootLong(workflows map[string][]string) string {
	return rootDescription + "\n" + workflowHelp(workflows) + rootExamples
}

// workflowHelp lists the workflows and their tasks.
func workflowHelp(workflows map[string][]string) string {
	names := make([]string, 0, len(workflows))
	width := 0
	for name := range workflows {
		names = append(names, name)
		width = max(width, len(name))
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("Workflows (default: " + defaultWorkflow + "):\n")
	for _, name := range names {
		sb.WriteString(fmt.Sprintf("  %-*s  %s\n", width, name, strings.Join(workflows[name], ", ")))
	}
	return sb.String()
}
