package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/taskflow/internal/display"
	"github.com/harrison/taskflow/internal/history"
	"github.com/harrison/taskflow/internal/logger"
)

// NewHistoryCommand creates the history command
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [workflow]",
		Short: "Show recent runs or per-task statistics",
		Long: `Show recent runs from the history database, optionally for a single
workflow. With --stats, show per-task success rates and average durations
instead.

History is recorded when history.enabled is true (the default).`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE:         historyCommand,
	}

	cmd.Flags().Int("limit", 10, "Maximum number of runs to show")
	cmd.Flags().Bool("stats", false, "Show per-task statistics")
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

func historyCommand(cmd *cobra.Command, args []string) error {
	workflow := ""
	if len(args) == 1 {
		workflow = args[0]
	}
	limit, _ := cmd.Flags().GetInt("limit")
	stats, _ := cmd.Flags().GetBool("stats")
	jsonMode, _ := cmd.Flags().GetBool("json")

	cfg, _ := loadConfig(cmd)
	if !cfg.History.Enabled {
		return errors.New("run history is disabled (history.enabled: false)")
	}

	store, err := history.Open(cfg.History.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	out := display.NewOutput(cmd.OutOrStdout(), jsonMode)

	if stats {
		taskStats, err := store.TaskStats(cmd.Context(), workflow)
		if err != nil {
			return err
		}
		if len(taskStats) == 0 && !jsonMode {
			fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
			return nil
		}
		rows := make([][]string, 0, len(taskStats))
		for _, s := range taskStats {
			rows = append(rows, []string{
				s.Task,
				fmt.Sprintf("%d", s.Runs),
				fmt.Sprintf("%.0f%%", s.SuccessRate()*100),
				logger.FormatDuration(time.Duration(s.AvgDurationMs) * time.Millisecond),
				s.LastError,
			})
		}
		return out.Print([]string{"TASK", "RUNS", "SUCCESS", "AVG DURATION", "LAST ERROR"}, rows, taskStats)
	}

	runs, err := store.RecentRuns(cmd.Context(), workflow, limit)
	if err != nil {
		return err
	}
	if len(runs) == 0 && !jsonMode {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.StartedAt.Local().Format(time.DateTime),
			r.Workflow,
			runLabel(r.Success, r.Interrupted),
			fmt.Sprintf("%d/%d", r.Summary.Successful, r.Summary.Total+r.Summary.Skipped),
			logger.FormatDuration(time.Duration(r.DurationMs) * time.Millisecond),
			r.ReportID,
		})
	}
	return out.Print([]string{"STARTED", "WORKFLOW", "RESULT", "PASSED", "DURATION", "REPORT"}, rows, runs)
}
