package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/taskflow/internal/display"
	"github.com/harrison/taskflow/internal/logger"
	"github.com/harrison/taskflow/internal/report"
)

// NewReportsCommand creates the reports command
func NewReportsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports [workflow]",
		Short: "List run reports, newest first",
		Long: `List the reports written by previous runs, newest first, optionally
for a single workflow. Use 'taskflow reports show <id>' to print one report.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			workflow := ""
			if len(args) == 1 {
				workflow = args[0]
			}
			limit, _ := cmd.Flags().GetInt("limit")
			jsonMode, _ := cmd.Flags().GetBool("json")

			cfg, _ := loadConfig(cmd)
			reports, err := report.NewWriter(cfg.ReportDir).List(workflow)
			if err != nil {
				return err
			}
			if limit > 0 && len(reports) > limit {
				reports = reports[:limit]
			}

			if len(reports) == 0 && !jsonMode {
				fmt.Fprintln(cmd.OutOrStdout(), "No reports found.")
				return nil
			}

			rows := make([][]string, 0, len(reports))
			for _, r := range reports {
				rows = append(rows, []string{
					r.ID,
					r.CompletedAt.Local().Format(time.DateTime),
					runLabel(r.OverallSuccess, r.Interrupted),
					fmt.Sprintf("%d/%d", r.Summary.Successful, r.Summary.Total+r.Summary.Skipped),
					logger.FormatDuration(time.Duration(r.DurationMs) * time.Millisecond),
				})
			}
			return display.NewOutput(cmd.OutOrStdout(), jsonMode).Print(
				[]string{"REPORT", "COMPLETED", "RESULT", "PASSED", "DURATION"}, rows, reports)
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of reports to list (0 = all)")
	cmd.Flags().Bool("json", false, "Print reports as JSON")
	cmd.AddCommand(newReportsShowCommand())
	return cmd
}

func newReportsShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:          "show <report-id>",
		Short:        "Print one report as JSON",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _ := loadConfig(cmd)
			r, err := report.NewWriter(cfg.ReportDir).Load(args[0])
			if err != nil {
				return err
			}
			return display.NewOutput(cmd.OutOrStdout(), true).JSON(r)
		},
	}
}

// runLabel names the outcome of a run.
func runLabel(success, interrupted bool) string {
	switch {
	case interrupted:
		return "interrupted"
	case success:
		return "success"
	default:
		return "failed"
	}
}
