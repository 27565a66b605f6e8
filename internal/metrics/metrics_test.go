package metrics

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/taskflow/internal/executor"
	"github.com/harrison/taskflow/internal/models"
)

var _ executor.RunHook = (*Collector)(nil)

func sampleRun(success bool) *models.WorkflowRun {
	end := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run := &models.WorkflowRun{
		WorkflowName: "maintenance",
		Tasks:        []string{"cleanup", "backup"},
		StartTime:    end.Add(-2 * time.Second),
		EndTime:      end,
		TaskResults: []models.TaskResult{
			{Name: "cleanup", Success: true, DurationMs: 1500},
			{Name: "backup", Success: success, DurationMs: 500},
		},
	}
	run.OverallSuccess = run.ComputeOverallSuccess()
	return run
}

func TestAfterRunWritesTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "metrics.prom")
	c := NewCollector(path)

	require.NoError(t, c.AfterRun(context.Background(), sampleRun(true)))
	require.NoError(t, c.AfterRun(context.Background(), sampleRun(false)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	for _, want := range []string{
		`taskflow_workflow_runs_total{result="success",workflow="maintenance"} 1`,
		`taskflow_workflow_runs_total{result="failure",workflow="maintenance"} 1`,
		`taskflow_task_runs_total{result="success",task="cleanup",workflow="maintenance"} 2`,
		`taskflow_task_runs_total{result="failure",task="backup",workflow="maintenance"} 1`,
		`taskflow_task_duration_seconds_count{task="cleanup",workflow="maintenance"} 2`,
		`taskflow_last_run_duration_seconds{workflow="maintenance"} 2`,
		`taskflow_last_run_timestamp_seconds{workflow="maintenance"} 1.7723592e+09`,
	} {
		assert.True(t, strings.Contains(text, want), "missing %q in:\n%s", want, text)
	}
}

func TestCountersArePerProcess(t *testing.T) {
	path := filepath.Join(t.TempDir(), "metrics.prom")
	want := `taskflow_workflow_runs_total{result="success",workflow="maintenance"} 1`

	// Each collector stands for one CLI invocation writing the same file
	for i := 0; i < 2; i++ {
		c := NewCollector(path)
		require.NoError(t, c.AfterRun(context.Background(), sampleRun(true)))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), want, "run %d", i+1)
	}
}

func TestInterruptedRunResult(t *testing.T) {
	c := NewCollector(filepath.Join(t.TempDir(), "metrics.prom"))
	run := sampleRun(true)
	run.Interrupted = true
	c.Observe(run)

	families, err := c.Registry().Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() != "taskflow_workflow_runs_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "result" && label.GetValue() == "interrupted" {
					found = true
				}
			}
		}
	}
	assert.True(t, found, "interrupted runs must be labelled as such")
}

func TestWriteTextfileError(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	c := NewCollector(filepath.Join(blocker, "metrics.prom"))
	assert.Error(t, c.WriteTextfile())
}
