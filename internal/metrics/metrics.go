// Package metrics records run and task outcomes as Prometheus metrics and
// writes them to a textfile for the node exporter's textfile collector.
package metrics

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/harrison/taskflow/internal/models"
)

const namespace = "taskflow"

// Collector holds the metrics of this process.
//
// Counters start at zero in every process and are not reloaded from an
// earlier textfile, so the file written by a single CLI run only counts that
// run. Totals across runs accumulate only inside a long-lived process such as
// 'taskflow schedule run'; use the history store for cumulative figures.
type Collector struct {
	registry *prometheus.Registry
	path     string

	workflowRuns *prometheus.CounterVec
	taskRuns     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	runDuration  *prometheus.GaugeVec
	lastRun      *prometheus.GaugeVec
}

// NewCollector creates a Collector that writes to path after every run.
func NewCollector(path string) *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		path:     path,
		workflowRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Workflow runs by outcome.",
		}, []string{"workflow", "result"}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_runs_total",
			Help:      "Task invocations by outcome.",
		}, []string{"workflow", "task", "result"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time.",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		}, []string{"workflow", "task"}),
		runDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Duration of the most recent run.",
		}, []string{"workflow"}),
		lastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Completion time of the most recent run.",
		}, []string{"workflow"}),
	}

	c.registry.MustRegister(c.workflowRuns, c.taskRuns, c.taskDuration, c.runDuration, c.lastRun)
	return c
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe records a sealed run.
func (c *Collector) Observe(run *models.WorkflowRun) {
	c.workflowRuns.WithLabelValues(run.WorkflowName, runResult(run)).Inc()

	for _, r := range run.TaskResults {
		result := "success"
		if !r.Success {
			result = "failure"
		}
		c.taskRuns.WithLabelValues(run.WorkflowName, r.Name, result).Inc()
		c.taskDuration.WithLabelValues(run.WorkflowName, r.Name).Observe(r.Duration().Seconds())
	}

	c.runDuration.WithLabelValues(run.WorkflowName).Set(run.Duration().Seconds())
	c.lastRun.WithLabelValues(run.WorkflowName).Set(float64(run.EndTime.Unix()))
}

// AfterRun observes the run and rewrites the textfile.
func (c *Collector) AfterRun(ctx context.Context, run *models.WorkflowRun) error {
	c.Observe(run)
	return c.WriteTextfile()
}

// WriteTextfile writes every metric to the configured path.
func (c *Collector) WriteTextfile() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(c.path, c.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

func runResult(run *models.WorkflowRun) string {
	switch {
	case run.Interrupted:
		return "interrupted"
	case run.OverallSuccess:
		return "success"
	default:
		return "failure"
	}
}
