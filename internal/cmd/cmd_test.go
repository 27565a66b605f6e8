package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/harrison/taskflow/internal/config"
	"github.com/harrison/taskflow/internal/executor"
	"github.com/harrison/taskflow/internal/registry"
)

// fakeRunner records external commands instead of running them.
// Commands listed in fail exit with status 1.
type fakeRunner struct {
	mu    sync.Mutex
	calls []registry.CommandSpec
	fail  map[string]bool
}

func (f *fakeRunner) Run(ctx context.Context, spec registry.CommandSpec) (*registry.CommandResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, spec)
	if f.fail[spec.String()] {
		return &registry.CommandResult{ExitCode: 1, Stderr: spec.String() + ": boom"}, nil
	}
	return &registry.CommandResult{Stdout: "ok"}, nil
}

func (f *fakeRunner) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cmds []string
	for _, c := range f.calls {
		cmds = append(cmds, c.String())
	}
	return cmds
}

// workspace is a temporary project with a data directory and config file.
type workspace struct {
	dir      string
	stateDir string
	config   string
	runner   *fakeRunner
}

// newWorkspace writes a config file with extra YAML appended and installs a
// fake command runner for the duration of the test.
func newWorkspace(t *testing.T, extra string) *workspace {
	t.Helper()

	dir := t.TempDir()
	ws := &workspace{
		dir:      dir,
		stateDir: filepath.Join(dir, "state"),
		config:   filepath.Join(dir, "config.yaml"),
		runner:   &fakeRunner{fail: map[string]bool{}},
	}
	t.Setenv(config.HomeEnvVar, ws.stateDir)

	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dataDir, "campaigns.json"), []byte(`[{"id":"c1","goal":5000}]`), 0644); err != nil {
		t.Fatal(err)
	}

	content := fmt.Sprintf("state_dir: %q\ndata_dir: %q\nenv_file: %q\n", ws.stateDir, dataDir, filepath.Join(dir, ".env")) + extra
	if err := os.WriteFile(ws.config, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	previous := newCommandRunner
	newCommandRunner = func() registry.CommandRunner { return ws.runner }
	t.Cleanup(func() { newCommandRunner = previous })

	return ws
}

// execute runs the root command with args and the given stdin.
func (ws *workspace) execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", ws.config))

	err := root.ExecuteContext(context.Background())
	return buf.String(), err
}

func (ws *workspace) reports(t *testing.T) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(ws.stateDir, "reports", "*.json"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestRootHelpListsWorkflowsAndFlags(t *testing.T) {
	root := NewRootCommand()
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetArgs([]string{"--help"})

	if err := root.Execute(); err != nil {
		t.Fatalf("help failed: %v", err)
	}

	output := buf.String()
	for _, want := range []string{
		"development", "staging", "production", "maintenance",
		"cleanup, backup, health-check",
		"--continue-on-error", "--verbose", "--config", "--yes",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("help output missing %q", want)
		}
	}
}

func TestRootHelpListsConfiguredWorkflows(t *testing.T) {
	ws := newWorkspace(t, "workflows:\n  nightly: [backup, health-check]\n")

	for _, args := range [][]string{{"help"}, {"--help"}} {
		output, err := ws.execute(t, "", args...)
		if err != nil {
			t.Fatalf("%v failed: %v", args, err)
		}
		for _, want := range []string{"nightly", "backup, health-check", "maintenance"} {
			if !strings.Contains(output, want) {
				t.Errorf("%v output missing %q:\n%s", args, want, output)
			}
		}
	}

	// Subcommand help keeps its own text
	output, err := ws.execute(t, "", "status", "--help")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(output, "nightly") {
		t.Errorf("status help should not list workflows:\n%s", output)
	}
}

func TestRootCommandHasSubcommands(t *testing.T) {
	root := NewRootCommand()
	want := map[string]bool{"run": false, "status": false, "validate": false, "reports": false, "history": false, "schedule": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestRunDefaultWorkflow(t *testing.T) {
	ws := newWorkspace(t, "")

	output, err := ws.execute(t, "")
	if err != nil {
		t.Fatalf("run failed: %v\n%s", err, output)
	}

	want := []string{
		"node scripts/generate-campaigns.js",
		"node scripts/generate-donations.js",
		"node scripts/update-milestones.js",
	}
	if got := ws.runner.commands(); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("commands = %v, want %v", got, want)
	}

	if !strings.Contains(output, "Development Workflow Summary") {
		t.Errorf("summary missing:\n%s", output)
	}
	if n := len(ws.reports(t)); n != 1 {
		t.Errorf("expected 1 report, got %d", n)
	}
	for _, path := range []string{
		filepath.Join(ws.stateDir, "status.json"),
		filepath.Join(ws.stateDir, "logs", "taskflow.log"),
		filepath.Join(ws.stateDir, "history.db"),
	} {
		if _, err := os.Stat(path); err != nil {
			t.Errorf("expected %s: %v", path, err)
		}
	}
}

func TestRunFailFast(t *testing.T) {
	ws := newWorkspace(t, "")
	ws.runner.fail["npm test"] = true

	output, err := ws.execute(t, "", "run", "staging")
	if !errors.Is(err, ErrWorkflowFailed) {
		t.Fatalf("expected ErrWorkflowFailed, got %v", err)
	}

	if got := ws.runner.commands(); len(got) != 1 || got[0] != "npm test" {
		t.Errorf("build must not run after a failed test, got %v", got)
	}
	if !strings.Contains(output, "Failed tasks:") || !strings.Contains(output, "npm test: boom") {
		t.Errorf("failed task and its error missing from summary:\n%s", output)
	}
	if n := len(ws.reports(t)); n != 1 {
		t.Errorf("failed runs are reported too, got %d reports", n)
	}
}

func TestRunContinueOnError(t *testing.T) {
	ws := newWorkspace(t, "")
	ws.runner.fail["npm test"] = true

	output, err := ws.execute(t, "", "staging", "--continue-on-error")
	if !errors.Is(err, ErrWorkflowFailed) {
		t.Fatalf("expected ErrWorkflowFailed, got %v", err)
	}

	if got := ws.runner.commands(); len(got) != 2 || got[1] != "npm run build" {
		t.Errorf("expected test and build, got %v", got)
	}
	if !strings.Contains(output, "Successful: 3") || !strings.Contains(output, "Failed: 1") {
		t.Errorf("unexpected summary:\n%s", output)
	}
}

func TestRunConfigurationErrors(t *testing.T) {
	ws := newWorkspace(t, "workflows:\n  broken: [validate-data, lint]\n")

	t.Run("unknown workflow", func(t *testing.T) {
		_, err := ws.execute(t, "", "run", "nightly")
		if !executor.IsUnknownWorkflow(err) {
			t.Errorf("expected UnknownWorkflowError, got %v", err)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		_, err := ws.execute(t, "", "broken")
		if !registry.IsUnknownTask(err) {
			t.Errorf("expected UnknownTaskError, got %v", err)
		}
	})

	if n := len(ws.reports(t)); n != 0 {
		t.Errorf("configuration errors must not produce reports, got %d", n)
	}
	if len(ws.runner.commands()) != 0 {
		t.Error("nothing may run on configuration errors")
	}
}

func TestRunDirectoryFailure(t *testing.T) {
	ws := newWorkspace(t, "")
	blocker := filepath.Join(ws.dir, "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	extra := fmt.Sprintf("backup_dir: %q\n", filepath.Join(blocker, "backups"))
	if err := appendFile(ws.config, extra); err != nil {
		t.Fatal(err)
	}

	_, err := ws.execute(t, "", "maintenance")
	var dirErr *config.DirectoryError
	if !errors.As(err, &dirErr) {
		t.Errorf("expected DirectoryError, got %v", err)
	}
}

func TestRunApproval(t *testing.T) {
	deploySteps := []string{"npm test", "npm run build", "npm run deploy"}

	t.Run("refused without terminal", func(t *testing.T) {
		ws := newWorkspace(t, "")
		_, err := ws.execute(t, "", "production")
		var approvalErr *ApprovalError
		if !errors.As(err, &approvalErr) || approvalErr.Workflow != "production" {
			t.Fatalf("expected ApprovalError, got %v", err)
		}
		if len(ws.runner.commands()) != 0 || len(ws.reports(t)) != 0 {
			t.Error("nothing may run without approval")
		}
	})

	t.Run("approved by flag", func(t *testing.T) {
		ws := newWorkspace(t, "")
		if _, err := ws.execute(t, "", "production", "--yes"); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if got := ws.runner.commands(); strings.Join(got, "|") != strings.Join(deploySteps, "|") {
			t.Errorf("commands = %v", got)
		}
	})

	t.Run("interactive prompt", func(t *testing.T) {
		previous := isInteractive
		isInteractive = func(io.Reader) bool { return true }
		t.Cleanup(func() { isInteractive = previous })

		ws := newWorkspace(t, "")
		_, err := ws.execute(t, "n\n", "production")
		var approvalErr *ApprovalError
		if !errors.As(err, &approvalErr) {
			t.Fatalf("answer n must refuse, got %v", err)
		}

		output, err := ws.execute(t, "y\n", "production")
		if err != nil {
			t.Fatalf("answer y must approve: %v", err)
		}
		if !strings.Contains(output, "requires approval. Continue? [y/N]") {
			t.Errorf("prompt missing:\n%s", output)
		}
	})

	t.Run("approval disabled", func(t *testing.T) {
		ws := newWorkspace(t, "deployment:\n  require_approval: false\n")
		if _, err := ws.execute(t, "", "production"); err != nil {
			t.Fatalf("run failed: %v", err)
		}
	})
}

func TestRunEnvFileAndNotification(t *testing.T) {
	ws := newWorkspace(t, "notifications:\n  on_failure: true\n  command: notify-team\n  args: [\"#ops\"]\n")
	if err := os.WriteFile(filepath.Join(ws.dir, ".env"), []byte("API_KEY=secret\n"), 0644); err != nil {
		t.Fatal(err)
	}
	ws.runner.fail["npm run build"] = true

	if _, err := ws.execute(t, "", "staging"); !errors.Is(err, ErrWorkflowFailed) {
		t.Fatalf("expected failure, got %v", err)
	}

	calls := ws.runner.calls
	if len(calls) != 3 {
		t.Fatalf("expected test, build and the notification, got %v", ws.runner.commands())
	}
	if calls[0].Env["API_KEY"] != "secret" {
		t.Errorf("env file not passed to tasks: %v", calls[0].Env)
	}

	notification := calls[2]
	if notification.String() != "notify-team #ops" {
		t.Errorf("notification command = %q", notification.String())
	}
	if notification.Env["TASKFLOW_SUCCESS"] != "false" || notification.Env["TASKFLOW_WORKFLOW"] != "staging" {
		t.Errorf("notification env = %v", notification.Env)
	}
	if !strings.HasPrefix(notification.Env["TASKFLOW_REPORT"], "staging-") {
		t.Errorf("notification must name the report, got %q", notification.Env["TASKFLOW_REPORT"])
	}
}

func TestRunWritesMetrics(t *testing.T) {
	ws := newWorkspace(t, "monitoring:\n  enabled: true\n")

	if _, err := ws.execute(t, "", "maintenance"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(ws.stateDir, "metrics.prom"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `taskflow_workflow_runs_total{result="success",workflow="maintenance"} 1`) {
		t.Errorf("unexpected metrics:\n%s", data)
	}
}

func TestStatusCommand(t *testing.T) {
	ws := newWorkspace(t, "")

	output, err := ws.execute(t, "", "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(output, "No workflow has run yet.") {
		t.Errorf("unexpected output before any run:\n%s", output)
	}

	if _, err := ws.execute(t, "", "maintenance"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	output, err = ws.execute(t, "", "status")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{`"last_workflow": "maintenance"`, `"cleanup"`, `"running_tasks": []`} {
		if !strings.Contains(output, want) {
			t.Errorf("status missing %s:\n%s", want, output)
		}
	}
}

func TestValidateCommand(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		ws := newWorkspace(t, "")
		output, err := ws.execute(t, "", "validate")
		if err != nil {
			t.Fatalf("validate failed: %v\n%s", err, output)
		}
		if !strings.Contains(output, "Configuration is valid: 4 workflow(s), 1 schedule(s).") {
			t.Errorf("unexpected output:\n%s", output)
		}
	})

	t.Run("problems", func(t *testing.T) {
		ws := newWorkspace(t, "workflows:\n  nightly: [backup, lint]\nschedules:\n  nightly: \"every night\"\n")
		output, err := ws.execute(t, "", "validate")
		if err == nil {
			t.Fatal("expected validation error")
		}
		for _, want := range []string{
			"2 problem(s) found",
			`workflow nightly: unknown task "lint"`,
			`invalid cron expression "every night"`,
		} {
			if !strings.Contains(output, want) {
				t.Errorf("missing %q in:\n%s", want, output)
			}
		}
	})

	t.Run("ignored file", func(t *testing.T) {
		ws := newWorkspace(t, "log_level: loud\n")
		output, err := ws.execute(t, "", "validate")
		if err == nil || !strings.Contains(output, "using built-in defaults") {
			t.Errorf("a rejected config file is a problem, got %v:\n%s", err, output)
		}
	})
}

func TestReportsCommand(t *testing.T) {
	ws := newWorkspace(t, "")

	for i := 0; i < 2; i++ {
		if _, err := ws.execute(t, "", "maintenance"); err != nil {
			t.Fatalf("run %d failed: %v", i, err)
		}
	}

	output, err := ws.execute(t, "", "reports", "maintenance")
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(output, "maintenance-"); n != 2 {
		t.Errorf("expected 2 reports listed, got %d:\n%s", n, output)
	}
	if !strings.Contains(output, "3/3") {
		t.Errorf("expected pass counts:\n%s", output)
	}

	id := strings.TrimSuffix(filepath.Base(ws.reports(t)[0]), ".json")
	output, err = ws.execute(t, "", "reports", "show", id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(output, `"workflow": "maintenance"`) || !strings.Contains(output, `"id": "`+id+`"`) {
		t.Errorf("unexpected report:\n%s", output)
	}

	output, err = ws.execute(t, "", "reports", "staging")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(output, "No reports found.") {
		t.Errorf("unexpected output:\n%s", output)
	}
}

func TestHistoryCommand(t *testing.T) {
	ws := newWorkspace(t, "")
	if _, err := ws.execute(t, "", "maintenance"); err != nil {
		t.Fatalf("run failed: %v", err)
	}

	output, err := ws.execute(t, "", "history")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(output, "maintenance") || !strings.Contains(output, "success") {
		t.Errorf("unexpected history:\n%s", output)
	}

	output, err = ws.execute(t, "", "history", "maintenance", "--stats")
	if err != nil {
		t.Fatal(err)
	}
	for _, task := range []string{"cleanup", "backup", "health-check"} {
		if !strings.Contains(output, task) {
			t.Errorf("stats missing %s:\n%s", task, output)
		}
	}
	if !strings.Contains(output, "100%") {
		t.Errorf("expected success rate:\n%s", output)
	}
}

func TestHistoryDisabled(t *testing.T) {
	ws := newWorkspace(t, "history:\n  enabled: false\n")
	if _, err := ws.execute(t, "", "maintenance"); err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(ws.stateDir, "history.db")); !os.IsNotExist(err) {
		t.Error("history database must not be created when disabled")
	}
	if _, err := ws.execute(t, "", "history"); err == nil {
		t.Error("expected error when history is disabled")
	}
}

func TestScheduleList(t *testing.T) {
	previous := scheduleNow
	scheduleNow = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local) }
	t.Cleanup(func() { scheduleNow = previous })

	ws := newWorkspace(t, "schedules:\n  staging: \"30 2 * * 1\"\n")
	output, err := ws.execute(t, "", "schedule", "list")
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{
		"maintenance  0 3 * * *   2026-03-02 03:00:00",
		"staging      30 2 * * 1  2026-03-02 02:30:00",
	} {
		if !strings.Contains(output, want) {
			t.Errorf("missing %q in:\n%s", want, output)
		}
	}
}

func TestConfirmRun(t *testing.T) {
	tests := []struct {
		name   string
		answer string
		want   bool
	}{
		{"yes", "yes\n", true},
		{"upper case", "Y\n", true},
		{"no", "n\n", false},
		{"empty", "\n", false},
		{"eof", "", false},
	}

	previous := isInteractive
	isInteractive = func(io.Reader) bool { return true }
	t.Cleanup(func() { isInteractive = previous })

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewRunCommand()
			cmd.SetIn(strings.NewReader(tt.answer))
			cmd.SetOut(io.Discard)

			got, err := confirmRun(cmd, "production", false)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("confirmRun(%q) = %v, want %v", tt.answer, got, tt.want)
			}
		})
	}
}

func appendFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}
