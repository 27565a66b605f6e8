package registry

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
)

// CommandSpec describes an external program to run for a task.
type CommandSpec struct {
	Path string            // Executable name or path (resolved via PATH)
	Args []string          // Arguments passed to the executable
	Dir  string            // Working directory (empty = current directory)
	Env  map[string]string // Extra environment variables
}

// String returns the command line as it would be typed in a shell.
func (s CommandSpec) String() string {
	if len(s.Args) == 0 {
		return s.Path
	}
	return s.Path + " " + strings.Join(s.Args, " ")
}

// CommandResult holds everything observable about a finished process.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// CommandRunner runs external programs. The orchestrator never spawns
// processes directly, so tests can substitute canned results.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (*CommandResult, error)
}

// ExecRunner is the CommandRunner backed by os/exec.
// A nonzero exit status is reported in CommandResult.ExitCode, not as an error;
// errors are reserved for processes that could not be started or were cancelled.
type ExecRunner struct{}

// NewExecRunner creates a runner that spawns real processes.
func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

// Run starts the process, waits for it, and captures its output.
// Cancelling ctx kills the process.
func (r *ExecRunner) Run(ctx context.Context, spec CommandSpec) (*CommandResult, error) {
	if spec.Path == "" {
		return nil, fmt.Errorf("command path is required")
	}

	cmd := exec.CommandContext(ctx, spec.Path, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = mergeEnv(os.Environ(), spec.Env)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &CommandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return result, ctxErr
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, fmt.Errorf("start %s: %w", spec.Path, err)
	}

	return result, nil
}

// CommandHandler is a Handler that runs an external program.
type CommandHandler struct {
	Spec   CommandSpec
	Runner CommandRunner
}

// NewCommandHandler creates a handler that runs spec through runner.
// A nil runner defaults to ExecRunner.
func NewCommandHandler(spec CommandSpec, runner CommandRunner) *CommandHandler {
	if runner == nil {
		runner = NewExecRunner()
	}
	return &CommandHandler{Spec: spec, Runner: runner}
}

// Invoke runs the command and returns its trimmed stdout, followed by any
// stderr it wrote.
// A nonzero exit status is returned as *ExitError.
func (h *CommandHandler) Invoke(ctx context.Context, opts Options) (string, error) {
	spec := h.Spec

	// Run options supply the base environment; the task's own env wins.
	env := make(map[string]string, len(opts.Env)+len(spec.Env)+1)
	for k, v := range opts.Env {
		env[k] = v
	}
	for k, v := range spec.Env {
		env[k] = v
	}
	if opts.WorkflowName != "" {
		env["TASKFLOW_WORKFLOW"] = opts.WorkflowName
	}
	spec.Env = env

	result, err := h.Runner.Run(ctx, spec)
	if err != nil {
		return "", fmt.Errorf("run %q: %w", spec.String(), err)
	}

	output := strings.TrimSpace(result.Stdout)
	if result.ExitCode != 0 {
		return output, &ExitError{
			Command:  spec.String(),
			ExitCode: result.ExitCode,
			Stderr:   result.Stderr,
		}
	}

	// Warnings from a successful command are kept with its output
	if stderr := strings.TrimSpace(result.Stderr); stderr != "" {
		if output == "" {
			return "stderr: " + stderr, nil
		}
		output += "\nstderr: " + stderr
	}
	return output, nil
}

// mergeEnv appends extra variables to base in KEY=VALUE form, sorted by key
// so the resulting environment is deterministic.
func mergeEnv(base []string, extra map[string]string) []string {
	if len(extra) == 0 {
		return base
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := make([]string, 0, len(base)+len(keys))
	env = append(env, base...)
	for _, k := range keys {
		env = append(env, k+"="+extra[k])
	}
	return env
}
