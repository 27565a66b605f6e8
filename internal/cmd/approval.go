package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// ApprovalError is returned when a workflow that requires approval was not
// approved. Nothing has run.
type ApprovalError struct {
	Workflow string
}

// Error implements the error interface for ApprovalError.
func (e *ApprovalError) Error() string {
	return fmt.Sprintf("workflow %s requires approval: confirm the prompt or rerun with --yes", e.Workflow)
}

// isInteractive reports whether r is a terminal a user can answer on.
var isInteractive = func(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// confirmRun asks whether workflow may run. --yes approves without asking;
// without a terminal the run is refused.
func confirmRun(cmd *cobra.Command, workflow string, yes bool) (bool, error) {
	if yes {
		return true, nil
	}

	in := cmd.InOrStdin()
	if !isInteractive(in) {
		return false, nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Workflow %s requires approval. Continue? [y/N]: ", workflow)
	answer, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read approval: %w", err)
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}
