package models

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// workflowNamePattern limits workflow names to characters that are safe in a
// report file name.
var workflowNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidWorkflowName reports whether name can be used as a workflow name.
func ValidWorkflowName(name string) bool {
	return workflowNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// Workflow represents a named, ordered list of tasks executed as a unit
type Workflow struct {
	Name  string   // Unique workflow name (e.g. "development", "production")
	Tasks []string // Task names in execution order
}

// Validate checks that the workflow is well formed.
// It does not check that the tasks exist; that is the registry's job.
func (w *Workflow) Validate() error {
	if strings.TrimSpace(w.Name) == "" {
		return errors.New("workflow name is required")
	}
	if !ValidWorkflowName(w.Name) {
		return fmt.Errorf("invalid workflow name %q: use letters, digits, '.', '_' and '-'", w.Name)
	}
	seen := make(map[string]bool, len(w.Tasks))
	for i, task := range w.Tasks {
		if strings.TrimSpace(task) == "" {
			return fmt.Errorf("workflow %s: task %d has an empty name", w.Name, i+1)
		}
		if seen[task] {
			return fmt.Errorf("workflow %s: task %q is listed more than once", w.Name, task)
		}
		seen[task] = true
	}
	return nil
}

// WorkflowSet maps workflow names to their definitions
type WorkflowSet map[string]Workflow

// NewWorkflowSet builds a WorkflowSet from a name -> task list map.
func NewWorkflowSet(defs map[string][]string) WorkflowSet {
	set := make(WorkflowSet, len(defs))
	for name, tasks := range defs {
		set[name] = Workflow{Name: name, Tasks: append([]string(nil), tasks...)}
	}
	return set
}

// Get returns the workflow with the given name.
func (s WorkflowSet) Get(name string) (Workflow, bool) {
	wf, ok := s[name]
	return wf, ok
}

// Names returns the workflow names sorted alphabetically
func (s WorkflowSet) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
