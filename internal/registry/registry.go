// Package registry maps task names to the handlers that execute them.
//
// The registry is the single source of truth for whether a task exists.
// Handlers are either in-process functions (HandlerFunc) or external
// commands (CommandHandler); the orchestrator treats both the same way:
// return normally with optional output, or return an error.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/harrison/taskflow/internal/models"
)

// Options carries per-run settings into every handler invocation.
type Options struct {
	WorkflowName    string            // Workflow the task is running in
	ContinueOnError bool              // Continuation policy of the run
	Verbose         bool              // Verbose output requested
	Env             map[string]string // Extra environment for external commands
}

// Handler executes a single task.
type Handler interface {
	Invoke(ctx context.Context, opts Options) (string, error)
}

// HandlerFunc adapts an ordinary function to the Handler interface.
type HandlerFunc func(ctx context.Context, opts Options) (string, error)

// Invoke calls f(ctx, opts).
func (f HandlerFunc) Invoke(ctx context.Context, opts Options) (string, error) {
	return f(ctx, opts)
}

// Registry holds task handlers keyed by name. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register stores handler under name. Registering an existing name replaces
// the previous handler.
func (r *Registry) Register(name string, handler Handler) {
	if handler == nil {
		panic(fmt.Sprintf("registry: nil handler for task %q", name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = handler
}

// RegisterFunc registers an in-process function under name.
func (r *Registry) RegisterFunc(name string, fn func(ctx context.Context, opts Options) (string, error)) {
	r.Register(name, HandlerFunc(fn))
}

// Resolve returns the handler registered under name.
// Returns *UnknownTaskError if no handler exists.
func (r *Registry) Resolve(name string) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handler, ok := r.handlers[name]
	if !ok {
		return nil, &UnknownTaskError{Task: name}
	}
	return handler, nil
}

// Has reports whether a handler is registered under name.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[name]
	return ok
}

// Names returns all registered task names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every task in the workflow resolves.
// The first missing task is reported as *UnknownTaskError.
func (r *Registry) Validate(wf models.Workflow) error {
	if err := wf.Validate(); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, task := range wf.Tasks {
		if _, ok := r.handlers[task]; !ok {
			return &UnknownTaskError{Task: task, Workflow: wf.Name}
		}
	}
	return nil
}
