package executor

import (
	"sync"
	"time"

	"github.com/harrison/taskflow/internal/models"
)

// taskSet is an insertion-ordered set of task names.
type taskSet struct {
	order []string
	index map[string]int
}

func newTaskSet() *taskSet {
	return &taskSet{index: make(map[string]int)}
}

func (s *taskSet) add(name string) {
	if _, ok := s.index[name]; ok {
		return
	}
	s.index[name] = len(s.order)
	s.order = append(s.order, name)
}

func (s *taskSet) remove(name string) {
	i, ok := s.index[name]
	if !ok {
		return
	}
	s.order = append(s.order[:i], s.order[i+1:]...)
	delete(s.index, name)
	for j := i; j < len(s.order); j++ {
		s.index[s.order[j]] = j
	}
}

func (s *taskSet) list() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// State is the orchestrator's diagnostic view of the in-flight run.
// Mutations come from the single goroutine running the workflow;
// Snapshot may be called from any goroutine.
type State struct {
	mu              sync.RWMutex
	currentWorkflow string
	lastWorkflow    string
	running         *taskSet
	completed       *taskSet
	failed          *taskSet
	startTime       time.Time
	endTime         time.Time
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		running:   newTaskSet(),
		completed: newTaskSet(),
		failed:    newTaskSet(),
	}
}

// Reset clears every set and starts tracking workflow from start.
func (s *State) Reset(workflow string, start time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.currentWorkflow = workflow
	s.lastWorkflow = workflow
	s.running = newTaskSet()
	s.completed = newTaskSet()
	s.failed = newTaskSet()
	s.startTime = start
	s.endTime = time.Time{}
}

// MarkRunning adds task to the running set.
func (s *State) MarkRunning(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running.add(task)
}

// MarkCompleted records task as succeeded.
func (s *State) MarkCompleted(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.completed.add(task)
}

// MarkFailed records task as failed.
func (s *State) MarkFailed(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failed.add(task)
}

// ClearRunning removes task from the running set.
func (s *State) ClearRunning(task string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running.remove(task)
}

// Finish marks the run as no longer in flight. Completed and failed sets are
// kept so the outcome of the last run stays visible until the next Reset.
func (s *State) Finish(end time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.currentWorkflow = ""
	s.running = newTaskSet()
	s.endTime = end
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot(now time.Time) models.StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := models.StatusSnapshot{
		CurrentWorkflow: s.currentWorkflow,
		LastWorkflow:    s.lastWorkflow,
		RunningTasks:    s.running.list(),
		CompletedTasks:  s.completed.list(),
		FailedTasks:     s.failed.list(),
		UpdatedAt:       now,
	}
	if !s.startTime.IsZero() {
		start := s.startTime
		snap.StartTime = &start
		until := now
		if !s.endTime.IsZero() {
			until = s.endTime
		}
		snap.ElapsedMs = until.Sub(start).Milliseconds()
	}
	return snap
}
