package planner

import (
	"sync"

	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// DependencyResolver tracks task dependencies and produces batched execution
// orders. Tasks in the same batch have all their dependencies satisfied by
// earlier batches and may run in parallel.
type DependencyResolver struct {
	mu     sync.RWMutex
	deps   map[string][]string // task ID -> IDs it depends on
	logger *zap.Logger
}

// NewDependencyResolver creates an empty resolver.
func NewDependencyResolver(logger *zap.Logger) *DependencyResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DependencyResolver{
		deps:   make(map[string][]string),
		logger: logger,
	}
}

// AddDependency records that taskID must run after each of dependsOn.
func (r *DependencyResolver) AddDependency(taskID string, dependsOn ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps[taskID] = append(r.deps[taskID], dependsOn...)
}

// Dependencies returns the recorded dependencies of a task.
func (r *DependencyResolver) Dependencies(taskID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.deps[taskID]))
	copy(out, r.deps[taskID])
	return out
}

// Reset drops all recorded dependencies.
func (r *DependencyResolver) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps = make(map[string][]string)
}

// GetExecutionOrder batches tasks so that every task appears after all of its
// in-set dependencies. Dependencies on IDs outside the given set count as
// already satisfied. When a cycle blocks progress, the first blocked task in
// input order is forced into its own batch with a warning; scheduling always
// terminates and every task is emitted exactly once.
func (r *DependencyResolver) GetExecutionOrder(tasks []*models.Task) [][]*models.Task {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inSet := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		inSet[t.ID] = true
	}

	done := make(map[string]bool, len(tasks))
	var batches [][]*models.Task
	remaining := len(tasks)

	for remaining > 0 {
		var batch []*models.Task
		for _, t := range tasks {
			if done[t.ID] {
				continue
			}
			if r.satisfiedLocked(t.ID, inSet, done) {
				batch = append(batch, t)
			}
		}

		if len(batch) == 0 {
			// Cycle: force the first blocked task through.
			for _, t := range tasks {
				if !done[t.ID] {
					r.logger.Warn("dependency cycle detected, forcing task",
						zap.String("task_id", t.ID))
					batch = append(batch, t)
					break
				}
			}
		}

		for _, t := range batch {
			done[t.ID] = true
		}
		remaining -= len(batch)
		batches = append(batches, batch)
	}
	return batches
}

func (r *DependencyResolver) satisfiedLocked(id string, inSet, done map[string]bool) bool {
	for _, dep := range r.deps[id] {
		if inSet[dep] && !done[dep] {
			return false
		}
	}
	return true
}

// CanParallelize reports whether two tasks have no direct dependency on each
// other in either direction.
func (r *DependencyResolver) CanParallelize(a, b string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return !r.dependsOnLocked(a, b) && !r.dependsOnLocked(b, a)
}

func (r *DependencyResolver) dependsOnLocked(id, dep string) bool {
	for _, d := range r.deps[id] {
		if d == dep {
			return true
		}
	}
	return false
}

// DetectCycle reports whether the recorded dependency graph contains a cycle,
// returning one member of the first cycle found.
func (r *DependencyResolver) DetectCycle() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(r.deps))

	var visit func(id string) (string, bool)
	visit = func(id string) (string, bool) {
		color[id] = gray
		for _, dep := range r.deps[id] {
			switch color[dep] {
			case gray:
				return dep, true
			case white:
				if member, found := visit(dep); found {
					return member, true
				}
			}
		}
		color[id] = black
		return "", false
	}

	for id := range r.deps {
		if color[id] == white {
			if member, found := visit(id); found {
				return member, true
			}
		}
	}
	return "", false
}
