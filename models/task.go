package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is the unit of work flowing through the engine. Tasks are created by
// callers or by plan decomposition and are only ever referenced by ID, never
// deleted.
type Task struct {
	ID            string                 `json:"id"`
	Content       string                 `json:"content"`
	Type          TaskType               `json:"task_type"`
	Priority      Priority               `json:"priority"`
	Status        TaskStatus             `json:"status"`
	AssignedAgent string                 `json:"assigned_agent,omitempty"`
	AssignedModel string                 `json:"assigned_model,omitempty"`
	ParentTaskID  string                 `json:"parent_task_id,omitempty"`
	SubtaskIDs    []string               `json:"subtask_ids,omitempty"`
	Context       map[string]interface{} `json:"context,omitempty"`
	Result        *AgentResult           `json:"result,omitempty"`
	CreatedAt     time.Time              `json:"created_at"`
	StartedAt     *time.Time             `json:"started_at,omitempty"`
	CompletedAt   *time.Time             `json:"completed_at,omitempty"`
}

// NewTask creates a pending task with a fresh ID.
func NewTask(content string, taskType TaskType, priority Priority) *Task {
	return &Task{
		ID:        uuid.New().String(),
		Content:   content,
		Type:      taskType,
		Priority:  priority,
		Status:    StatusPending,
		Context:   make(map[string]interface{}),
		CreatedAt: time.Now(),
	}
}

// Status transitions are monotonic: pending -> running -> terminal.
// Illegal transitions are ignored; the current state wins.

// MarkRunning moves a pending task to running.
func (t *Task) MarkRunning() {
	if t.Status != StatusPending {
		return
	}
	now := time.Now()
	t.Status = StatusRunning
	t.StartedAt = &now
}

// MarkCompleted moves a running task to completed and attaches its result.
func (t *Task) MarkCompleted(result *AgentResult) {
	if t.Status != StatusRunning {
		return
	}
	now := time.Now()
	t.Status = StatusCompleted
	t.Result = result
	t.CompletedAt = &now
}

// MarkFailed moves a pending or running task to failed.
func (t *Task) MarkFailed(result *AgentResult) {
	if t.Status != StatusPending && t.Status != StatusRunning {
		return
	}
	now := time.Now()
	t.Status = StatusFailed
	t.Result = result
	t.CompletedAt = &now
}

// MarkCancelled moves a pending or running task to cancelled.
func (t *Task) MarkCancelled() {
	if t.Status != StatusPending && t.Status != StatusRunning {
		return
	}
	now := time.Now()
	t.Status = StatusCancelled
	t.CompletedAt = &now
}

// Terminal reports whether the task has reached a final status.
func (t *Task) Terminal() bool {
	switch t.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ExecutionPlan wraps a decomposed task and the ordered steps derived from it.
type ExecutionPlan struct {
	ID           string     `json:"id"`
	OriginalTask *Task      `json:"original_task"`
	Steps        []*Task    `json:"steps"`
	CurrentStep  int        `json:"current_step"` // always in [0, len(Steps)]
	Status       TaskStatus `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
}

// NewExecutionPlan wraps a task and its steps into a pending plan.
func NewExecutionPlan(original *Task, steps []*Task) *ExecutionPlan {
	return &ExecutionPlan{
		ID:           uuid.New().String(),
		OriginalTask: original,
		Steps:        steps,
		Status:       StatusPending,
		CreatedAt:    time.Now(),
	}
}

// Advance moves the cursor forward, clamped to len(Steps).
func (p *ExecutionPlan) Advance() {
	if p.CurrentStep < len(p.Steps) {
		p.CurrentStep++
	}
}

// IsComplete reports whether every step finished successfully.
func (p *ExecutionPlan) IsComplete() bool {
	for _, s := range p.Steps {
		if s.Status != StatusCompleted {
			return false
		}
	}
	return true
}
