package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/agents"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/analysis"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// TaskAnalysis is the combined analysis surface for one piece of content.
type TaskAnalysis struct {
	TaskType        models.TaskType `json:"task_type"`
	Complexity      int             `json:"complexity"`
	Strategy        models.Strategy `json:"strategy"`
	SuggestedAgents []string        `json:"suggested_agents"`
	SuggestedModel  string          `json:"suggested_model"`
}

// AnalyzeTask classifies content and reports which workers and model would
// handle it, without committing any routing state.
func (o *Orchestrator) AnalyzeTask(content string) TaskAnalysis {
	taskType := analysis.DetectType(content)
	complexity := analysis.Complexity(content)

	suggested := []string{primaryWorkerFor(taskType)}
	if complexity >= 7 {
		if suggested[0] != agents.WorkerAnalysis {
			suggested = append([]string{agents.WorkerAnalysis}, suggested...)
		}
		if suggested[len(suggested)-1] != agents.WorkerResponse {
			suggested = append(suggested, agents.WorkerResponse)
		}
	}

	return TaskAnalysis{
		TaskType:        taskType,
		Complexity:      complexity,
		Strategy:        analysis.SuggestStrategy(taskType, complexity),
		SuggestedAgents: suggested,
		SuggestedModel:  o.RouteToModel(models.NewTask(content, taskType, models.PriorityMedium)),
	}
}

// RouteToModel asks the router for the model that should serve the task.
func (o *Orchestrator) RouteToModel(task *models.Task) string {
	return o.router.Route(task)
}

// ProcessWith runs a message on one named worker, bypassing mode selection.
// An unknown worker name is a configuration error.
func (o *Orchestrator) ProcessWith(ctx context.Context, workerName, message string) (*models.AgentResult, error) {
	w, ok := o.GetWorker(workerName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWorker, workerName)
	}
	return w.Process(ctx, message, nil), nil
}

// DelegateTask hands a single task to the worker matching its type and
// transitions the task through its lifecycle. Worker failure marks the task
// failed; it is not an error.
func (o *Orchestrator) DelegateTask(ctx context.Context, task *models.Task) *models.AgentResult {
	w, ok := o.workerForType(task.Type)
	if !ok {
		ar := &models.AgentResult{Success: false, Error: "no worker available"}
		task.MarkFailed(ar)
		return ar
	}

	o.routeWorkerModel(w, task.Content, task.Type)
	task.MarkRunning()
	ar := w.Process(ctx, task.Content, task.Context)
	if ar.Success {
		task.MarkCompleted(ar)
	} else {
		task.MarkFailed(ar)
	}
	return ar
}

// ExecutePlan runs every step of a plan in order. A failing step is recorded
// and does not halt the remaining steps.
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan *models.ExecutionPlan) []*models.AgentResult {
	results := make([]*models.AgentResult, 0, len(plan.Steps))
	for _, step := range plan.Steps {
		ar := o.DelegateTask(ctx, step)
		results = append(results, ar)
		if !ar.Success {
			o.logger.Warn("plan step failed",
				zap.String("step_id", step.ID),
				zap.String("error", ar.Error))
		}
		plan.Advance()
	}
	return results
}
