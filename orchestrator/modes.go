package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/agents"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/util"
)

const (
	// pipelinePromptHistory bounds how many prior step outputs feed the next
	// step's prompt, each clipped to pipelineOutputClip characters.
	pipelinePromptHistory = 3
	pipelineOutputClip    = 500

	allWorkersFailed   = "all workers failed to produce a result"
	pipelineStepFailed = "pipeline produced no successful output"
)

// sequentialStages is the fixed stage chain of sequential mode.
var sequentialStages = []string{agents.WorkerSearch, agents.WorkerAnalysis, agents.WorkerResponse}

// runSequential chains search, analysis and response, feeding each stage the
// previous stage's output. A stage failure short-circuits the chain; the
// result names the failing stage.
func (o *Orchestrator) runSequential(ctx context.Context, message string, taskType models.TaskType, rctx models.RoutingContext) *Result {
	result := &Result{Metadata: map[string]interface{}{"stages": sequentialStages}}

	input := message
	for _, stage := range sequentialStages {
		w, ok := o.GetWorker(stage)
		if !ok {
			continue
		}
		result.Model = o.routeWorkerModel(w, message, taskType)

		ar := w.Process(ctx, input, map[string]interface{}{"original_request": message})
		result.AgentResults = append(result.AgentResults, ar)
		if !ar.Success {
			result.Output = fmt.Sprintf("stage %q failed: %s", stage, ar.Error)
			o.logger.Warn("sequential stage failed",
				zap.String("stage", stage),
				zap.String("error", ar.Error))
			return result
		}
		input = ar.Output
	}
	result.Output = input
	return result
}

// runConcurrent fans the message out to the standard stage workers in
// parallel and merges the successful outputs, each labeled with its worker
// name. Partial failures are tolerated.
func (o *Orchestrator) runConcurrent(ctx context.Context, message string, taskType models.TaskType, rctx models.RoutingContext) *Result {
	var targets []agents.Worker
	for _, name := range sequentialStages {
		if w, ok := o.GetWorker(name); ok {
			targets = append(targets, w)
		}
	}

	result := &Result{}
	if len(targets) == 0 {
		result.Output = allWorkersFailed
		return result
	}

	results := make([]*models.AgentResult, len(targets))
	var wg sync.WaitGroup
	for i, w := range targets {
		result.Model = o.routeWorkerModel(w, message, taskType)
		wg.Add(1)
		go func(i int, w agents.Worker) {
			defer wg.Done()
			results[i] = w.Process(ctx, message, nil)
		}(i, w)
	}
	wg.Wait()

	var sections []string
	for _, ar := range results {
		result.AgentResults = append(result.AgentResults, ar)
		if ar.Success {
			sections = append(sections, fmt.Sprintf("[%s]\n%s", ar.AgentName, ar.Output))
		}
	}
	if len(sections) == 0 {
		result.Output = allWorkersFailed
		return result
	}
	result.Output = strings.Join(sections, "\n\n")
	return result
}

// runHierarchical asks a coordinator call which workers to involve, then
// chains them. A coordinator failure or an unusable reply falls back to
// sequential mode.
func (o *Orchestrator) runHierarchical(ctx context.Context, message string, taskType models.TaskType, rctx models.RoutingContext) *Result {
	names := o.workerNames()
	prompt := fmt.Sprintf(
		"You coordinate a team of workers: %s.\n"+
			"Reply with only a comma-separated list of the workers, in order, "+
			"that should handle this request:\n\n%s",
		strings.Join(names, ", "), message)

	completion, err := o.provider.Generate(ctx, o.router.DefaultModel(), prompt)
	if err != nil {
		o.logger.Warn("coordinator call failed, falling back to sequential", zap.Error(err))
		return o.runSequential(ctx, message, taskType, rctx)
	}

	chain := o.parseWorkerList(completion.Text)
	if len(chain) == 0 {
		o.logger.Warn("coordinator reply unusable, falling back to sequential",
			zap.String("reply", util.Truncate(completion.Text, 120)))
		return o.runSequential(ctx, message, taskType, rctx)
	}

	result := &Result{Metadata: map[string]interface{}{"coordinator_chain": chain}}
	input := message
	for _, name := range chain {
		w, _ := o.GetWorker(name)
		result.Model = o.routeWorkerModel(w, message, taskType)

		ar := w.Process(ctx, input, map[string]interface{}{"original_request": message})
		result.AgentResults = append(result.AgentResults, ar)
		if !ar.Success {
			result.Output = fmt.Sprintf("stage %q failed: %s", name, ar.Error)
			return result
		}
		input = ar.Output
	}
	result.Output = input
	return result
}

// parseWorkerList extracts registered worker names from a comma-separated
// coordinator reply, matching case-insensitively and dropping unknown names
// and duplicates. Returned names are the canonical registered ones.
func (o *Orchestrator) parseWorkerList(reply string) []string {
	names := o.workerNames()
	var chain []string
	for _, part := range strings.Split(reply, ",") {
		token := strings.TrimSpace(part)
		if token == "" || util.ContainsFold(chain, token) {
			continue
		}
		for _, name := range names {
			if strings.EqualFold(name, token) {
				chain = append(chain, name)
				break
			}
		}
	}
	return chain
}

// primaryWorkerFor maps a task type to the worker that should lead it.
func primaryWorkerFor(taskType models.TaskType) string {
	switch taskType {
	case models.TypeSearch:
		return agents.WorkerSearch
	case models.TypeAnalysis, models.TypeReasoning, models.TypeMath, models.TypePlanning:
		return agents.WorkerAnalysis
	case models.TypeCode:
		return agents.WorkerCode
	default:
		return agents.WorkerResponse
	}
}

// runDynamic picks a primary worker by task type; complex requests are
// bracketed with an analysis pass before and a response pass after.
func (o *Orchestrator) runDynamic(ctx context.Context, message string, taskType models.TaskType, complexity int, rctx models.RoutingContext) *Result {
	primary := primaryWorkerFor(taskType)

	chain := []string{primary}
	if complexity >= 7 {
		if primary != agents.WorkerAnalysis {
			chain = append([]string{agents.WorkerAnalysis}, chain...)
		}
		if primary != agents.WorkerResponse {
			chain = append(chain, agents.WorkerResponse)
		}
	}

	result := &Result{Metadata: map[string]interface{}{"chain": chain}}
	input := message
	for _, name := range chain {
		w, ok := o.GetWorker(name)
		if !ok {
			continue
		}
		result.Model = o.routeWorkerModel(w, message, taskType)

		ar := w.Process(ctx, input, map[string]interface{}{"original_request": message})
		result.AgentResults = append(result.AgentResults, ar)
		if !ar.Success {
			result.Output = fmt.Sprintf("stage %q failed: %s", name, ar.Error)
			return result
		}
		input = ar.Output
	}
	result.Output = input
	return result
}

// runPipeline plans the request and runs each step on the worker matching the
// step's type, feeding recent step outputs forward. A failing step does not
// halt the pipeline; the final output is the last successful step's output.
func (o *Orchestrator) runPipeline(ctx context.Context, message string, taskType models.TaskType, rctx models.RoutingContext) *Result {
	task := models.NewTask(message, taskType, models.PriorityMedium)
	plan := o.planner.CreatePlan(ctx, task, false)

	result := &Result{Metadata: map[string]interface{}{"steps": len(plan.Steps)}}

	var outputs []string
	lastSuccess := ""
	for _, step := range plan.Steps {
		w, ok := o.workerForType(step.Type)
		if !ok {
			continue
		}
		result.Model = o.routeWorkerModel(w, step.Content, step.Type)

		prompt := pipelinePrompt(step.Content, outputs)
		step.MarkRunning()
		ar := w.Process(ctx, prompt, step.Context)
		result.AgentResults = append(result.AgentResults, ar)
		if ar.Success {
			step.MarkCompleted(ar)
			outputs = append(outputs, ar.Output)
			lastSuccess = ar.Output
		} else {
			step.MarkFailed(ar)
			o.logger.Warn("pipeline step failed",
				zap.String("step_id", step.ID),
				zap.String("error", ar.Error))
		}
		plan.Advance()
	}

	if lastSuccess == "" {
		result.Output = pipelineStepFailed
		return result
	}
	result.Output = lastSuccess
	return result
}

// pipelinePrompt frames a step with the tail of the prior outputs, clipped so
// long intermediate results do not flood the prompt.
func pipelinePrompt(stepContent string, outputs []string) string {
	if len(outputs) == 0 {
		return stepContent
	}
	tail := outputs
	if len(tail) > pipelinePromptHistory {
		tail = tail[len(tail)-pipelinePromptHistory:]
	}
	var b strings.Builder
	b.WriteString("Previous step results:\n")
	for i, out := range tail {
		fmt.Fprintf(&b, "%d. %s\n", i+1, util.Truncate(out, pipelineOutputClip))
	}
	b.WriteString("\n")
	b.WriteString(stepContent)
	return b.String()
}

func (o *Orchestrator) workerNames() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]string(nil), o.order...)
}

// workerForType resolves the worker for a task type, falling back to the
// response worker and then to the first registered worker.
func (o *Orchestrator) workerForType(taskType models.TaskType) (agents.Worker, bool) {
	if w, ok := o.GetWorker(primaryWorkerFor(taskType)); ok {
		return w, true
	}
	if w, ok := o.GetWorker(agents.WorkerResponse); ok {
		return w, true
	}
	o.mu.RLock()
	defer o.mu.RUnlock()
	if len(o.order) > 0 {
		return o.workers[o.order[0]], true
	}
	return nil, false
}
