// Package planner decomposes complex tasks into ordered execution plans,
// delegating the decomposition reasoning to the generation capability with a
// non-AI single-step fallback, and provides dependency-aware scheduling.
package planner

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/analysis"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/llm"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/metrics"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// Estimation constants for the linear cost/time models.
const (
	baseCostPerStep       = 0.01 // USD
	costComplexityFactor  = 1.5
	baseTimePerStep       = 2 * time.Second
	timeComplexityFactor  = 0.5
	minSubtaskContentLen  = 6 // parsed lines shorter than this are noise
	defaultDecomposeLimit = 5
	defaultThreshold      = 7
)

// Config holds planner knobs.
type Config struct {
	// AutoDecomposeThreshold is the analyzer complexity at which plans are
	// decomposed without being forced. Default 7.
	AutoDecomposeThreshold int
	// MaxSubtasks bounds decomposition output. Default 5.
	MaxSubtasks int
	// Model is the backend used for the decomposition call.
	Model string
}

// Planner builds execution plans. Plan creation never fails: any
// decomposition problem degrades to a single-step plan.
type Planner struct {
	provider llm.Provider
	cfg      Config
	logger   *zap.Logger

	plansCreated    atomic.Int64
	plansDecomposed atomic.Int64
}

// NewPlanner creates a planner over the given generation provider.
func NewPlanner(provider llm.Provider, cfg Config, logger *zap.Logger) *Planner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AutoDecomposeThreshold <= 0 {
		cfg.AutoDecomposeThreshold = defaultThreshold
	}
	if cfg.MaxSubtasks <= 0 {
		cfg.MaxSubtasks = defaultDecomposeLimit
	}
	return &Planner{provider: provider, cfg: cfg, logger: logger}
}

// CreatePlan wraps or decomposes a task into an execution plan. Tasks under
// the complexity threshold pass through as a single step unless decomposition
// is forced.
func (p *Planner) CreatePlan(ctx context.Context, task *models.Task, forceDecompose bool) *models.ExecutionPlan {
	complexity := analysis.Complexity(task.Content)
	if task.Type == "" {
		task.Type = analysis.DetectType(task.Content)
	}

	p.plansCreated.Add(1)
	if !forceDecompose && complexity < p.cfg.AutoDecomposeThreshold {
		metrics.PlansCreated.WithLabelValues("false").Inc()
		return models.NewExecutionPlan(task, []*models.Task{task})
	}

	steps, err := p.decompose(ctx, task)
	if err != nil || len(steps) == 0 {
		p.logger.Warn("decomposition failed, using single-step plan",
			zap.String("task_id", task.ID),
			zap.Error(err))
		metrics.DecompositionFailures.Inc()
		metrics.PlansCreated.WithLabelValues("false").Inc()
		return models.NewExecutionPlan(task, []*models.Task{task})
	}

	p.plansDecomposed.Add(1)
	for _, s := range steps {
		task.SubtaskIDs = append(task.SubtaskIDs, s.ID)
	}
	metrics.PlansCreated.WithLabelValues("true").Inc()
	return models.NewExecutionPlan(task, steps)
}

// decompose asks the generation capability for a bounded numbered list of
// subtasks and parses it into step tasks.
func (p *Planner) decompose(ctx context.Context, task *models.Task) ([]*models.Task, error) {
	prompt := fmt.Sprintf(
		"Break the following task into at most %d concrete subtasks.\n"+
			"Reply with a numbered list only, one subtask per line, in execution order.\n\n"+
			"Task: %s",
		p.cfg.MaxSubtasks, task.Content)

	completion, err := p.provider.Generate(ctx, p.cfg.Model, prompt)
	if err != nil {
		return nil, fmt.Errorf("decomposition call: %w", err)
	}

	lines := ParseNumberedList(completion.Text, p.cfg.MaxSubtasks)
	steps := make([]*models.Task, 0, len(lines))
	for i, content := range lines {
		sub := models.NewTask(content, p.subtaskType(content, task.Type), task.Priority)
		sub.ParentTaskID = task.ID
		sub.Context["step"] = i + 1
		sub.Context["parent_content"] = task.Content
		steps = append(steps, sub)
	}
	return steps, nil
}

// subtaskType classifies a subtask line, keeping the parent's type when the
// analyzer has nothing specific to say.
func (p *Planner) subtaskType(content string, parent models.TaskType) models.TaskType {
	t := analysis.DetectType(content)
	if t == models.TypeGeneral || t == models.TypeConversation {
		return parent
	}
	return t
}

// ParseNumberedList extracts subtask lines from a numbered-list response.
// Leading "1.", "1)" and "1:" markers are stripped; lines that are too short
// after cleanup are dropped; output is truncated to max entries. Best-effort
// by design: malformed output simply yields fewer lines.
func ParseNumberedList(text string, max int) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = stripListMarker(line)
		if len(line) < minSubtaskContentLen {
			continue
		}
		out = append(out, line)
		if len(out) == max {
			break
		}
	}
	return out
}

// stripListMarker removes a leading "12.", "12)" or "12:" marker.
func stripListMarker(line string) string {
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i == 0 || i >= len(line) {
		return strings.TrimSpace(line)
	}
	switch line[i] {
	case '.', ')', ':':
		return strings.TrimSpace(line[i+1:])
	}
	return strings.TrimSpace(line)
}

// typeOrder is the fixed re-emission order used by OptimizePlan.
var typeOrder = []models.TaskType{
	models.TypeSearch,
	models.TypeAnalysis,
	models.TypeReasoning,
	models.TypeCode,
	models.TypeSummary,
	models.TypeConversation,
}

// OptimizePlan regroups steps by task type in a fixed priority order,
// appending remaining types afterward. Relative order within a type bucket
// is preserved; this is a stable partial sort, not a topological one.
func (p *Planner) OptimizePlan(plan *models.ExecutionPlan) {
	if len(plan.Steps) < 2 {
		return
	}

	buckets := make(map[models.TaskType][]*models.Task)
	var seen []models.TaskType
	for _, s := range plan.Steps {
		if _, ok := buckets[s.Type]; !ok {
			seen = append(seen, s.Type)
		}
		buckets[s.Type] = append(buckets[s.Type], s)
	}

	ordered := make([]*models.Task, 0, len(plan.Steps))
	emitted := make(map[models.TaskType]bool)
	for _, t := range typeOrder {
		if steps, ok := buckets[t]; ok {
			ordered = append(ordered, steps...)
			emitted[t] = true
		}
	}
	for _, t := range seen {
		if !emitted[t] {
			ordered = append(ordered, buckets[t]...)
		}
	}
	plan.Steps = ordered
}

// EstimateCost prices a plan with a linear model over step count and mean
// complexity.
func (p *Planner) EstimateCost(plan *models.ExecutionPlan) float64 {
	avg := avgComplexity(plan.Steps)
	return float64(len(plan.Steps)) * baseCostPerStep * (1 + avg/10*costComplexityFactor)
}

// EstimateTime predicts wall time for a plan with the same shape of model.
func (p *Planner) EstimateTime(plan *models.ExecutionPlan) time.Duration {
	avg := avgComplexity(plan.Steps)
	perStep := float64(baseTimePerStep) * (1 + avg/10*timeComplexityFactor)
	return time.Duration(float64(len(plan.Steps)) * perStep)
}

func avgComplexity(steps []*models.Task) float64 {
	if len(steps) == 0 {
		return 0
	}
	total := 0
	for _, s := range steps {
		total += analysis.Complexity(s.Content)
	}
	return float64(total) / float64(len(steps))
}

// Stats summarizes planner activity.
func (p *Planner) Stats() map[string]interface{} {
	return map[string]interface{}{
		"plans_created":            p.plansCreated.Load(),
		"plans_decomposed":         p.plansDecomposed.Load(),
		"auto_decompose_threshold": p.cfg.AutoDecomposeThreshold,
		"max_subtasks":             p.cfg.MaxSubtasks,
	}
}
