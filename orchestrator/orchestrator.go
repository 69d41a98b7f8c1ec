// Package orchestrator coordinates specialized workers over routed model
// backends. It owns the worker registry and dispatches requests through one
// of five orchestration modes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/agents"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/analysis"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/llm"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/metrics"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/planner"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/routing"
)

// Mode selects how workers cooperate on a request.
type Mode string

const (
	ModeSequential   Mode = "sequential"
	ModeConcurrent   Mode = "concurrent"
	ModeHierarchical Mode = "hierarchical"
	ModeDynamic      Mode = "dynamic"
	ModePipeline     Mode = "pipeline"
)

// Modes lists every orchestration mode.
var Modes = []Mode{ModeSequential, ModeConcurrent, ModeHierarchical, ModeDynamic, ModePipeline}

// Configuration errors. Runtime worker or backend failures never surface as
// errors; they are reported inside the Result.
var (
	ErrUnknownMode   = errors.New("unknown orchestration mode")
	ErrUnknownWorker = errors.New("unknown worker")
)

// Result is the outcome of one orchestration call. Output always carries
// something presentable, even when every worker failed.
type Result struct {
	Output       string                 `json:"output"`
	Mode         Mode                   `json:"mode"`
	TaskType     models.TaskType        `json:"task_type"`
	Complexity   int                    `json:"complexity"`
	Model        string                 `json:"model"`
	AgentResults []*models.AgentResult  `json:"agent_results,omitempty"`
	Duration     time.Duration          `json:"duration"`
	TokensUsed   int                    `json:"tokens_used"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// Orchestrator dispatches requests across registered workers.
type Orchestrator struct {
	router   *routing.Router
	planner  *planner.Planner
	provider llm.Provider
	logger   *zap.Logger
	tracer   trace.Tracer

	mu      sync.RWMutex
	workers map[string]agents.Worker
	order   []string // registration order, for deterministic iteration

	orchestrations int64
}

// New creates an orchestrator over the given router, planner and provider.
// Workers are registered separately.
func New(router *routing.Router, taskPlanner *planner.Planner, provider llm.Provider, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		router:   router,
		planner:  taskPlanner,
		provider: provider,
		logger:   logger,
		tracer:   otel.Tracer("orchestrator"),
		workers:  make(map[string]agents.Worker),
	}
}

// RegisterWorker adds a worker, replacing any previous worker with the same
// name.
func (o *Orchestrator) RegisterWorker(w agents.Worker) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.workers[w.Name()]; !exists {
		o.order = append(o.order, w.Name())
	}
	o.workers[w.Name()] = w
	o.logger.Info("worker registered",
		zap.String("agent", w.Name()),
		zap.String("role", w.Role()))
}

// UnregisterWorker removes a worker by name.
func (o *Orchestrator) UnregisterWorker(name string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.workers[name]; !exists {
		return
	}
	delete(o.workers, name)
	for i, n := range o.order {
		if n == name {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

// GetWorker looks up a worker by name.
func (o *Orchestrator) GetWorker(name string) (agents.Worker, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	w, ok := o.workers[name]
	return w, ok
}

// GetWorkerByCapability returns the first registered worker advertising the
// capability, in registration order.
func (o *Orchestrator) GetWorkerByCapability(capability string) (agents.Worker, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, name := range o.order {
		for _, c := range o.workers[name].Capabilities() {
			if c == capability {
				return o.workers[name], true
			}
		}
	}
	return nil, false
}

// Workers returns info snapshots for every registered worker.
func (o *Orchestrator) Workers() []models.AgentInfo {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]models.AgentInfo, 0, len(o.order))
	for _, name := range o.order {
		out = append(out, o.workers[name].Info())
	}
	return out
}

// Orchestrate runs a message through the given mode. The only errors are
// configuration errors such as an unknown mode; worker and backend failures
// are absorbed into the Result.
func (o *Orchestrator) Orchestrate(ctx context.Context, message string, mode Mode, rctx models.RoutingContext) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "Orchestrate",
		trace.WithAttributes(
			attribute.String("orchestration.mode", string(mode)),
		))
	defer span.End()

	start := time.Now()
	taskType := analysis.DetectType(message)
	complexity := analysis.Complexity(message)
	span.SetAttributes(
		attribute.String("task.type", string(taskType)),
		attribute.Int("task.complexity", complexity),
	)

	var (
		result *Result
		err    error
		status = "success"
	)
	func() {
		// a panicking mode handler becomes a failed result, never an escape
		defer func() {
			if rec := recover(); rec != nil {
				o.logger.Error("orchestration panic",
					zap.String("mode", string(mode)),
					zap.Any("panic", rec))
				result = &Result{Output: fmt.Sprintf("orchestration failed: %v", rec)}
				status = "failed"
			}
		}()
		switch mode {
		case ModeSequential:
			result = o.runSequential(ctx, message, taskType, rctx)
		case ModeConcurrent:
			result = o.runConcurrent(ctx, message, taskType, rctx)
		case ModeHierarchical:
			result = o.runHierarchical(ctx, message, taskType, rctx)
		case ModeDynamic:
			result = o.runDynamic(ctx, message, taskType, complexity, rctx)
		case ModePipeline:
			result = o.runPipeline(ctx, message, taskType, rctx)
		default:
			err = fmt.Errorf("%w: %q", ErrUnknownMode, mode)
		}
	}()

	if err != nil {
		metrics.Orchestrations.WithLabelValues(string(mode), "error").Inc()
		return nil, err
	}

	result.Mode = mode
	result.TaskType = taskType
	result.Complexity = complexity
	result.Duration = time.Since(start)
	for _, ar := range result.AgentResults {
		result.TokensUsed += ar.TokensUsed
	}
	o.mu.Lock()
	o.orchestrations++
	o.mu.Unlock()

	metrics.Orchestrations.WithLabelValues(string(mode), status).Inc()
	metrics.OrchestrationDuration.WithLabelValues(string(mode)).Observe(result.Duration.Seconds())
	metrics.TaskTokensUsed.Observe(float64(result.TokensUsed))

	o.logger.Debug("orchestration complete",
		zap.String("mode", string(mode)),
		zap.String("task_type", string(taskType)),
		zap.Duration("duration", result.Duration),
		zap.Int("tokens", result.TokensUsed))
	return result, nil
}

// routeWorkerModel points the worker at the model the router picks for the
// task, falling back to the worker's current model when routing changes
// nothing.
func (o *Orchestrator) routeWorkerModel(w agents.Worker, message string, taskType models.TaskType) string {
	task := models.NewTask(message, taskType, models.PriorityMedium)
	model := o.router.Route(task)
	if model != "" && model != w.Model() {
		w.SetModel(model)
	}
	return w.Model()
}

// GetStats reports nested orchestrator, worker, router and planner stats.
func (o *Orchestrator) GetStats() map[string]interface{} {
	o.mu.RLock()
	agentInfos := make([]models.AgentInfo, 0, len(o.order))
	for _, name := range o.order {
		agentInfos = append(agentInfos, o.workers[name].Info())
	}
	orchestrations := o.orchestrations
	o.mu.RUnlock()

	stats := map[string]interface{}{
		"orchestrations": orchestrations,
		"agents":         agentInfos,
		"router":         o.router.Stats(),
	}
	if o.planner != nil {
		stats["planner"] = o.planner.Stats()
	}
	return stats
}
