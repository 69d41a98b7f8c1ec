package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/agents"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/llm"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/metrics"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/planner"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/routing"
)

// fakeProvider scripts per-prompt behavior by substring match and records
// every call.
type fakeProvider struct {
	mu      sync.Mutex
	calls   []string
	failOn  []string // fail when the prompt contains any of these
	replies map[string]string
	reply   string
}

func (f *fakeProvider) Generate(ctx context.Context, model, prompt string) (llm.Completion, error) {
	f.mu.Lock()
	f.calls = append(f.calls, prompt)
	f.mu.Unlock()

	for _, marker := range f.failOn {
		if strings.Contains(prompt, marker) {
			return llm.Completion{}, errors.New("scripted failure")
		}
	}
	for marker, text := range f.replies {
		if strings.Contains(prompt, marker) {
			return llm.Completion{Text: text, InputTokens: 5, OutputTokens: 5}, nil
		}
	}
	text := f.reply
	if text == "" {
		text = "ok"
	}
	return llm.Completion{Text: text, InputTokens: 5, OutputTokens: 5}, nil
}

func testRouter() *routing.Router {
	seed := []models.ModelInfo{
		{
			Name: "cheap-mini", Provider: "openai",
			Capabilities:   []string{"chat", "summary", "search", "translation", "general"},
			CostPer1KInput: 0.00015, CostPer1KOutput: 0.0006,
			Speed: 9, Quality: 5, Latency: 400 * time.Millisecond, Enabled: true,
		},
		{
			Name: "flagship-4", Provider: "openai",
			Capabilities:   []string{"code", "analysis", "reasoning", "planning", "creative", "math", "general"},
			CostPer1KInput: 0.0025, CostPer1KOutput: 0.01,
			Speed: 6, Quality: 9, Latency: 1500 * time.Millisecond, Enabled: true,
		},
	}
	return routing.NewRouter(seed, routing.Options{
		DefaultModel: "cheap-mini",
		Strategy:     models.StrategyBalanced,
	}, zap.NewNop())
}

// newTestOrchestrator wires a full stack over the fake provider with the
// standard worker set registered.
func newTestOrchestrator(provider llm.Provider) *Orchestrator {
	router := testRouter()
	pl := planner.NewPlanner(provider, planner.Config{Model: "cheap-mini"}, zap.NewNop())
	o := New(router, pl, provider, zap.NewNop())
	for _, w := range agents.DefaultWorkers(provider, "cheap-mini", zap.NewNop()) {
		o.RegisterWorker(w)
	}
	return o
}

func TestOrchestrateUnknownMode(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{})
	_, err := o.Orchestrate(context.Background(), "hello", Mode("psychic"), models.RoutingContext{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownMode)
}

// panicWorker wraps a real worker but blows up on Process.
type panicWorker struct {
	agents.Worker
}

func (p panicWorker) Process(ctx context.Context, message string, taskContext map[string]interface{}) *models.AgentResult {
	panic("boom")
}

func TestOrchestratePanickingWorkerBecomesFailure(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{})
	base, ok := o.GetWorker(agents.WorkerSearch)
	require.True(t, ok)
	o.RegisterWorker(panicWorker{base})

	failed := metrics.Orchestrations.WithLabelValues(string(ModeSequential), "failed")
	success := metrics.Orchestrations.WithLabelValues(string(ModeSequential), "success")
	failedBefore := testutil.ToFloat64(failed)
	successBefore := testutil.ToFloat64(success)

	res, err := o.Orchestrate(context.Background(), "tell me about Go", ModeSequential, models.RoutingContext{})

	require.NoError(t, err)
	assert.Contains(t, res.Output, "orchestration failed")
	assert.Contains(t, res.Output, "boom")
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Equal(t, successBefore, testutil.ToFloat64(success))
}

func TestSequentialChainsStages(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{
		"research assistant": "facts gathered",
		"analyst":            "analysis done",
		"writer":             "final reply",
	}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "tell me about Go", ModeSequential, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, "final reply", res.Output)
	require.Len(t, res.AgentResults, 3)
	assert.Equal(t, agents.WorkerSearch, res.AgentResults[0].AgentName)
	assert.Equal(t, agents.WorkerResponse, res.AgentResults[2].AgentName)
	// each stage consumed the previous stage's output
	assert.Contains(t, p.calls[1], "facts gathered")
	assert.Contains(t, p.calls[2], "analysis done")
	assert.Positive(t, res.TokensUsed)
}

func TestSequentialStageFailureShortCircuits(t *testing.T) {
	p := &fakeProvider{failOn: []string{"analyst"}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "tell me about Go", ModeSequential, models.RoutingContext{})

	require.NoError(t, err)
	assert.Contains(t, res.Output, `stage "analysis" failed`)
	assert.Len(t, res.AgentResults, 2) // response never ran
}

func TestConcurrentToleratesPartialFailure(t *testing.T) {
	p := &fakeProvider{
		failOn: []string{"research assistant"},
		replies: map[string]string{
			"analyst": "the analysis",
			"writer":  "the reply",
		},
	}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "tell me about Go", ModeConcurrent, models.RoutingContext{})

	require.NoError(t, err)
	assert.NotContains(t, res.Output, "[search]")
	assert.Contains(t, res.Output, "[analysis]\nthe analysis")
	assert.Contains(t, res.Output, "[response]\nthe reply")
	assert.Contains(t, res.Output, "\n\n")
	assert.Len(t, res.AgentResults, 3) // the failure is still recorded
}

func TestConcurrentAllFail(t *testing.T) {
	p := &fakeProvider{failOn: []string{"research assistant", "analyst", "writer"}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "tell me about Go", ModeConcurrent, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, allWorkersFailed, res.Output)
}

func TestHierarchicalFollowsCoordinator(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{
		"comma-separated list": "analysis, response",
		"analyst":              "deep analysis",
		"writer":               "polished reply",
	}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "what changed last week", ModeHierarchical, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, "polished reply", res.Output)
	require.Len(t, res.AgentResults, 2)
	assert.Equal(t, agents.WorkerAnalysis, res.AgentResults[0].AgentName)
	assert.Equal(t, agents.WorkerResponse, res.AgentResults[1].AgentName)
}

func TestHierarchicalCoordinatorNamesCaseInsensitive(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{
		"comma-separated list": "Analysis, RESPONSE, analysis",
		"analyst":              "deep analysis",
		"writer":               "polished reply",
	}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "what changed last week", ModeHierarchical, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, "polished reply", res.Output)
	// mixed-case names resolve to registered workers, duplicates dropped
	require.Len(t, res.AgentResults, 2)
	assert.Equal(t, agents.WorkerAnalysis, res.AgentResults[0].AgentName)
	assert.Equal(t, agents.WorkerResponse, res.AgentResults[1].AgentName)
}

func TestHierarchicalFallsBackToSequential(t *testing.T) {
	p := &fakeProvider{
		failOn: []string{"comma-separated list"},
		replies: map[string]string{
			"research assistant": "facts",
			"analyst":            "analysis",
			"writer":             "sequential reply",
		},
	}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "what changed last week", ModeHierarchical, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, "sequential reply", res.Output)
	assert.Len(t, res.AgentResults, 3)
}

func TestHierarchicalUnusableReplyFallsBack(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{
		"comma-separated list": "nobody, you, know",
		"writer":               "sequential reply",
	}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "what changed last week", ModeHierarchical, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, "sequential reply", res.Output)
}

func TestDynamicSimpleTaskSingleWorker(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{"writer": "short answer"}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "hi there", ModeDynamic, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, "short answer", res.Output)
	assert.Len(t, res.AgentResults, 1)
	assert.Equal(t, agents.WorkerResponse, res.AgentResults[0].AgentName)
}

func TestDynamicCodeTaskUsesCodeWorker(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{"software engineer": "func Sort() {}"}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(),
		"Write a Python function to sort a list", ModeDynamic, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, models.TypeCode, res.TaskType)
	assert.Equal(t, agents.WorkerCode, res.AgentResults[0].AgentName)
	assert.Equal(t, "func Sort() {}", res.Output)
}

func TestPipelineRunsPlanSteps(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{
		"writer": "pipeline reply",
	}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "say hello", ModePipeline, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, "pipeline reply", res.Output)
	require.Len(t, res.AgentResults, 1)
}

func TestPipelineAllStepsFail(t *testing.T) {
	p := &fakeProvider{failOn: []string{"writer", "research assistant", "analyst", "software engineer"}}
	o := newTestOrchestrator(p)

	res, err := o.Orchestrate(context.Background(), "say hello", ModePipeline, models.RoutingContext{})

	require.NoError(t, err)
	assert.Equal(t, pipelineStepFailed, res.Output)
}

func TestWorkerRegistry(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{})

	w, ok := o.GetWorker(agents.WorkerCode)
	require.True(t, ok)
	assert.Equal(t, agents.WorkerCode, w.Name())

	byCap, ok := o.GetWorkerByCapability("reasoning")
	require.True(t, ok)
	assert.Equal(t, agents.WorkerAnalysis, byCap.Name())

	o.UnregisterWorker(agents.WorkerCode)
	_, ok = o.GetWorker(agents.WorkerCode)
	assert.False(t, ok)
	assert.Len(t, o.Workers(), 3)
}

func TestProcessWithUnknownWorker(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{})

	_, err := o.ProcessWith(context.Background(), "nonexistent", "hello")
	assert.ErrorIs(t, err, ErrUnknownWorker)

	ar, err := o.ProcessWith(context.Background(), agents.WorkerResponse, "hello")
	require.NoError(t, err)
	assert.True(t, ar.Success)
}

func TestDelegateTaskLifecycle(t *testing.T) {
	p := &fakeProvider{replies: map[string]string{"software engineer": "done"}}
	o := newTestOrchestrator(p)

	task := models.NewTask("write a function please", models.TypeCode, models.PriorityMedium)
	ar := o.DelegateTask(context.Background(), task)

	require.True(t, ar.Success)
	assert.Equal(t, models.StatusCompleted, task.Status)
	assert.Same(t, ar, task.Result)
}

func TestExecutePlanContinuesPastFailure(t *testing.T) {
	p := &fakeProvider{failOn: []string{"step one"}}
	o := newTestOrchestrator(p)

	s1 := models.NewTask("step one of the work", models.TypeGeneral, models.PriorityMedium)
	s2 := models.NewTask("step two of the work", models.TypeGeneral, models.PriorityMedium)
	plan := models.NewExecutionPlan(s1, []*models.Task{s1, s2})

	results := o.ExecutePlan(context.Background(), plan)

	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.True(t, results[1].Success)
	assert.Equal(t, models.StatusFailed, s1.Status)
	assert.Equal(t, models.StatusCompleted, s2.Status)
	assert.Equal(t, len(plan.Steps), plan.CurrentStep)
	assert.False(t, plan.IsComplete())
}

func TestAnalyzeTaskFacade(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{})

	ta := o.AnalyzeTask("Write a Python function to sort a list")

	assert.Equal(t, models.TypeCode, ta.TaskType)
	assert.Equal(t, models.StrategyQualityOptimized, ta.Strategy)
	assert.Contains(t, ta.SuggestedAgents, agents.WorkerCode)
	assert.Equal(t, "flagship-4", ta.SuggestedModel)
}

func TestGetStatsShape(t *testing.T) {
	o := newTestOrchestrator(&fakeProvider{})
	_, err := o.Orchestrate(context.Background(), "hello", ModeSequential, models.RoutingContext{})
	require.NoError(t, err)

	stats := o.GetStats()
	assert.Equal(t, int64(1), stats["orchestrations"])
	assert.Contains(t, stats, "agents")
	assert.Contains(t, stats, "router")
	assert.Contains(t, stats, "planner")
}
