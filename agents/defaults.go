package agents

import (
	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/llm"
)

// Standard worker names used by the built-in orchestration modes.
const (
	WorkerSearch   = "search"
	WorkerAnalysis = "analysis"
	WorkerCode     = "code"
	WorkerResponse = "response"
)

// DefaultWorkers builds the standard worker set: search, analysis, code and
// response. All workers start on the given model; the orchestrator may
// retarget them per request.
func DefaultWorkers(provider llm.Provider, model string, logger *zap.Logger) []*SpecializedWorker {
	specs := []WorkerSpec{
		{
			Name:        WorkerSearch,
			Role:        "researcher",
			Description: "gathers facts and source material",
			RolePrompt: "You are a research assistant. Find and list the facts, " +
				"sources and raw material relevant to the request. Be concrete " +
				"and cite where each item came from when you can.",
			Capabilities: []string{"search", "general"},
			Model:        model,
		},
		{
			Name:        WorkerAnalysis,
			Role:        "analyst",
			Description: "interprets gathered material and draws conclusions",
			RolePrompt: "You are an analyst. Examine the provided material, " +
				"identify patterns and tradeoffs, and state your conclusions " +
				"with the reasoning behind them.",
			Capabilities: []string{"analysis", "reasoning", "math"},
			Model:        model,
		},
		{
			Name:        WorkerCode,
			Role:        "engineer",
			Description: "writes and reviews code",
			RolePrompt: "You are a software engineer. Write correct, readable " +
				"code for the request, and explain non-obvious choices briefly.",
			Capabilities: []string{"code"},
			Model:        model,
		},
		{
			Name:        WorkerResponse,
			Role:        "writer",
			Description: "composes the final user-facing reply",
			RolePrompt: "You are a writer. Compose a clear, well-structured " +
				"reply to the user from the material provided.",
			Capabilities: []string{"chat", "summary", "translation", "creative", "general"},
			Model:        model,
		},
	}

	workers := make([]*SpecializedWorker, 0, len(specs))
	for _, spec := range specs {
		workers = append(workers, NewSpecializedWorker(spec, provider, logger))
	}
	return workers
}
