// Package agents provides the specialized workers the orchestrator dispatches
// to. Each worker wraps a role prompt around a generation backend; execution
// failures surface as failed results, never as errors.
package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/llm"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/metrics"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// Worker is the execution surface the orchestrator dispatches to.
type Worker interface {
	// Process handles one message and always returns a result. Generation
	// failures are reported through the result's Success and Error fields.
	Process(ctx context.Context, message string, taskContext map[string]interface{}) *models.AgentResult

	Name() string
	Role() string
	Model() string
	Capabilities() []string
	// SetModel retargets the worker to a different backend.
	SetModel(model string)
	// Info returns a point-in-time stats snapshot.
	Info() models.AgentInfo
}

// SpecializedWorker is the standard Worker implementation: a named role with
// a prompt frame, a capability list and a retargetable backend.
type SpecializedWorker struct {
	name         string
	role         string
	description  string
	rolePrompt   string
	capabilities []string
	provider     llm.Provider
	logger       *zap.Logger

	mu          sync.RWMutex
	model       string
	enabled     bool
	requests    int64
	successes   int64
	failures    int64
	tokensUsed  int64
	totalTimeMs float64
}

// WorkerSpec declares a specialized worker.
type WorkerSpec struct {
	Name         string
	Role         string
	Description  string
	RolePrompt   string
	Capabilities []string
	Model        string
}

// NewSpecializedWorker builds a worker from its spec.
func NewSpecializedWorker(spec WorkerSpec, provider llm.Provider, logger *zap.Logger) *SpecializedWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpecializedWorker{
		name:         spec.Name,
		role:         spec.Role,
		description:  spec.Description,
		rolePrompt:   spec.RolePrompt,
		capabilities: spec.Capabilities,
		provider:     provider,
		logger:       logger,
		model:        spec.Model,
		enabled:      true,
	}
}

func (w *SpecializedWorker) Name() string { return w.name }
func (w *SpecializedWorker) Role() string { return w.role }

func (w *SpecializedWorker) Model() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.model
}

func (w *SpecializedWorker) SetModel(model string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.model = model
}

func (w *SpecializedWorker) Capabilities() []string {
	out := make([]string, len(w.capabilities))
	copy(out, w.capabilities)
	return out
}

// HasCapability reports whether the worker advertises the capability.
func (w *SpecializedWorker) HasCapability(capability string) bool {
	for _, c := range w.capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// Process frames the message with the worker's role prompt and any task
// context, runs the generation call, and records the outcome.
func (w *SpecializedWorker) Process(ctx context.Context, message string, taskContext map[string]interface{}) *models.AgentResult {
	start := time.Now()
	prompt := w.buildPrompt(message, taskContext)

	completion, err := w.provider.Generate(ctx, w.Model(), prompt)
	elapsed := time.Since(start)

	result := &models.AgentResult{
		AgentName:     w.name,
		ExecutionTime: elapsed,
	}
	if err != nil {
		result.Success = false
		result.Error = err.Error()
		w.record(false, 0, elapsed)
		metrics.AgentExecutions.WithLabelValues(w.name, "error").Inc()
		w.logger.Warn("worker execution failed",
			zap.String("agent", w.name),
			zap.Error(err))
		return result
	}

	result.Success = true
	result.Output = completion.Text
	result.TokensUsed = completion.TotalTokens()
	w.record(true, int64(result.TokensUsed), elapsed)
	metrics.AgentExecutions.WithLabelValues(w.name, "success").Inc()
	return result
}

func (w *SpecializedWorker) buildPrompt(message string, taskContext map[string]interface{}) string {
	var b strings.Builder
	if w.rolePrompt != "" {
		b.WriteString(w.rolePrompt)
		b.WriteString("\n\n")
	}
	if len(taskContext) > 0 {
		b.WriteString("Context:\n")
		for _, k := range sortedKeys(taskContext) {
			fmt.Fprintf(&b, "- %s: %v\n", k, taskContext[k])
		}
		b.WriteString("\n")
	}
	b.WriteString(message)
	return b.String()
}

func (w *SpecializedWorker) record(success bool, tokens int64, elapsed time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.requests++
	if success {
		w.successes++
	} else {
		w.failures++
	}
	w.tokensUsed += tokens
	w.totalTimeMs += float64(elapsed.Milliseconds())
}

// Info returns a consistent snapshot of the worker's counters.
func (w *SpecializedWorker) Info() models.AgentInfo {
	w.mu.RLock()
	defer w.mu.RUnlock()

	info := models.AgentInfo{
		Name:         w.name,
		Role:         w.role,
		Model:        w.model,
		Capabilities: append([]string(nil), w.capabilities...),
		Description:  w.description,
		Enabled:      w.enabled,
		Requests:     w.requests,
		Successes:    w.successes,
		Failures:     w.failures,
		TokensUsed:   w.tokensUsed,
	}
	if w.requests > 0 {
		info.SuccessRate = float64(w.successes) / float64(w.requests)
		info.AvgLatencyMs = w.totalTimeMs / float64(w.requests)
	}
	return info
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
