package routing

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/metrics"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/util"
)

// scored pairs a backend with its context score.
type scored struct {
	model *models.ModelInfo
	score float64
}

// RouteWithContext routes one task using the caller's conversational
// context: language and user preferences, urgency and backend health all
// contribute additively to each candidate's score.
func (r *Router) RouteWithContext(task *models.Task, rctx models.RoutingContext) *models.RoutingDecision {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.capableModels(task.Type)
	if len(candidates) == 0 {
		r.logger.Warn("no capable model for context routing, using default",
			zap.String("task_type", string(task.Type)))
		metrics.RoutingFallbacks.WithLabelValues(string(task.Type)).Inc()
		r.usage[r.defaultModel]++
		return r.fallbackDecisionLocked(task)
	}

	langPreferred := r.langPrefs[rctx.Language]

	ranked := make([]scored, 0, len(candidates))
	for _, m := range candidates {
		score := float64(m.Quality) * 0.2

		if idx := util.IndexOf(langPreferred, m.Name); idx >= 0 {
			score += 3.0 - float64(idx)*0.5
		}
		if idx := util.IndexOf(rctx.PreferredModels, m.Name); idx >= 0 {
			score += 2.0 - float64(idx)*0.3
		}
		switch {
		case rctx.Urgency >= 8:
			score += float64(m.Speed) * 0.3
		case rctx.Urgency > 0 && rctx.Urgency <= 3:
			score += float64(m.Quality) * 0.2
		}
		switch m.Health {
		case models.HealthDegraded:
			score -= 1.0
		case models.HealthUnhealthy:
			score -= 3.0
		}
		score += m.SuccessRate * 2.0

		ranked = append(ranked, scored{model: m, score: score})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	top := ranked[0]
	alternatives := make([]string, 0, 3)
	for _, s := range ranked[1:] {
		if len(alternatives) == 3 {
			break
		}
		alternatives = append(alternatives, s.model.Name)
	}

	// Token estimate for cost/latency when the caller gives none.
	tokens := len(strings.Fields(task.Content)) * 2

	confidence := top.score / 10
	if confidence > 1.0 {
		confidence = 1.0
	}
	if confidence < 0 {
		confidence = 0
	}

	decision := &models.RoutingDecision{
		SelectedModel:    top.model.Name,
		Strategy:         models.StrategyContextAware,
		Score:            top.score,
		Alternatives:     alternatives,
		Reason:           contextReason(top.model, rctx),
		EstimatedCostUSD: top.model.EstimateCost(tokens, tokens),
		EstimatedLatency: top.model.Latency,
		Confidence:       confidence,
		Timestamp:        time.Now(),
	}

	r.usage[top.model.Name]++
	metrics.RoutingDecisions.WithLabelValues(string(models.StrategyContextAware), top.model.Name).Inc()
	return decision
}

// fallbackDecisionLocked builds the default-model decision for routing
// misses. Must be called with r.mu held.
func (r *Router) fallbackDecisionLocked(task *models.Task) *models.RoutingDecision {
	var estCost float64
	var estLatency time.Duration
	if m, ok := r.models[r.defaultModel]; ok {
		tokens := len(strings.Fields(task.Content)) * 2
		estCost = m.EstimateCost(tokens, tokens)
		estLatency = m.Latency
	}
	return &models.RoutingDecision{
		SelectedModel:    r.defaultModel,
		Strategy:         models.StrategyContextAware,
		Reason:           fmt.Sprintf("no capable model for task type %q, falling back to default", task.Type),
		EstimatedCostUSD: estCost,
		EstimatedLatency: estLatency,
		Confidence:       0.1,
		Timestamp:        time.Now(),
	}
}

func contextReason(m *models.ModelInfo, rctx models.RoutingContext) string {
	parts := []string{fmt.Sprintf("quality %d/10", m.Quality)}
	if rctx.Language != "" {
		parts = append(parts, fmt.Sprintf("language %s", rctx.Language))
	}
	if rctx.Urgency >= 8 {
		parts = append(parts, "high urgency favors speed")
	}
	if m.Health == models.HealthHealthy {
		parts = append(parts, "healthy")
	}
	return fmt.Sprintf("selected %s (%s)", m.Name, strings.Join(parts, ", "))
}
