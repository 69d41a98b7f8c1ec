package routing

import (
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/metrics"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// applyStrategyLocked picks one backend from the non-empty candidate set.
// Candidates arrive sorted by name, so maximum searches are deterministic.
// Must be called with r.mu held.
func (r *Router) applyStrategyLocked(strategy models.Strategy, taskType models.TaskType, candidates []*models.ModelInfo) *models.ModelInfo {
	switch strategy {
	case models.StrategyCostOptimized:
		return minBy(candidates, func(m *models.ModelInfo) float64 { return m.CostPer1KInput })
	case models.StrategySpeedOptimized:
		return maxBy(candidates, func(m *models.ModelInfo) float64 { return float64(m.Speed) })
	case models.StrategyQualityOptimized:
		return maxBy(candidates, func(m *models.ModelInfo) float64 { return float64(m.Quality) })
	case models.StrategyRoundRobin:
		idx := r.rrIndex % uint64(len(candidates))
		r.rrIndex++
		return candidates[idx]
	case models.StrategyCapabilityBased:
		required := requiredCapabilities[taskType]
		return maxBy(candidates, func(m *models.ModelInfo) float64 {
			n := 0
			for _, cap := range required {
				if m.HasCapability(cap) {
					n++
				}
			}
			return float64(n)
		})
	case models.StrategyLatencyOptimized:
		return minBy(candidates, func(m *models.ModelInfo) float64 { return m.Latency.Seconds() })
	case models.StrategyAdaptive:
		return maxBy(candidates, func(m *models.ModelInfo) float64 {
			return r.adaptiveScoreLocked(m, taskType)
		})
	case models.StrategyBudgetAware:
		return r.budgetAwareLocked(taskType, candidates)
	case models.StrategyBalanced, models.StrategyContextAware:
		return maxBy(candidates, func(m *models.ModelInfo) float64 { return balancedScore(m) })
	default:
		// Unknown strategy values indicate caller misuse upstream; routing
		// still proceeds with the balanced policy.
		r.logger.Warn("unknown routing strategy, using balanced")
		return maxBy(candidates, func(m *models.ModelInfo) float64 { return balancedScore(m) })
	}
}

// balancedScore trades quality against speed and input cost.
func balancedScore(m *models.ModelInfo) float64 {
	costFactor := 1.0 / (1.0 + m.CostPer1KInput*100) * 10
	return float64(m.Quality)*0.4 + float64(m.Speed)*0.3 + costFactor*0.3
}

// adaptiveScoreLocked blends historical per-(model,type) outcomes with the
// backend's static quality rating. Backends without samples score from their
// catalog latency and a perfect success rate.
func (r *Router) adaptiveScoreLocked(m *models.ModelInfo, taskType models.TaskType) float64 {
	successRate := 1.0
	latencyMs := float64(m.Latency.Milliseconds())
	if stat, ok := r.adaptive[adaptiveKey{Model: m.Name, TaskType: taskType}]; ok && stat.Samples > 0 {
		successRate = stat.SuccessRate
		latencyMs = stat.AvgLatencyMs
	}
	latencyFactor := 1.0 / (1.0 + latencyMs/1000)
	return successRate*0.4 + latencyFactor*0.3 + float64(m.Quality)/10*0.3
}

// budgetAwareLocked degrades selection as spend approaches the limit: over a
// hard limit everything routes to the cheapest backend, past the warning
// line cost dominates quality, otherwise it behaves like balanced.
func (r *Router) budgetAwareLocked(taskType models.TaskType, candidates []*models.ModelInfo) *models.ModelInfo {
	if r.budget == nil || !r.budget.Enabled() {
		return maxBy(candidates, func(m *models.ModelInfo) float64 { return balancedScore(m) })
	}
	if r.budget.Exceeded() && r.budget.HardLimit() {
		metrics.BudgetLimitedRoutes.Inc()
		return minBy(candidates, func(m *models.ModelInfo) float64 { return m.CostPer1KInput })
	}
	if r.budget.WarningReached() {
		return maxBy(candidates, func(m *models.ModelInfo) float64 {
			costFactor := 1.0 / (1.0 + m.CostPer1KInput*100) * 10
			return costFactor*0.7 + float64(m.Quality)*0.3
		})
	}
	return maxBy(candidates, func(m *models.ModelInfo) float64 { return balancedScore(m) })
}

// minBy returns the first candidate with the smallest key.
func minBy(candidates []*models.ModelInfo, key func(*models.ModelInfo) float64) *models.ModelInfo {
	best := candidates[0]
	bestKey := key(best)
	for _, m := range candidates[1:] {
		if k := key(m); k < bestKey {
			best = m
			bestKey = k
		}
	}
	return best
}

// maxBy returns the first candidate with the largest key.
func maxBy(candidates []*models.ModelInfo, key func(*models.ModelInfo) float64) *models.ModelInfo {
	best := candidates[0]
	bestKey := key(best)
	for _, m := range candidates[1:] {
		if k := key(m); k > bestKey {
			best = m
			bestKey = k
		}
	}
	return best
}
