package routing

import (
	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// RouteForCost picks the best-quality capable backend whose input cost per
// 1K tokens is at or under the cap. When nothing qualifies it settles for
// the globally cheapest capable backend.
func (r *Router) RouteForCost(task *models.Task, maxCostPer1K float64) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.capableModels(task.Type)
	if len(candidates) == 0 {
		r.logger.Warn("no capable model for cost-constrained routing, using default",
			zap.String("task_type", string(task.Type)))
		r.usage[r.defaultModel]++
		return r.defaultModel
	}

	var affordable []*models.ModelInfo
	for _, m := range candidates {
		if m.CostPer1KInput <= maxCostPer1K {
			affordable = append(affordable, m)
		}
	}
	var chosen *models.ModelInfo
	if len(affordable) > 0 {
		chosen = maxBy(affordable, func(m *models.ModelInfo) float64 { return float64(m.Quality) })
	} else {
		chosen = minBy(candidates, func(m *models.ModelInfo) float64 { return m.CostPer1KInput })
	}
	r.usage[chosen.Name]++
	return chosen.Name
}

// RouteForSpeed picks the best-quality capable backend meeting a minimum
// speed rating, or the fastest capable backend when none qualifies.
func (r *Router) RouteForSpeed(task *models.Task, minSpeed int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.capableModels(task.Type)
	if len(candidates) == 0 {
		r.logger.Warn("no capable model for speed-constrained routing, using default",
			zap.String("task_type", string(task.Type)))
		r.usage[r.defaultModel]++
		return r.defaultModel
	}

	var fast []*models.ModelInfo
	for _, m := range candidates {
		if m.Speed >= minSpeed {
			fast = append(fast, m)
		}
	}
	var chosen *models.ModelInfo
	if len(fast) > 0 {
		chosen = maxBy(fast, func(m *models.ModelInfo) float64 { return float64(m.Quality) })
	} else {
		chosen = maxBy(candidates, func(m *models.ModelInfo) float64 { return float64(m.Speed) })
	}
	r.usage[chosen.Name]++
	return chosen.Name
}

// RouteForQuality picks the cheapest capable backend meeting a minimum
// quality rating, or the best-quality capable backend when none qualifies.
func (r *Router) RouteForQuality(task *models.Task, minQuality int) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.capableModels(task.Type)
	if len(candidates) == 0 {
		r.logger.Warn("no capable model for quality-constrained routing, using default",
			zap.String("task_type", string(task.Type)))
		r.usage[r.defaultModel]++
		return r.defaultModel
	}

	var good []*models.ModelInfo
	for _, m := range candidates {
		if m.Quality >= minQuality {
			good = append(good, m)
		}
	}
	var chosen *models.ModelInfo
	if len(good) > 0 {
		chosen = minBy(good, func(m *models.ModelInfo) float64 { return m.CostPer1KInput })
	} else {
		chosen = maxBy(candidates, func(m *models.ModelInfo) float64 { return float64(m.Quality) })
	}
	r.usage[chosen.Name]++
	return chosen.Name
}
