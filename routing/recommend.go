package routing

import (
	"sort"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/analysis"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// Constraints filter candidates for advisory recommendations.
type Constraints struct {
	MaxCostPer1K float64 // 0 means unconstrained
	MinQuality   int
	MinSpeed     int
	Provider     string
}

// Candidate is one ranked entry of a recommendation.
type Candidate struct {
	Model models.ModelInfo `json:"model"`
	Score float64          `json:"score"`
}

// Recommendation is the advisory result of Recommend. It commits nothing:
// no usage counters move and no history is written.
type Recommendation struct {
	TaskType   models.TaskType `json:"task_type"`
	Complexity int             `json:"complexity"`
	Strategy   models.Strategy `json:"suggested_strategy"`
	Candidates []Candidate     `json:"candidates"`
	Best       string          `json:"best"`
}

// Recommend re-analyzes content, applies the given constraints and returns
// the ranked capable backends with the single best pick.
func (r *Router) Recommend(content string, constraints Constraints) Recommendation {
	taskType := analysis.DetectType(content)
	complexity := analysis.Complexity(content)

	r.mu.RLock()
	defer r.mu.RUnlock()

	rec := Recommendation{
		TaskType:   taskType,
		Complexity: complexity,
		Strategy:   analysis.SuggestStrategy(taskType, complexity),
	}

	for _, m := range r.capableModels(taskType) {
		if constraints.MaxCostPer1K > 0 && m.CostPer1KInput > constraints.MaxCostPer1K {
			continue
		}
		if constraints.MinQuality > 0 && m.Quality < constraints.MinQuality {
			continue
		}
		if constraints.MinSpeed > 0 && m.Speed < constraints.MinSpeed {
			continue
		}
		if constraints.Provider != "" && m.Provider != constraints.Provider {
			continue
		}
		rec.Candidates = append(rec.Candidates, Candidate{Model: *m, Score: balancedScore(m)})
	}
	sort.SliceStable(rec.Candidates, func(i, j int) bool {
		return rec.Candidates[i].Score > rec.Candidates[j].Score
	})
	if len(rec.Candidates) > 0 {
		rec.Best = rec.Candidates[0].Model.Name
	}
	return rec
}
