package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

func TestRecommendRanksCapableModels(t *testing.T) {
	r := newTestRouter(Options{})

	rec := r.Recommend("Write a Python function to sort a list", Constraints{})
	assert.Equal(t, models.TypeCode, rec.TaskType)
	assert.Equal(t, models.StrategyQualityOptimized, rec.Strategy)
	require.NotEmpty(t, rec.Candidates)
	assert.Equal(t, rec.Candidates[0].Model.Name, rec.Best)
	// Ranked descending.
	for i := 1; i < len(rec.Candidates); i++ {
		assert.GreaterOrEqual(t, rec.Candidates[i-1].Score, rec.Candidates[i].Score)
	}
}

func TestRecommendAppliesConstraints(t *testing.T) {
	r := newTestRouter(Options{})

	rec := r.Recommend("Write a Python function to sort a list", Constraints{MinQuality: 9})
	require.Len(t, rec.Candidates, 1)
	assert.Equal(t, "flagship-4", rec.Best)

	rec = r.Recommend("Write a Python function to sort a list", Constraints{MaxCostPer1K: 0.002})
	require.Len(t, rec.Candidates, 1)
	assert.Equal(t, "coder-1", rec.Best)

	rec = r.Recommend("Write a Python function to sort a list", Constraints{Provider: "omega"})
	require.Len(t, rec.Candidates, 1)
	assert.Equal(t, "flagship-4", rec.Best)

	rec = r.Recommend("Write a Python function to sort a list", Constraints{MinSpeed: 10})
	assert.Empty(t, rec.Candidates)
	assert.Empty(t, rec.Best)
}

func TestRecommendDoesNotTouchUsage(t *testing.T) {
	r := newTestRouter(Options{})
	r.Recommend("Write a Python function to sort a list", Constraints{})
	assert.Empty(t, r.UsageCounts())
}
