package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

func TestRouteWithContextPrefersUserPreference(t *testing.T) {
	r := newTestRouter(Options{})
	task := models.NewTask("implement quicksort in go", models.TypeCode, models.PriorityHigh)

	// coder-1 and flagship-4 are close on base quality; an explicit user
	// preference tips the decision.
	d := r.RouteWithContext(task, models.RoutingContext{
		UserID:          "u1",
		PreferredModels: []string{"coder-1"},
	})
	require.NotNil(t, d)
	assert.Equal(t, "coder-1", d.SelectedModel)
	assert.Equal(t, models.StrategyContextAware, d.Strategy)
	assert.NotEmpty(t, d.Reason)
	assert.LessOrEqual(t, len(d.Alternatives), 3)
	assert.Greater(t, d.Confidence, 0.0)
	assert.LessOrEqual(t, d.Confidence, 1.0)
}

func TestRouteWithContextLanguagePreference(t *testing.T) {
	r := newTestRouter(Options{LanguagePreferences: map[string][]string{
		"ja": {"coder-1", "flagship-4"},
	}})
	task := models.NewTask("implement quicksort", models.TypeCode, models.PriorityHigh)

	d := r.RouteWithContext(task, models.RoutingContext{Language: "ja"})
	// coder-1 gets the full 3.0 language bonus (index 0), flagship 2.5.
	assert.Equal(t, "coder-1", d.SelectedModel)
}

func TestRouteWithContextUrgencyFavorsSpeed(t *testing.T) {
	r := newTestRouter(Options{})
	task := models.NewTask("summarize quickly", models.TypeGeneral, models.PriorityHigh)

	// general: cheap-mini (speed 9, quality 5) vs flagship-4 (speed 6,
	// quality 9). High urgency adds speed*0.3 and flips the ranking.
	calm := r.RouteWithContext(task, models.RoutingContext{Urgency: 5})
	assert.Equal(t, "flagship-4", calm.SelectedModel)

	urgent := r.RouteWithContext(task, models.RoutingContext{Urgency: 9})
	assert.Equal(t, "cheap-mini", urgent.SelectedModel)
}

func TestRouteWithContextHealthPenalty(t *testing.T) {
	r := newTestRouter(Options{})
	task := models.NewTask("implement quicksort", models.TypeCode, models.PriorityHigh)

	// Drive flagship-4 unhealthy; the -3.0 penalty plus its lost success
	// rate hands the task to coder-1.
	for i := 0; i < 5; i++ {
		r.RecordUsage("flagship-4", models.TypeCode, false, time.Second, 0)
	}
	d := r.RouteWithContext(task, models.RoutingContext{})
	assert.Equal(t, "coder-1", d.SelectedModel)
}

func TestRouteWithContextFallbackOnMiss(t *testing.T) {
	r := newTestRouter(Options{})
	r.DisableModel("coder-1")
	r.DisableModel("flagship-4")
	task := models.NewTask("implement quicksort", models.TypeCode, models.PriorityHigh)

	d := r.RouteWithContext(task, models.RoutingContext{})
	assert.Equal(t, "cheap-mini", d.SelectedModel)
	assert.Contains(t, d.Reason, "falling back")
	assert.InDelta(t, 0.1, d.Confidence, 1e-9)
}

func TestRouteWithContextEstimates(t *testing.T) {
	r := newTestRouter(Options{})
	task := models.NewTask("one two three four", models.TypeCode, models.PriorityMedium)

	d := r.RouteWithContext(task, models.RoutingContext{})
	m, ok := r.GetModel(d.SelectedModel)
	require.True(t, ok)
	// 4 words -> 8 tokens each side.
	assert.InDelta(t, m.EstimateCost(8, 8), d.EstimatedCostUSD, 1e-12)
	assert.Equal(t, m.Latency, d.EstimatedLatency)
}
