package routing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

func TestStartABTestValidation(t *testing.T) {
	r := newTestRouter(Options{})

	assert.Error(t, r.StartABTest("t", nil, 0.5))
	assert.Error(t, r.StartABTest("t", []string{"coder-1"}, 0))
	assert.Error(t, r.StartABTest("t", []string{"coder-1"}, 1.5))
	assert.Error(t, r.StartABTest("t", []string{"no-such-model"}, 0.5))
	assert.NoError(t, r.StartABTest("t", []string{"coder-1"}, 0.5))
}

func TestABTestDivertsShareOfTraffic(t *testing.T) {
	r := newTestRouter(Options{Strategy: models.StrategyQualityOptimized})
	require.NoError(t, r.StartABTest("coder-trial", []string{"coder-1"}, 0.3))

	task := models.NewTask("implement quicksort", models.TypeCode, models.PriorityHigh)
	diverted := 0
	for i := 0; i < 100; i++ {
		if r.Route(task) == "coder-1" {
			diverted++
		}
	}
	// Quality routing alone would always pick flagship-4; the counter-based
	// split sends exactly 30 of 100 routes to the test model.
	assert.Equal(t, 30, diverted)
}

func TestABTestReportAggregates(t *testing.T) {
	r := newTestRouter(Options{})
	require.NoError(t, r.StartABTest("trial", []string{"coder-1", "flagship-4"}, 0.5))

	r.RecordABResult("coder-1", true, 800*time.Millisecond)
	r.RecordABResult("coder-1", false, 1200*time.Millisecond)
	r.RecordABResult("flagship-4", true, 1500*time.Millisecond)
	r.RecordABResult("cheap-mini", true, time.Millisecond) // outside the test, ignored

	report, ok := r.ABReportNow()
	require.True(t, ok)
	assert.Equal(t, "trial", report.Name)
	require.Len(t, report.Models, 2)

	coder := report.Models[0]
	assert.Equal(t, int64(2), coder.Requests)
	assert.InDelta(t, 0.5, coder.SuccessRate, 1e-9)
	assert.InDelta(t, 1000, coder.AvgLatencyMs, 1e-9)

	final, ok := r.StopABTest()
	require.True(t, ok)
	assert.Equal(t, "trial", final.Name)

	_, ok = r.ABReportNow()
	assert.False(t, ok)
}

func TestNoABTestMeansNoDiversion(t *testing.T) {
	r := newTestRouter(Options{Strategy: models.StrategyQualityOptimized})
	task := models.NewTask("implement quicksort", models.TypeCode, models.PriorityHigh)
	for i := 0; i < 10; i++ {
		assert.Equal(t, "flagship-4", r.Route(task))
	}
}
