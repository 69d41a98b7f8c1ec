package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/budget"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

const sampleConfig = `
default_model: flagship-4
default_strategy: cost_optimized

planner:
  auto_decompose_threshold: 6
  max_subtasks: 4

budget:
  enabled: true
  period: weekly
  limit_usd: 25.5
  warning_threshold: 0.9
  hard_limit: true

circuit_breaker:
  failure_threshold: 3
  open_timeout_ms: 10000

logging:
  level: debug
  format: console
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orchestrator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSampleConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "flagship-4", cfg.DefaultModel)
	assert.Equal(t, models.StrategyCostOptimized, cfg.Strategy())
	assert.Equal(t, 6, cfg.Planner.AutoDecomposeThreshold)
	assert.Equal(t, 4, cfg.Planner.MaxSubtasks)

	bc := cfg.BudgetConfig()
	assert.True(t, bc.Enabled)
	assert.Equal(t, budget.PeriodWeekly, bc.Period)
	assert.Equal(t, 25.5, bc.LimitUSD)
	assert.True(t, bc.HardLimit)

	cb := cfg.BreakerConfig()
	assert.Equal(t, 3, cb.FailureThreshold)
	assert.Equal(t, 10*time.Second, cb.OpenTimeout)

	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadDefaultsWhenNoPath(t *testing.T) {
	t.Setenv("ORCHESTRATOR_CONFIG_PATH", "")
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
	assert.Equal(t, models.StrategyBalanced, cfg.Strategy())
	assert.Equal(t, 7, cfg.Planner.AutoDecomposeThreshold)
	assert.False(t, cfg.BudgetConfig().Enabled)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "default_model: [unclosed"))
	assert.Error(t, err)
}

func TestStrategyFallsBackOnUnknown(t *testing.T) {
	cfg := Default()
	cfg.DefaultStrategy = "psychic"
	assert.Equal(t, models.StrategyBalanced, cfg.Strategy())
}

func TestPlannerModelDefaultsToEngineModel(t *testing.T) {
	cfg := Default()
	assert.Equal(t, cfg.DefaultModel, cfg.PlannerConfig().Model)
}

func TestBuildLogger(t *testing.T) {
	cfg := Default()
	logger, err := cfg.BuildLogger()
	require.NoError(t, err)
	logger.Sync()

	cfg.Logging.Level = "nonsense"
	_, err = cfg.BuildLogger()
	assert.Error(t, err)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	w, err := NewWatcher(path, zap.NewNop())
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, "flagship-4", w.Current().DefaultModel)

	reloaded := make(chan *Config, 1)
	w.OnChange(func(cfg *Config) { reloaded <- cfg })
	w.Start()

	require.NoError(t, os.WriteFile(path, []byte("default_model: cheap-mini\n"), 0o644))

	select {
	case cfg := <-reloaded:
		assert.Equal(t, "cheap-mini", cfg.DefaultModel)
		assert.Equal(t, "cheap-mini", w.Current().DefaultModel)
	case <-time.After(3 * time.Second):
		t.Fatal("reload not observed")
	}
}
