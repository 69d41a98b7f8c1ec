// Package config loads engine configuration from YAML with env overrides and
// hot-reload support.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/budget"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/circuitbreaker"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/planner"
)

// Config is the engine configuration loaded from orchestrator.yaml.
type Config struct {
	DefaultModel    string `mapstructure:"default_model"`
	DefaultMode     string `mapstructure:"default_mode"`
	DefaultStrategy string `mapstructure:"default_strategy"`

	Planner struct {
		AutoDecomposeThreshold int    `mapstructure:"auto_decompose_threshold"`
		MaxSubtasks            int    `mapstructure:"max_subtasks"`
		Model                  string `mapstructure:"model"`
	} `mapstructure:"planner"`

	Budget struct {
		Enabled          bool    `mapstructure:"enabled"`
		Period           string  `mapstructure:"period"`
		LimitUSD         float64 `mapstructure:"limit_usd"`
		WarningThreshold float64 `mapstructure:"warning_threshold"`
		HardLimit        bool    `mapstructure:"hard_limit"`
	} `mapstructure:"budget"`

	CircuitBreaker struct {
		FailureThreshold  int `mapstructure:"failure_threshold"`
		SuccessThreshold  int `mapstructure:"success_threshold"`
		OpenTimeoutMs     int `mapstructure:"open_timeout_ms"`
		MaxHalfOpenProbes int `mapstructure:"max_half_open_probes"`
	} `mapstructure:"circuit_breaker"`

	Logging struct {
		Level  string `mapstructure:"level"`
		Format string `mapstructure:"format"`
	} `mapstructure:"logging"`
}

// setDefaults registers every knob's default on the viper instance.
func setDefaults(v *viper.Viper) {
	v.SetDefault("default_model", "gpt-4o-mini")
	v.SetDefault("default_mode", "dynamic")
	v.SetDefault("default_strategy", string(models.StrategyBalanced))

	v.SetDefault("planner.auto_decompose_threshold", 7)
	v.SetDefault("planner.max_subtasks", 5)

	v.SetDefault("budget.enabled", false)
	v.SetDefault("budget.period", string(budget.PeriodDaily))
	v.SetDefault("budget.limit_usd", 10.0)
	v.SetDefault("budget.warning_threshold", 0.8)
	v.SetDefault("budget.hard_limit", false)

	cb := circuitbreaker.DefaultConfig()
	v.SetDefault("circuit_breaker.failure_threshold", cb.FailureThreshold)
	v.SetDefault("circuit_breaker.success_threshold", cb.SuccessThreshold)
	v.SetDefault("circuit_breaker.open_timeout_ms", int(cb.OpenTimeout/time.Millisecond))
	v.SetDefault("circuit_breaker.max_half_open_probes", cb.MaxHalfOpenProbes)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Default returns the built-in configuration.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// unmarshal of pure defaults cannot fail
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration from path, or from ORCHESTRATOR_CONFIG_PATH when
// path is empty. A missing file yields the defaults; a malformed file is an
// error.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("ORCHESTRATOR_CONFIG_PATH")
	}
	if path == "" {
		return Default(), nil
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("ORCHESTRATOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// BudgetConfig converts the budget section into the tracker's config.
func (c *Config) BudgetConfig() budget.Config {
	return budget.Config{
		Enabled:          c.Budget.Enabled,
		Period:           budget.Period(c.Budget.Period),
		LimitUSD:         c.Budget.LimitUSD,
		WarningThreshold: c.Budget.WarningThreshold,
		HardLimit:        c.Budget.HardLimit,
	}
}

// BreakerConfig converts the circuit breaker section.
func (c *Config) BreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold:  c.CircuitBreaker.FailureThreshold,
		SuccessThreshold:  c.CircuitBreaker.SuccessThreshold,
		OpenTimeout:       time.Duration(c.CircuitBreaker.OpenTimeoutMs) * time.Millisecond,
		MaxHalfOpenProbes: c.CircuitBreaker.MaxHalfOpenProbes,
	}
}

// PlannerConfig converts the planner section, defaulting the decomposition
// model to the engine default model.
func (c *Config) PlannerConfig() planner.Config {
	model := c.Planner.Model
	if model == "" {
		model = c.DefaultModel
	}
	return planner.Config{
		AutoDecomposeThreshold: c.Planner.AutoDecomposeThreshold,
		MaxSubtasks:            c.Planner.MaxSubtasks,
		Model:                  model,
	}
}

// Strategy parses the configured default strategy, falling back to balanced
// on an unknown value.
func (c *Config) Strategy() models.Strategy {
	s := models.Strategy(c.DefaultStrategy)
	switch s {
	case models.StrategyCostOptimized, models.StrategySpeedOptimized,
		models.StrategyQualityOptimized, models.StrategyBalanced,
		models.StrategyRoundRobin, models.StrategyCapabilityBased,
		models.StrategyLatencyOptimized, models.StrategyAdaptive,
		models.StrategyBudgetAware, models.StrategyContextAware:
		return s
	}
	return models.StrategyBalanced
}

// BuildLogger constructs a zap logger from the logging section.
func (c *Config) BuildLogger() (*zap.Logger, error) {
	var zc zap.Config
	if c.Logging.Format == "console" {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}
	level, err := zapcore.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("parse log level %q: %w", c.Logging.Level, err)
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}
