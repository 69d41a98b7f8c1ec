// Package pricing loads the generation backend catalog from models.yaml:
// per-1K token prices plus the routing metadata (speed, quality, latency,
// capabilities) used to seed the router's registry.
package pricing

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// Catalog is the parsed models.yaml content.
type Catalog struct {
	Models               []models.ModelInfo
	DefaultModel         string
	DefaultCombinedPer1K float64
}

type fileFormat struct {
	Catalog struct {
		Defaults struct {
			Model         string  `yaml:"model"`
			CombinedPer1K float64 `yaml:"combined_per_1k"`
		} `yaml:"defaults"`
		Models []struct {
			Name            string   `yaml:"name"`
			Provider        string   `yaml:"provider"`
			Capabilities    []string `yaml:"capabilities"`
			CostPer1KInput  float64  `yaml:"cost_per_1k_input"`
			CostPer1KOutput float64  `yaml:"cost_per_1k_output"`
			MaxContext      int      `yaml:"max_context"`
			Speed           int      `yaml:"speed"`
			Quality         int      `yaml:"quality"`
			LatencyMs       int      `yaml:"latency_ms"`
			Disabled        bool     `yaml:"disabled"`
			Tags            []string `yaml:"tags"`
		} `yaml:"models"`
	} `yaml:"catalog"`
}

// candidatePaths lists default catalog locations, env override first.
func candidatePaths() []string {
	return []string{
		os.Getenv("MODELS_CONFIG_PATH"),
		"./config/models.yaml",
		"/app/config/models.yaml",
	}
}

// findUp searches parent directories for config/models.yaml starting at CWD.
func findUp() (string, bool) {
	wd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for i := 0; i < 6; i++ {
		cand := filepath.Join(wd, "config", "models.yaml")
		if _, err := os.Stat(cand); err == nil {
			return cand, true
		}
		wd = filepath.Dir(wd)
	}
	return "", false
}

// LoadFile parses a catalog file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var raw fileFormat
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}

	cat := &Catalog{
		DefaultModel:         raw.Catalog.Defaults.Model,
		DefaultCombinedPer1K: raw.Catalog.Defaults.CombinedPer1K,
	}
	for _, m := range raw.Catalog.Models {
		if m.Name == "" {
			continue
		}
		cat.Models = append(cat.Models, models.ModelInfo{
			Name:            m.Name,
			Provider:        m.Provider,
			Capabilities:    m.Capabilities,
			CostPer1KInput:  m.CostPer1KInput,
			CostPer1KOutput: m.CostPer1KOutput,
			MaxContext:      m.MaxContext,
			Speed:           m.Speed,
			Quality:         m.Quality,
			Latency:         time.Duration(m.LatencyMs) * time.Millisecond,
			Enabled:         !m.Disabled,
			Health:          models.HealthUnknown,
			SuccessRate:     1.0,
			Tags:            m.Tags,
		})
	}
	if len(cat.Models) == 0 {
		return nil, fmt.Errorf("catalog %s contains no models", path)
	}
	if cat.DefaultModel == "" {
		cat.DefaultModel = cat.Models[0].Name
	}
	return cat, nil
}

// Load reads the catalog from the first usable default location.
func Load() (*Catalog, error) {
	for _, p := range candidatePaths() {
		if p == "" {
			continue
		}
		if cat, err := LoadFile(p); err == nil {
			return cat, nil
		}
	}
	if p, ok := findUp(); ok {
		return LoadFile(p)
	}
	return nil, fmt.Errorf("no models.yaml found")
}

// Default returns the built-in catalog used when no models.yaml is present.
func Default() *Catalog {
	return &Catalog{
		DefaultModel:         "gpt-4o-mini",
		DefaultCombinedPer1K: 0.002,
		Models: []models.ModelInfo{
			{
				Name: "gpt-4o", Provider: "openai",
				Capabilities:   []string{"code", "analysis", "reasoning", "planning", "creative", "math", "general"},
				CostPer1KInput: 0.0025, CostPer1KOutput: 0.01,
				MaxContext: 128000, Speed: 7, Quality: 9,
				Latency: 1200 * time.Millisecond, Enabled: true,
				Health: models.HealthUnknown, SuccessRate: 1.0,
				Tags: []string{"flagship"},
			},
			{
				Name: "gpt-4o-mini", Provider: "openai",
				Capabilities:   []string{"chat", "summary", "translation", "search", "general"},
				CostPer1KInput: 0.00015, CostPer1KOutput: 0.0006,
				MaxContext: 128000, Speed: 9, Quality: 6,
				Latency: 500 * time.Millisecond, Enabled: true,
				Health: models.HealthUnknown, SuccessRate: 1.0,
				Tags: []string{"cheap", "fast"},
			},
			{
				Name: "claude-3-5-sonnet", Provider: "anthropic",
				Capabilities:   []string{"code", "analysis", "reasoning", "creative", "summary", "general"},
				CostPer1KInput: 0.003, CostPer1KOutput: 0.015,
				MaxContext: 200000, Speed: 6, Quality: 9,
				Latency: 1500 * time.Millisecond, Enabled: true,
				Health: models.HealthUnknown, SuccessRate: 1.0,
				Tags: []string{"flagship"},
			},
			{
				Name: "claude-3-haiku", Provider: "anthropic",
				Capabilities:   []string{"chat", "summary", "translation", "search", "general"},
				CostPer1KInput: 0.00025, CostPer1KOutput: 0.00125,
				MaxContext: 200000, Speed: 9, Quality: 5,
				Latency: 400 * time.Millisecond, Enabled: true,
				Health: models.HealthUnknown, SuccessRate: 1.0,
				Tags: []string{"cheap", "fast"},
			},
			{
				Name: "deepseek-chat", Provider: "deepseek",
				Capabilities:   []string{"code", "math", "reasoning", "chat", "general"},
				CostPer1KInput: 0.0001, CostPer1KOutput: 0.0002,
				MaxContext: 64000, Speed: 8, Quality: 7,
				Latency: 900 * time.Millisecond, Enabled: true,
				Health: models.HealthUnknown, SuccessRate: 1.0,
				Tags: []string{"cheap"},
			},
		},
	}
}
