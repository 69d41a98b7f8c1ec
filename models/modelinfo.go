package models

import "time"

// ModelInfo holds routing metadata for one generation backend. SuccessRate,
// AvgResponseTime and Health are derived exclusively through UpdateStats.
type ModelInfo struct {
	Name            string        `json:"name"`
	Provider        string        `json:"provider"`
	Capabilities    []string      `json:"capabilities"`
	CostPer1KInput  float64       `json:"cost_per_1k_input"`
	CostPer1KOutput float64       `json:"cost_per_1k_output"`
	MaxContext      int           `json:"max_context"`
	Speed           int           `json:"speed"`   // 1-10
	Quality         int           `json:"quality"` // 1-10
	Latency         time.Duration `json:"latency"`
	Enabled         bool          `json:"enabled"`
	Health          HealthState   `json:"health"`
	SuccessRate     float64       `json:"success_rate"` // 0-1
	AvgResponseTime time.Duration `json:"avg_response_time"`
	Requests        int64         `json:"requests"`
	Failures        int64         `json:"failures"`
	LastUsed        time.Time     `json:"last_used,omitempty"`
	LastHealthCheck time.Time     `json:"last_health_check,omitempty"`
	Tags            []string      `json:"tags,omitempty"`
}

// Health thresholds over the rolling success rate.
const (
	healthyThreshold  = 0.95
	degradedThreshold = 0.80
)

// UpdateStats folds one request outcome into the backend's rolling stats and
// re-derives its health state.
func (m *ModelInfo) UpdateStats(success bool, responseTime time.Duration) {
	m.Requests++
	if !success {
		m.Failures++
	}
	m.SuccessRate = float64(m.Requests-m.Failures) / float64(m.Requests)

	// Cumulative moving average over all requests.
	prev := m.AvgResponseTime.Seconds() * float64(m.Requests-1)
	m.AvgResponseTime = time.Duration((prev + responseTime.Seconds()) / float64(m.Requests) * float64(time.Second))

	switch {
	case m.SuccessRate >= healthyThreshold:
		m.Health = HealthHealthy
	case m.SuccessRate >= degradedThreshold:
		m.Health = HealthDegraded
	default:
		m.Health = HealthUnhealthy
	}
	m.LastHealthCheck = time.Now()
	m.LastUsed = time.Now()
}

// HasCapability reports whether the backend advertises a capability.
func (m *ModelInfo) HasCapability(capability string) bool {
	for _, c := range m.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}

// EstimateCost prices a request from token counts using per-1K unit costs.
func (m *ModelInfo) EstimateCost(inputTokens, outputTokens int) float64 {
	return float64(inputTokens)/1000*m.CostPer1KInput +
		float64(outputTokens)/1000*m.CostPer1KOutput
}

// HasTag reports whether the backend carries a free-form tag.
func (m *ModelInfo) HasTag(tag string) bool {
	for _, t := range m.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
