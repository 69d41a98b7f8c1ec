package routing

import (
	"fmt"
	"time"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/util"
)

// abTest holds the state of the single active A/B experiment.
type abTest struct {
	name         string
	models       []string
	trafficRatio float64 // fraction of routes diverted to the test subset
	counter      uint64
	stats        map[string]*abStat
}

type abStat struct {
	Requests       int64
	Successes      int64
	TotalLatencyMs int64
}

// ABModelReport aggregates one test backend's observed performance.
type ABModelReport struct {
	Model        string  `json:"model"`
	Requests     int64   `json:"requests"`
	SuccessRate  float64 `json:"success_rate"`
	AvgLatencyMs float64 `json:"avg_latency_ms"`
}

// ABReport is the aggregated result of the active A/B test.
type ABReport struct {
	Name         string          `json:"name"`
	TrafficRatio float64         `json:"traffic_ratio"`
	Models       []ABModelReport `json:"models"`
}

// StartABTest registers an experiment diverting a fraction of routing
// traffic to the given backend subset. Only one test runs at a time.
func (r *Router) StartABTest(name string, modelNames []string, trafficRatio float64) error {
	if len(modelNames) == 0 {
		return fmt.Errorf("ab test %q needs at least one model", name)
	}
	if trafficRatio <= 0 || trafficRatio > 1 {
		return fmt.Errorf("ab test %q traffic ratio %v out of (0,1]", name, trafficRatio)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range modelNames {
		if _, ok := r.models[n]; !ok {
			return fmt.Errorf("ab test %q references unknown model %q", name, n)
		}
	}
	stats := make(map[string]*abStat, len(modelNames))
	for _, n := range modelNames {
		stats[n] = &abStat{}
	}
	r.ab = &abTest{
		name:         name,
		models:       append([]string(nil), modelNames...),
		trafficRatio: trafficRatio,
		stats:        stats,
	}
	return nil
}

// StopABTest ends the active experiment and returns its final report.
func (r *Router) StopABTest() (*ABReport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	report := r.abReportLocked()
	r.ab = nil
	return report, report != nil
}

// abPickLocked diverts every trafficRatio-th share of routes to the test
// subset, cycling through it. The split is counter based so behavior is
// deterministic. Must be called with r.mu held.
func (r *Router) abPickLocked(candidates []*models.ModelInfo) (string, bool) {
	if r.ab == nil {
		return "", false
	}
	ab := r.ab
	slot := ab.counter % 100
	ab.counter++
	if float64(slot) >= ab.trafficRatio*100 {
		return "", false
	}

	// Only divert to test models that are actually capable here.
	var usable []string
	for _, n := range ab.models {
		for _, c := range candidates {
			if c.Name == n {
				usable = append(usable, n)
				break
			}
		}
	}
	if len(usable) == 0 {
		return "", false
	}
	return usable[int(ab.counter)%len(usable)], true
}

// RecordABResult records one outcome for a backend under test. Outcomes for
// backends outside the test subset are ignored.
func (r *Router) RecordABResult(model string, success bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ab == nil || !util.ContainsString(r.ab.models, model) {
		return
	}
	st := r.ab.stats[model]
	st.Requests++
	if success {
		st.Successes++
	}
	st.TotalLatencyMs += latency.Milliseconds()
}

// ABReportNow returns the in-flight report of the active test.
func (r *Router) ABReportNow() (*ABReport, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	report := r.abReportLocked()
	return report, report != nil
}

func (r *Router) abReportLocked() *ABReport {
	if r.ab == nil {
		return nil
	}
	report := &ABReport{Name: r.ab.name, TrafficRatio: r.ab.trafficRatio}
	for _, n := range r.ab.models {
		st := r.ab.stats[n]
		m := ABModelReport{Model: n, Requests: st.Requests}
		if st.Requests > 0 {
			m.SuccessRate = float64(st.Successes) / float64(st.Requests)
			m.AvgLatencyMs = float64(st.TotalLatencyMs) / float64(st.Requests)
		}
		report.Models = append(report.Models, m)
	}
	return report
}
