// Package routing selects a generation backend for each task under a chosen
// strategy, tracks per-backend usage and health, and keeps a bounded history
// of decisions for adaptive feedback.
package routing

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/budget"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/circuitbreaker"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/metrics"
	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// historyLimit bounds the routing history ring.
const historyLimit = 1000

// requiredCapabilities maps each task type to the capability set a backend
// must intersect to be considered capable.
var requiredCapabilities = map[models.TaskType][]string{
	models.TypeGeneral:      {"general", "chat"},
	models.TypeSearch:       {"search", "general"},
	models.TypeAnalysis:     {"analysis", "reasoning"},
	models.TypeCode:         {"code"},
	models.TypeSummary:      {"summary", "chat"},
	models.TypeTranslation:  {"translation", "chat"},
	models.TypeReasoning:    {"reasoning", "analysis"},
	models.TypePlanning:     {"planning", "reasoning"},
	models.TypeCreative:     {"creative", "chat"},
	models.TypeMath:         {"math", "reasoning"},
	models.TypeConversation: {"chat", "general"},
}

// RequiredCapabilities returns the capability set for a task type.
func RequiredCapabilities(taskType models.TaskType) []string {
	return requiredCapabilities[taskType]
}

type adaptiveKey struct {
	Model    string
	TaskType models.TaskType
}

// adaptiveStat is the exponential moving average of per-(model,type)
// outcomes, smoothing factor 0.1.
type adaptiveStat struct {
	SuccessRate  float64
	AvgLatencyMs float64
	Samples      int64
}

const adaptiveAlpha = 0.1

// Options configures a Router.
type Options struct {
	DefaultModel        string
	Strategy            models.Strategy
	Budget              *budget.Tracker
	Breakers            *circuitbreaker.Set
	LanguagePreferences map[string][]string
}

// Router owns the backend registry and all routing state. Safe for
// concurrent use; every public method serializes registry mutation.
type Router struct {
	mu           sync.RWMutex
	models       map[string]*models.ModelInfo
	defaultModel string
	strategy     models.Strategy
	usage        map[string]int64
	history      []models.RoutingRecord
	adaptive     map[adaptiveKey]*adaptiveStat
	langPrefs    map[string][]string
	ab           *abTest
	rrIndex      uint64

	budget   *budget.Tracker
	breakers *circuitbreaker.Set
	logger   *zap.Logger
}

// NewRouter creates a router seeded with the given backends.
func NewRouter(seed []models.ModelInfo, opts Options, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Router{
		models:       make(map[string]*models.ModelInfo, len(seed)),
		defaultModel: opts.DefaultModel,
		strategy:     opts.Strategy,
		usage:        make(map[string]int64),
		adaptive:     make(map[adaptiveKey]*adaptiveStat),
		langPrefs:    opts.LanguagePreferences,
		budget:       opts.Budget,
		breakers:     opts.Breakers,
		logger:       logger,
	}
	if r.strategy == "" {
		r.strategy = models.StrategyBalanced
	}
	if r.langPrefs == nil {
		r.langPrefs = make(map[string][]string)
	}
	for i := range seed {
		m := seed[i]
		r.models[m.Name] = &m
	}
	if r.defaultModel == "" && len(seed) > 0 {
		r.defaultModel = seed[0].Name
	}
	return r
}

// AddModel registers or replaces a backend.
func (r *Router) AddModel(info models.ModelInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[info.Name] = &info
	r.logger.Info("model registered", zap.String("model", info.Name), zap.String("provider", info.Provider))
}

// ApplyModels upserts a batch of backends, typically from a reloaded
// catalog. Rolling stats of already-registered backends are preserved; only
// catalog-owned fields (pricing, ratings, capabilities, enablement) change.
func (r *Router) ApplyModels(infos []models.ModelInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range infos {
		info := infos[i]
		if existing, ok := r.models[info.Name]; ok {
			existing.Provider = info.Provider
			existing.Capabilities = info.Capabilities
			existing.CostPer1KInput = info.CostPer1KInput
			existing.CostPer1KOutput = info.CostPer1KOutput
			existing.MaxContext = info.MaxContext
			existing.Speed = info.Speed
			existing.Quality = info.Quality
			existing.Latency = info.Latency
			existing.Enabled = info.Enabled
			existing.Tags = info.Tags
			continue
		}
		r.models[info.Name] = &info
	}
	r.logger.Info("model catalog applied", zap.Int("models", len(infos)))
}

// RemoveModel unregisters a backend.
func (r *Router) RemoveModel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.models, name)
}

// EnableModel marks a backend routable.
func (r *Router) EnableModel(name string) {
	r.setEnabled(name, true)
}

// DisableModel removes a backend from routing without unregistering it.
func (r *Router) DisableModel(name string) {
	r.setEnabled(name, false)
}

func (r *Router) setEnabled(name string, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m, ok := r.models[name]; ok {
		m.Enabled = enabled
	}
}

// GetModel returns a copy of a backend's metadata.
func (r *Router) GetModel(name string) (models.ModelInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if m, ok := r.models[name]; ok {
		return *m, true
	}
	return models.ModelInfo{}, false
}

// DefaultModel returns the configured fallback backend.
func (r *Router) DefaultModel() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultModel
}

// SetDefaultModel changes the fallback backend.
func (r *Router) SetDefaultModel(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = name
}

// Strategy returns the active routing strategy.
func (r *Router) Strategy() models.Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.strategy
}

// SetStrategy changes the active routing strategy.
func (r *Router) SetStrategy(s models.Strategy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategy = s
}

// SetLanguagePreference sets the ordered preferred backends for a language.
func (r *Router) SetLanguagePreference(language string, preferred []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.langPrefs[language] = preferred
}

// capableModels returns the enabled backends sharing at least one capability
// with the task type's requirement set, in name order. Backends with an open
// circuit breaker are skipped. Must be called with at least a read lock held.
func (r *Router) capableModels(taskType models.TaskType) []*models.ModelInfo {
	required := requiredCapabilities[taskType]
	var out []*models.ModelInfo
	for _, m := range r.models {
		if !m.Enabled {
			continue
		}
		if r.breakers != nil && !r.breakers.Available(m.Name) {
			continue
		}
		for _, cap := range required {
			if m.HasCapability(cap) {
				out = append(out, m)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Route selects a backend for the task under the active strategy. A task
// type with no capable backend falls back to the configured default; this is
// logged, never an error.
func (r *Router) Route(task *models.Task) string {
	return r.RouteWithStrategy(task, r.Strategy())
}

// RouteWithStrategy routes one task under an explicit strategy.
func (r *Router) RouteWithStrategy(task *models.Task, strategy models.Strategy) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	candidates := r.capableModels(task.Type)
	if len(candidates) == 0 {
		r.logger.Warn("no capable model for task type, using default",
			zap.String("task_type", string(task.Type)),
			zap.String("default_model", r.defaultModel))
		metrics.RoutingFallbacks.WithLabelValues(string(task.Type)).Inc()
		r.usage[r.defaultModel]++
		return r.defaultModel
	}

	// A/B test traffic split, when one is running.
	if m, ok := r.abPickLocked(candidates); ok {
		r.usage[m]++
		metrics.RoutingDecisions.WithLabelValues("ab_test", m).Inc()
		return m
	}

	chosen := r.applyStrategyLocked(strategy, task.Type, candidates)
	r.usage[chosen.Name]++
	metrics.RoutingDecisions.WithLabelValues(string(strategy), chosen.Name).Inc()
	return chosen.Name
}

// RouteBatch routes many tasks under a strategy override, restoring the
// previous strategy afterward.
func (r *Router) RouteBatch(tasks []*models.Task, strategy models.Strategy) []string {
	prev := r.Strategy()
	r.SetStrategy(strategy)
	defer r.SetStrategy(prev)

	out := make([]string, len(tasks))
	for i, t := range tasks {
		out[i] = r.RouteWithStrategy(t, strategy)
	}
	return out
}

// RecordUsage folds one completed request into the backend's rolling stats,
// the per-(model,type) adaptive stats, the circuit breaker and the budget.
func (r *Router) RecordUsage(model string, taskType models.TaskType, success bool, latency time.Duration, costUSD float64) {
	r.mu.Lock()
	if m, ok := r.models[model]; ok {
		m.UpdateStats(success, latency)
	}

	key := adaptiveKey{Model: model, TaskType: taskType}
	stat, ok := r.adaptive[key]
	if !ok {
		stat = &adaptiveStat{SuccessRate: 1.0}
		r.adaptive[key] = stat
	}
	successVal := 0.0
	if success {
		successVal = 1.0
	}
	latencyMs := float64(latency.Milliseconds())
	if stat.Samples == 0 {
		stat.SuccessRate = successVal
		stat.AvgLatencyMs = latencyMs
	} else {
		stat.SuccessRate = (1-adaptiveAlpha)*stat.SuccessRate + adaptiveAlpha*successVal
		stat.AvgLatencyMs = (1-adaptiveAlpha)*stat.AvgLatencyMs + adaptiveAlpha*latencyMs
	}
	stat.Samples++
	r.mu.Unlock()

	if r.breakers != nil {
		r.breakers.Record(model, success)
	}
	if r.budget != nil {
		r.budget.AddUsage(costUSD)
		metrics.BudgetUsageUSD.Set(r.budget.Usage())
	}

	status := "success"
	if !success {
		status = "failure"
	}
	metrics.ModelRequests.WithLabelValues(model, status).Inc()
	metrics.ModelLatency.WithLabelValues(model).Observe(float64(latency.Milliseconds()))
	metrics.TaskCostUSD.Observe(costUSD)
}

// AddHistory appends a routing record, evicting the oldest beyond the cap.
func (r *Router) AddHistory(record models.RoutingRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history = append(r.history, record)
	if len(r.history) > historyLimit {
		r.history = r.history[len(r.history)-historyLimit:]
	}
}

// History returns a copy of the routing history, oldest first.
func (r *Router) History() []models.RoutingRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.RoutingRecord, len(r.history))
	copy(out, r.history)
	return out
}

// UsageCounts returns a copy of per-backend routing counts.
func (r *Router) UsageCounts() map[string]int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int64, len(r.usage))
	for k, v := range r.usage {
		out[k] = v
	}
	return out
}

// ModelsByTag returns copies of registered backends carrying a tag.
func (r *Router) ModelsByTag(tag string) []models.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ModelInfo
	for _, m := range r.models {
		if m.HasTag(tag) {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ModelsByProvider returns copies of registered backends from a provider.
func (r *Router) ModelsByProvider(provider string) []models.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.ModelInfo
	for _, m := range r.models {
		if m.Provider == provider {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListModels returns copies of all registered backends in name order.
func (r *Router) ListModels() []models.ModelInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ModelInfo, 0, len(r.models))
	for _, m := range r.models {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Stats summarizes router state for reporting.
func (r *Router) Stats() map[string]interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()

	usage := make(map[string]int64, len(r.usage))
	var total int64
	for k, v := range r.usage {
		usage[k] = v
		total += v
	}
	return map[string]interface{}{
		"strategy":      string(r.strategy),
		"default_model": r.defaultModel,
		"models":        len(r.models),
		"total_routes":  total,
		"usage":         usage,
		"history_size":  len(r.history),
	}
}
