package models

import "time"

// Task types form a closed set. Declaration order matters: the analyzer
// breaks classification ties in this order.
type TaskType string

const (
	TypeGeneral      TaskType = "general"
	TypeSearch       TaskType = "search"
	TypeAnalysis     TaskType = "analysis"
	TypeCode         TaskType = "code"
	TypeSummary      TaskType = "summary"
	TypeTranslation  TaskType = "translation"
	TypeReasoning    TaskType = "reasoning"
	TypePlanning     TaskType = "planning"
	TypeCreative     TaskType = "creative"
	TypeMath         TaskType = "math"
	TypeConversation TaskType = "conversation"
)

// TaskTypes lists every task type in declaration order.
var TaskTypes = []TaskType{
	TypeGeneral, TypeSearch, TypeAnalysis, TypeCode, TypeSummary,
	TypeTranslation, TypeReasoning, TypePlanning, TypeCreative,
	TypeMath, TypeConversation,
}

// Task priorities
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Task statuses
type TaskStatus string

const (
	StatusPending   TaskStatus = "pending"
	StatusRunning   TaskStatus = "running"
	StatusCompleted TaskStatus = "completed"
	StatusFailed    TaskStatus = "failed"
	StatusCancelled TaskStatus = "cancelled"
)

// Routing strategies
type Strategy string

const (
	StrategyCostOptimized    Strategy = "cost_optimized"
	StrategySpeedOptimized   Strategy = "speed_optimized"
	StrategyQualityOptimized Strategy = "quality_optimized"
	StrategyBalanced         Strategy = "balanced"
	StrategyRoundRobin       Strategy = "round_robin"
	StrategyCapabilityBased  Strategy = "capability_based"
	StrategyLatencyOptimized Strategy = "latency_optimized"
	StrategyAdaptive         Strategy = "adaptive"
	StrategyBudgetAware      Strategy = "budget_aware"
	StrategyContextAware     Strategy = "context_aware"
)

// Backend health states
type HealthState string

const (
	HealthHealthy   HealthState = "healthy"
	HealthDegraded  HealthState = "degraded"
	HealthUnhealthy HealthState = "unhealthy"
	HealthUnknown   HealthState = "unknown"
)

// AgentResult is the immutable outcome of one worker execution.
type AgentResult struct {
	AgentName     string                 `json:"agent_name"`
	Output        string                 `json:"output"`
	Success       bool                   `json:"success"`
	Error         string                 `json:"error,omitempty"`
	ExecutionTime time.Duration          `json:"execution_time"`
	TokensUsed    int                    `json:"tokens_used"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// AgentInfo describes a registered worker for stats reporting.
type AgentInfo struct {
	Name         string   `json:"name"`
	Role         string   `json:"role"`
	Model        string   `json:"model"`
	Capabilities []string `json:"capabilities"`
	Description  string   `json:"description,omitempty"`
	Enabled      bool     `json:"enabled"`
	Requests     int64    `json:"requests"`
	Successes    int64    `json:"successes"`
	Failures     int64    `json:"failures"`
	TokensUsed   int64    `json:"tokens_used"`
	SuccessRate  float64  `json:"success_rate"`
	AvgLatencyMs float64  `json:"avg_latency_ms"`
}

// RoutingContext is read-only input for context-aware routing.
type RoutingContext struct {
	UserID          string     `json:"user_id,omitempty"`
	ConversationID  string     `json:"conversation_id,omitempty"`
	TaskHistory     []TaskType `json:"task_history,omitempty"`
	Language        string     `json:"language,omitempty"`
	Urgency         int        `json:"urgency"` // 1-10
	PreferredModels []string   `json:"preferred_models,omitempty"`
}

// RoutingDecision is the router's output for one routing call.
type RoutingDecision struct {
	SelectedModel    string        `json:"selected_model"`
	Strategy         Strategy      `json:"strategy"`
	Score            float64       `json:"score"`
	Alternatives     []string      `json:"alternatives,omitempty"` // up to 3
	Reason           string        `json:"reason"`
	EstimatedCostUSD float64       `json:"estimated_cost_usd"`
	EstimatedLatency time.Duration `json:"estimated_latency"`
	Confidence       float64       `json:"confidence"` // 0-1
	Timestamp        time.Time     `json:"timestamp"`
}

// RoutingRecord is one immutable entry of the router's bounded history.
type RoutingRecord struct {
	Decision      RoutingDecision `json:"decision"`
	TaskType      TaskType        `json:"task_type"`
	ActualCostUSD float64         `json:"actual_cost_usd"`
	ActualLatency time.Duration   `json:"actual_latency"`
	Success       bool            `json:"success"`
	Feedback      string          `json:"feedback,omitempty"`
}
