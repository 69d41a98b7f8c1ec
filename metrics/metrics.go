package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Routing metrics
	RoutingDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_routing_decisions_total",
			Help: "Total number of routing decisions",
		},
		[]string{"strategy", "model"},
	)

	RoutingFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_routing_fallbacks_total",
			Help: "Total number of routing decisions that fell back to the default model",
		},
		[]string{"task_type"},
	)

	ModelRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_model_requests_total",
			Help: "Total number of recorded model requests",
		},
		[]string{"model", "status"},
	)

	ModelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_model_latency_ms",
			Help:    "Recorded model response time in milliseconds",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000},
		},
		[]string{"model"},
	)

	// Orchestration metrics
	Orchestrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_orchestrations_total",
			Help: "Total number of orchestration calls",
		},
		[]string{"mode", "status"},
	)

	OrchestrationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "orchestrator_orchestration_duration_seconds",
			Help:    "Orchestration call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	AgentExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_agent_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"agent", "status"},
	)

	// Token and cost metrics
	TaskTokensUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_task_tokens_used",
			Help:    "Number of tokens used per task",
			Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000},
		},
	)

	TaskCostUSD = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "orchestrator_task_cost_usd",
			Help:    "Cost in USD per task",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		},
	)

	// Budget metrics
	BudgetUsageUSD = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "orchestrator_budget_usage_usd",
			Help: "Spend recorded in the current budget period",
		},
	)

	BudgetLimitedRoutes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_budget_limited_routes_total",
			Help: "Routing decisions forced to the cheapest model by the budget hard limit",
		},
	)

	// Planner metrics
	PlansCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orchestrator_plans_created_total",
			Help: "Total number of execution plans created",
		},
		[]string{"decomposed"},
	)

	DecompositionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orchestrator_decomposition_failures_total",
			Help: "Decomposition calls that degraded to a single-step plan",
		},
	)
)
