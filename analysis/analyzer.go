// Package analysis classifies free-text task content into a task type and a
// complexity score using fixed keyword tables, and suggests a routing
// strategy. Everything here is deterministic and side-effect free.
package analysis

import (
	"strings"

	"github.com/AstroAir/feishu-webhook-bot/orchestrator/models"
)

// typeKeywords maps each task type to its scoring keywords. Matching is
// case-insensitive substring containment; each occurrence of a keyword adds
// one to that type's score.
var typeKeywords = map[models.TaskType][]string{
	models.TypeSearch: {
		"search", "find", "look up", "lookup", "query", "retrieve", "locate",
		"latest", "news about",
	},
	models.TypeAnalysis: {
		"analyze", "analysis", "examine", "evaluate", "compare", "assess",
		"investigate", "review", "breakdown",
	},
	models.TypeCode: {
		"code", "function", "program", "script", "debug", "implement",
		"python", "javascript", "golang", "java ", "sql", "api", "bug",
		"refactor", "compile",
	},
	models.TypeSummary: {
		"summarize", "summary", "tldr", "tl;dr", "brief", "condense",
		"overview", "recap",
	},
	models.TypeTranslation: {
		"translate", "translation", "in english", "in chinese", "in japanese",
		"in french", "in spanish", "in german",
	},
	models.TypeReasoning: {
		"why", "reason", "explain", "logic", "deduce", "infer", "prove",
		"justify",
	},
	models.TypePlanning: {
		"plan", "schedule", "organize", "roadmap", "milestone", "strategy",
		"arrange", "timeline",
	},
	models.TypeCreative: {
		"story", "poem", "creative", "imagine", "brainstorm", "compose",
		"slogan", "lyrics",
	},
	models.TypeMath: {
		"calculate", "math", "equation", "solve", "integral", "derivative",
		"probability", "percent", "arithmetic",
	},
}

// technicalTerms bump complexity by two when any appears.
var technicalTerms = []string{
	"algorithm", "database", "architecture", "optimization", "concurrency",
	"distributed", "kubernetes", "encryption", "machine learning",
	"neural network", "compiler", "protocol", "microservice",
}

// multiStepPhrases bump complexity by one when any appears.
var multiStepPhrases = []string{
	"step by step", "first,", "and then", "after that", "followed by",
	"finally", "multiple steps",
}

// DetectType scores every task type by keyword occurrences in content and
// returns the highest scorer, ties broken by declaration order. Content with
// no keyword hit at all is treated as conversation.
func DetectType(content string) models.TaskType {
	lower := strings.ToLower(content)

	best := models.TypeConversation
	bestScore := 0
	for _, tt := range models.TaskTypes {
		score := 0
		for _, kw := range typeKeywords[tt] {
			score += strings.Count(lower, kw)
		}
		if score > bestScore {
			best = tt
			bestScore = score
		}
	}
	return best
}

// Complexity rates content on a 1-10 scale. The base score is 5, adjusted by
// length, technical vocabulary and multi-step phrasing, then clamped.
func Complexity(content string) int {
	lower := strings.ToLower(content)
	words := len(strings.Fields(content))

	score := 5
	switch {
	case words > 200:
		score += 2
	case words > 100:
		score++
	case words < 20:
		score--
	}
	for _, term := range technicalTerms {
		if strings.Contains(lower, term) {
			score += 2
			break
		}
	}
	for _, phrase := range multiStepPhrases {
		if strings.Contains(lower, phrase) {
			score++
			break
		}
	}

	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}
	return score
}

// SuggestStrategy picks a routing strategy from task type and complexity.
// Rules are evaluated in order; the first match wins.
func SuggestStrategy(taskType models.TaskType, complexity int) models.Strategy {
	switch {
	case complexity >= 8:
		return models.StrategyQualityOptimized
	case taskType == models.TypeCode:
		return models.StrategyQualityOptimized
	case complexity <= 3:
		return models.StrategyCostOptimized
	default:
		return models.StrategyBalanced
	}
}
