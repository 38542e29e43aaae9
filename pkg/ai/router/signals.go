package router

import (
	"strings"

	"ai-saleschat-be/internal/constant"
)

// Category is the detected task category of one request.
type Category string

const (
	CategoryQA        Category = "qa"
	CategoryAnalysis  Category = "analysis"
	CategoryCreative  Category = "creative"
	CategoryReasoning Category = "reasoning"
	CategoryCode      Category = "code"
)

// Signals are the raw inputs a routing decision is derived from. They
// are logged alongside every decision so the policy stays auditable.
type Signals struct {
	Length    int      `json:"length"`
	MultiStep bool     `json:"multi_step"`
	Category  Category `json:"category,omitempty"`
	Override  string   `json:"override,omitempty"`
}

// Ordering matters for multi-step detection: longer phrases first so
// "and then" is not swallowed by "then".
var multiStepMarkers = []string{
	"after that",
	"and then",
	"step by step",
	"first of all",
	"then",
	"next,",
	"finally",
}

// Category keywords, checked most specific first. The first table with
// a hit wins; requests matching nothing default to plain Q&A.
var categoryKeywords = []struct {
	category Category
	words    []string
}{
	{CategoryCode, []string{"code", "function", "snippet", "regex", "sql", "script", "debug", "stack trace"}},
	{CategoryReasoning, []string{"why", "explain", "reason", "compare", "trade-off", "tradeoff", "pros and cons", "which is better"}},
	{CategoryAnalysis, []string{"analyze", "analyse", "summarize", "summarise", "review", "report", "breakdown", "statistics"}},
	{CategoryCreative, []string{"write a", "story", "poem", "slogan", "tagline", "draft", "brainstorm"}},
}

// ExtractSignals derives the routing signals from a message and the
// session context. Deterministic: the same inputs always produce the
// same signals.
func ExtractSignals(message string, sessionContext map[string]interface{}) Signals {
	lower := strings.ToLower(message)

	s := Signals{Length: len(message)}

	for _, marker := range multiStepMarkers {
		if strings.Contains(lower, marker) {
			s.MultiStep = true
			break
		}
	}

	s.Category = CategoryQA
	for _, table := range categoryKeywords {
		if containsAny(lower, table.words) {
			s.Category = table.category
			break
		}
	}

	if override, ok := sessionContext[constant.ContextKeyModelOverride].(string); ok {
		s.Override = override
	}

	return s
}

func containsAny(s string, substrs []string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
