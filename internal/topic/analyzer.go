// Package topic classifies free-text improvement topics.
//
// Classification is pure: given a topic string it derives a category,
// a complexity tier, deduplicated keywords, related concepts, and the
// prompt templates for the category. The result is computed once per
// loop and cached by the acknowledgment state.
package topic

import (
	"strings"
)

// Category buckets a topic into one of six improvement areas.
type Category string

const (
	CategoryDevelopment  Category = "development"
	CategoryDebugging    Category = "debugging"
	CategoryOptimization Category = "optimization"
	CategoryAnalysis     Category = "analysis"
	CategoryTesting      Category = "testing"
	CategoryGeneral      Category = "general"
)

// Complexity is a coarse effort estimate derived from indicator words.
type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Context is the derived classification for one topic. Immutable once
// computed.
type Context struct {
	MainTopic       string     `json:"main_topic"`
	Keywords        []string   `json:"keywords"`
	Category        Category   `json:"category"`
	Complexity      Complexity `json:"complexity"`
	RelatedConcepts []string   `json:"related_concepts"`
	PromptTemplates []string   `json:"prompt_templates"`
}

// --- Category rules ---

// categoryRule pairs a set of trigger words with the category they
// select. Rules are evaluated in order; the first rule with any trigger
// present in the topic wins.
type categoryRule struct {
	Triggers []string
	Category Category
}

// categoryRules is ordered: more specific intents (debugging, testing)
// are checked before broader ones (development).
var categoryRules = []categoryRule{
	{Triggers: []string{"debug", "fix", "error", "bug"}, Category: CategoryDebugging},
	{Triggers: []string{"test", "spec", "unit", "integration"}, Category: CategoryTesting},
	{Triggers: []string{"optimize", "performance", "speed", "efficiency"}, Category: CategoryOptimization},
	{Triggers: []string{"analyze", "review", "audit", "assess"}, Category: CategoryAnalysis},
	{Triggers: []string{"develop", "implement", "create", "build"}, Category: CategoryDevelopment},
}

// complexityRule pairs indicator words with a complexity tier, evaluated
// first-match-wins like categoryRules. Topics matching no tier are medium.
type complexityRule struct {
	Indicators []string
	Tier       Complexity
}

var complexityRules = []complexityRule{
	{Indicators: []string{"architecture", "system", "distributed", "microservice", "scalability", "infrastructure", "migration", "security"}, Tier: ComplexityHigh},
	{Indicators: []string{"feature", "api", "database", "workflow", "pipeline", "module"}, Tier: ComplexityMedium},
	{Indicators: []string{"simple", "small", "minor", "quick", "typo", "trivial"}, Tier: ComplexityLow},
}

// relatedConcepts maps each category to concepts worth surfacing in
// prompts. At most maxRelatedConcepts are returned per topic.
var relatedConcepts = map[Category][]string{
	CategoryDevelopment:  {"design patterns", "code structure", "modularity", "documentation", "maintainability"},
	CategoryDebugging:    {"root cause analysis", "logging", "reproduction steps", "regression tests", "error handling"},
	CategoryOptimization: {"profiling", "caching", "algorithmic complexity", "resource usage", "benchmarking"},
	CategoryAnalysis:     {"metrics", "code quality", "technical debt", "dependencies", "risk assessment"},
	CategoryTesting:      {"test coverage", "edge cases", "test isolation", "fixtures", "continuous integration"},
	CategoryGeneral:      {"best practices", "readability", "consistency", "simplicity", "incremental improvement"},
}

const maxRelatedConcepts = 5

// Classify derives the full topic context for a free-text topic.
func Classify(topic string) Context {
	lower := strings.ToLower(topic)
	category := classifyCategory(lower)
	return Context{
		MainTopic:       topic,
		Keywords:        Keywords(topic),
		Category:        category,
		Complexity:      classifyComplexity(lower),
		RelatedConcepts: conceptsFor(category),
		PromptTemplates: templatesFor(category),
	}
}

func classifyCategory(lower string) Category {
	for _, rule := range categoryRules {
		for _, trigger := range rule.Triggers {
			if strings.Contains(lower, trigger) {
				return rule.Category
			}
		}
	}
	return CategoryGeneral
}

func classifyComplexity(lower string) Complexity {
	for _, rule := range complexityRules {
		for _, indicator := range rule.Indicators {
			if strings.Contains(lower, indicator) {
				return rule.Tier
			}
		}
	}
	return ComplexityMedium
}

func conceptsFor(category Category) []string {
	concepts := relatedConcepts[category]
	if len(concepts) > maxRelatedConcepts {
		concepts = concepts[:maxRelatedConcepts]
	}
	out := make([]string, len(concepts))
	copy(out, concepts)
	return out
}

// Keywords extracts the significant tokens of a topic: lower-cased,
// punctuation stripped, whitespace split, tokens of length <= 2 and
// stop-words dropped, duplicates removed (first occurrence kept).
func Keywords(topic string) []string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return ' '
		}
	}, topic)

	seen := make(map[string]bool)
	var keywords []string
	for _, token := range strings.Fields(cleaned) {
		if len(token) <= 2 || stopWords[token] || seen[token] {
			continue
		}
		seen[token] = true
		keywords = append(keywords, token)
	}
	return keywords
}

// stopWords are common English words that carry no topical signal.
// Words of length <= 2 are dropped before this check.
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "are": true, "was": true, "were": true,
	"will": true, "would": true, "should": true, "could": true,
	"has": true, "have": true, "had": true, "not": true, "but": true,
	"all": true, "any": true, "each": true, "into": true, "over": true,
	"more": true, "most": true, "some": true, "such": true, "than": true,
	"then": true, "them": true, "they": true, "there": true, "these": true,
	"those": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "who": true, "how": true, "why": true, "about": true,
	"after": true, "before": true, "between": true, "through": true,
	"during": true, "their": true, "your": true, "its": true, "our": true,
	"out": true, "off": true, "own": true, "same": true, "very": true,
	"just": true, "also": true, "only": true, "can": true, "you": true,
}
