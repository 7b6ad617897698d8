// Package prompt generates improvement prompts from classified topics.
//
// Prompts are ephemeral values handed to the caller — never persisted.
// Generation is only invoked after the acknowledgment gate has opened;
// the gate check lives in the orchestrator, not here.
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kaizen/internal/topic"
)

// Priority ranks how urgently a prompt should be acted on.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Prompt is one generated suggestion, returned to callers and discarded.
type Prompt struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Priority  Priority  `json:"priority"`
	Context   string    `json:"context"`
	Topic     string    `json:"topic"`
	Timestamp time.Time `json:"timestamp"`
}

// timeNow is a package-level variable for testability.
// Same pattern as loop/time.go.
var timeNow = time.Now

// Generate produces up to count prompts for a classified topic. Each
// category yields one or two templated prompts: the first high priority,
// the second medium (low for low-complexity topics).
func Generate(tc topic.Context, count int) []Prompt {
	if count <= 0 {
		return nil
	}

	secondPriority := PriorityMedium
	if tc.Complexity == topic.ComplexityLow {
		secondPriority = PriorityLow
	}

	contextLine := fmt.Sprintf("category: %s, complexity: %s, concepts: %s",
		tc.Category, tc.Complexity, strings.Join(tc.RelatedConcepts, ", "))

	prompts := make([]Prompt, 0, len(tc.PromptTemplates))
	for i, template := range tc.PromptTemplates {
		priority := PriorityHigh
		if i > 0 {
			priority = secondPriority
		}
		prompts = append(prompts, Prompt{
			ID:        uuid.NewString(),
			Type:      string(tc.Category),
			Content:   fmt.Sprintf(template, tc.MainTopic),
			Priority:  priority,
			Context:   contextLine,
			Topic:     tc.MainTopic,
			Timestamp: timeNow(),
		})
	}

	if len(prompts) > count {
		prompts = prompts[:count]
	}
	return prompts
}

// Fallback returns up to count topic-agnostic prompts from the fixed
// catalogue. Used when the gate is open but no acknowledged topics
// exist to generate against.
func Fallback(count int) []Prompt {
	if count <= 0 {
		return nil
	}
	n := count
	if n > len(fallbackCatalogue) {
		n = len(fallbackCatalogue)
	}

	prompts := make([]Prompt, 0, n)
	for _, content := range fallbackCatalogue[:n] {
		prompts = append(prompts, Prompt{
			ID:        uuid.NewString(),
			Type:      string(topic.CategoryGeneral),
			Content:   content,
			Priority:  PriorityMedium,
			Context:   "no acknowledged topics; generic catalogue",
			Topic:     "general improvement",
			Timestamp: timeNow(),
		})
	}
	return prompts
}

// fallbackCatalogue is the fixed topic-agnostic prompt set.
var fallbackCatalogue = []string{
	"Pick the module you touched most recently: what one change would make it easier to modify next time?",
	"Find the oldest TODO in the codebase. Is it still worth doing, and if so, what is the first step?",
	"Which part of the system would a new contributor misunderstand first, and what would fix that?",
	"What is the most repetitive manual task in this project's workflow that a small script could remove?",
	"Which dependency is most overdue for an upgrade, and what blocks it?",
	"Where does the test suite give the least confidence per minute of runtime, and how could that change?",
}
