package topic

// promptTemplates holds the per-category templates used by the prompt
// generator. %s is the topic. The first template of a category is the
// high-priority angle, the second a supporting one.
var promptTemplates = map[Category][]string{
	CategoryDevelopment: {
		"What is the single most valuable capability still missing from %s, and what is the smallest implementation that delivers it?",
		"Review the structure of %s: which module boundary would you redraw first, and why?",
	},
	CategoryDebugging: {
		"What is the most likely root cause behind the current behavior of %s, and which reproduction step would confirm it?",
		"Which log line or assertion, added to %s, would most shorten the next debugging session?",
	},
	CategoryOptimization: {
		"Where is the dominant cost in %s right now, and what measurement would prove it before any change is made?",
		"Which cache, batch, or algorithmic change in %s gives the best speedup per line of code changed?",
	},
	CategoryAnalysis: {
		"What does a careful review of %s reveal as the highest-risk area, and what evidence supports that ranking?",
		"Which metric, if tracked for %s over the next week, would most change how it is prioritized?",
	},
	CategoryTesting: {
		"Which untested path through %s would hurt most if it broke, and what is the smallest test that covers it?",
		"What edge case in %s is most likely to be handled by accident rather than by design?",
	},
	CategoryGeneral: {
		"What is one concrete, low-risk improvement to %s that could land today?",
		"If you could only change one thing about %s this week, what would produce the most lasting value?",
	},
}

func templatesFor(category Category) []string {
	templates := promptTemplates[category]
	out := make([]string, len(templates))
	copy(out, templates)
	return out
}
