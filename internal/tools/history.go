package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"kaizen/internal/collect"
	"kaizen/internal/orchestrator"
)

// defaultHistoryLimit applies when kaizen_history is called without one.
const defaultHistoryLimit = 10

// HistoryTool handles the kaizen_history MCP tool.
// It reads recorded iterations from the interaction store and recent
// acknowledgments from the gate.
type HistoryTool struct {
	orch  *orchestrator.Orchestrator
	store *collect.Store
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(orch *orchestrator.Orchestrator, store *collect.Store) *HistoryTool {
	return &HistoryTool{orch: orch, store: store}
}

// Definition returns the MCP tool definition for registration.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("kaizen_history",
		mcp.WithDescription(
			"Show recent loop iterations and acknowledgments. Optionally "+
				"filter iterations by `loop_id`.",
		),
		mcp.WithString("loop_id",
			mcp.Description("Restrict iteration history to one loop, e.g. `loop-1`."),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum iterations to show (default 10)."),
		),
	)
}

// Handle processes the kaizen_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loopID := strings.TrimSpace(req.GetString("loop_id", ""))
	limit := req.GetInt("limit", defaultHistoryLimit)
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	interactions, err := t.store.Recent(loopID, limit)
	if err != nil {
		return nil, fmt.Errorf("reading interaction history: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Loop History\n\n")

	if loopID != "" {
		stats, err := t.store.Stats(loopID)
		if err != nil {
			return nil, fmt.Errorf("reading loop stats: %w", err)
		}
		fmt.Fprintf(&b, "**Loop:** `%s` — %d iteration(s), %d succeeded\n\n",
			loopID, stats.Total, stats.Successes)
	}

	if len(interactions) == 0 {
		b.WriteString("No recorded iterations.\n")
	} else {
		b.WriteString("## Recent Iterations\n\n")
		b.WriteString("| Loop | Iteration | Outcome | Model | When |\n")
		b.WriteString("|------|-----------|---------|-------|------|\n")
		for _, it := range interactions {
			outcome := "✅ success"
			if !it.Success {
				outcome = fmt.Sprintf("❌ %s", it.Error)
			}
			// CreatedAt is already the store's "2006-01-02 15:04:05" text.
			fmt.Fprintf(&b, "| `%s` | %d | %s | %s | %s |\n",
				it.LoopID, it.Iteration, outcome, it.Model, it.CreatedAt)
		}
		b.WriteString("\n")
	}

	acks := t.orch.Gate().History()
	if len(acks) > 0 {
		start := len(acks) - limit
		if start < 0 {
			start = 0
		}
		b.WriteString("## Recent Acknowledgments\n\n")
		for _, entry := range acks[start:] {
			marker := "✅"
			if !entry.Known {
				marker = "❓"
			}
			fmt.Fprintf(&b, "- %s `%s` — %s (%s)\n",
				marker, entry.LoopID, entry.Topic, formatTimestamp(entry.At))
		}
	}

	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}
