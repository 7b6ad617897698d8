package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"kaizen/internal/orchestrator"
)

// ListLoopsTool handles the kaizen_list_loops MCP tool.
type ListLoopsTool struct {
	orch *orchestrator.Orchestrator
}

// NewListLoopsTool creates a ListLoopsTool.
func NewListLoopsTool(orch *orchestrator.Orchestrator) *ListLoopsTool {
	return &ListLoopsTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *ListLoopsTool) Definition() mcp.Tool {
	return mcp.NewTool("kaizen_list_loops",
		mcp.WithDescription(
			"List active improvement loops with their iteration progress, "+
				"interval, and acknowledgment status.",
		),
	)
}

// Handle processes the kaizen_list_loops tool call.
func (t *ListLoopsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loops := t.orch.ListLoops()
	if len(loops) == 0 {
		return mcp.NewToolResultText("No active loops. Start one with `kaizen_start_loop`."), nil
	}

	gate := t.orch.Gate()

	var b strings.Builder
	b.WriteString("# Active Loops\n\n")
	b.WriteString("| ID | Topic | Iteration | Interval | Acknowledgment |\n")
	b.WriteString("|----|-------|-----------|----------|----------------|\n")
	for _, lp := range loops {
		status := "✅ acknowledged"
		if gate.IsBlocked(lp.ID) {
			status = "🚫 blocked"
		} else if rec, ok := gate.PendingRecord(lp.ID); ok {
			status = fmt.Sprintf("⏳ pending since %s", formatTimestamp(rec.Timestamp))
		}
		fmt.Fprintf(&b, "| `%s` | %s | %d / %d | %s | %s |\n",
			lp.ID, lp.Topic, lp.Iteration, lp.MaxIterations,
			formatDuration(lp.Interval), status)
	}

	if gate.StrictMode() {
		b.WriteString("\n⚠️ Strict mode is active: prompts are withheld until outstanding loops are acknowledged.")
	}

	return mcp.NewToolResultText(b.String()), nil
}
