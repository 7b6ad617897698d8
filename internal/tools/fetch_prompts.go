package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"kaizen/internal/orchestrator"
)

// maxFetchLimit caps how many prompts one call can request.
const maxFetchLimit = 20

// FetchPromptsTool handles the kaizen_fetch_prompts MCP tool.
type FetchPromptsTool struct {
	orch *orchestrator.Orchestrator
}

// NewFetchPromptsTool creates a FetchPromptsTool.
func NewFetchPromptsTool(orch *orchestrator.Orchestrator) *FetchPromptsTool {
	return &FetchPromptsTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *FetchPromptsTool) Definition() mcp.Tool {
	return mcp.NewTool("kaizen_fetch_prompts",
		mcp.WithDescription(
			"Fetch generated improvement prompts. Delivery is blocked while "+
				"any loop awaits acknowledgment; prompts are drawn from the "+
				"topics of acknowledged loops.",
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of prompts to return (default 5, max 20)."),
		),
	)
}

// Handle processes the kaizen_fetch_prompts tool call.
func (t *FetchPromptsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 0)
	if limit < 0 {
		return mcp.NewToolResultError("`limit` must be positive."), nil
	}
	if limit > maxFetchLimit {
		limit = maxFetchLimit
	}

	res := t.orch.FetchPrompts(limit)

	if res.Blocked {
		var b strings.Builder
		b.WriteString("# Prompt Delivery Blocked\n\n")
		fmt.Fprintf(&b, "**Pending:** %d\n**Blocked:** %d\n\n", res.PendingCount, res.BlockedCount)
		if len(res.PendingLoops) > 0 {
			b.WriteString("| Loop | Topic | Waiting since |\n")
			b.WriteString("|------|-------|---------------|\n")
			for _, rec := range res.PendingLoops {
				fmt.Fprintf(&b, "| `%s` | %s | %s |\n",
					rec.LoopID, rec.Topic, formatTimestamp(rec.Timestamp))
			}
			b.WriteString("\n")
		}
		b.WriteString(res.Remediation)
		return mcp.NewToolResultText(b.String()), nil
	}

	if len(res.Prompts) == 0 {
		return mcp.NewToolResultText("No prompts available."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Improvement Prompts (%d)\n\n", len(res.Prompts))
	for i, p := range res.Prompts {
		fmt.Fprintf(&b, "## %d. [%s] %s priority\n\n%s\n\n_Topic: %s · id `%s`_\n\n",
			i+1, p.Type, p.Priority, p.Content, p.Topic, p.ID)
	}

	return mcp.NewToolResultText(strings.TrimRight(b.String(), "\n")), nil
}
