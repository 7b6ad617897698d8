package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"kaizen/internal/orchestrator"
)

// AcknowledgeTool handles the kaizen_acknowledge MCP tool.
// Confirming a loop clears its pending and blocked entries and, once
// nothing is outstanding, reopens prompt delivery.
type AcknowledgeTool struct {
	orch *orchestrator.Orchestrator
}

// NewAcknowledgeTool creates an AcknowledgeTool.
func NewAcknowledgeTool(orch *orchestrator.Orchestrator) *AcknowledgeTool {
	return &AcknowledgeTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *AcknowledgeTool) Definition() mcp.Tool {
	return mcp.NewTool("kaizen_acknowledge",
		mcp.WithDescription(
			"Acknowledge an improvement loop by id. Every started loop must "+
				"be acknowledged before `kaizen_fetch_prompts` delivers prompts.",
		),
		mcp.WithString("loop_id",
			mcp.Required(),
			mcp.Description("The loop id to confirm, e.g. `loop-1`."),
		),
		mcp.WithString("response",
			mcp.Description("Optional confirmation note recorded with the acknowledgment."),
		),
	)
}

// Handle processes the kaizen_acknowledge tool call.
func (t *AcknowledgeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	loopID := strings.TrimSpace(req.GetString("loop_id", ""))
	if loopID == "" {
		return mcp.NewToolResultError("`loop_id` is required, e.g. `loop-1`."), nil
	}
	response := req.GetString("response", "")

	res, err := t.orch.Acknowledge(loopID, response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if !res.Known {
		return mcp.NewToolResultText(fmt.Sprintf(
			"Loop `%s` has no outstanding acknowledgment. The response was recorded in history.",
			loopID)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Acknowledged\n\n**Loop:** `%s`\n**Topic:** %s\n\n", loopID, res.Topic)
	if res.GateOpen {
		b.WriteString("✅ All loops are confirmed. Prompt delivery is open — call `kaizen_fetch_prompts`.")
	} else {
		gate := t.orch.Gate()
		fmt.Fprintf(&b, "⏳ %d loop(s) still pending, %d blocked. Acknowledge them to reopen prompt delivery.",
			gate.PendingCount(), gate.BlockedCount())
	}

	return mcp.NewToolResultText(b.String()), nil
}
