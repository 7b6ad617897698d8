package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"kaizen/internal/orchestrator"
)

// StopLoopsTool handles the kaizen_stop_loops MCP tool.
// It cancels every running loop. Unacknowledged loops keep blocking
// prompt delivery until acknowledged.
type StopLoopsTool struct {
	orch *orchestrator.Orchestrator
}

// NewStopLoopsTool creates a StopLoopsTool.
func NewStopLoopsTool(orch *orchestrator.Orchestrator) *StopLoopsTool {
	return &StopLoopsTool{orch: orch}
}

// Definition returns the MCP tool definition for registration.
func (t *StopLoopsTool) Definition() mcp.Tool {
	return mcp.NewTool("kaizen_stop_loops",
		mcp.WithDescription(
			"Stop all running improvement loops. Loops that were never "+
				"acknowledged still require `kaizen_acknowledge` before "+
				"prompt delivery resumes.",
		),
	)
}

// Handle processes the kaizen_stop_loops tool call.
func (t *StopLoopsTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stopped := t.orch.StopAll()
	if len(stopped) == 0 {
		return mcp.NewToolResultText("No loops were running."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Loops Stopped\n\nStopped %d loop(s):\n\n", len(stopped))
	for _, lp := range stopped {
		fmt.Fprintf(&b, "- `%s` — %s (iteration %d of %d)\n",
			lp.ID, lp.Topic, lp.Iteration, lp.MaxIterations)
	}

	pending := t.orch.Gate().PendingCount()
	if pending > 0 {
		fmt.Fprintf(&b, "\n⚠️ %d loop(s) still await acknowledgment. "+
			"Prompt delivery stays blocked until they are confirmed.", pending)
	}

	return mcp.NewToolResultText(b.String()), nil
}
