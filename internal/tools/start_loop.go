package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"kaizen/internal/loop"
	"kaizen/internal/orchestrator"
)

// StartLoopTool handles the kaizen_start_loop MCP tool.
// It registers a new improvement loop and launches its iteration runner.
type StartLoopTool struct {
	orch *orchestrator.Orchestrator
	// runCtx is the lifetime context loops are started under; closing
	// it stops every runner.
	runCtx context.Context
}

// NewStartLoopTool creates a StartLoopTool bound to the orchestrator
// and the server's run context.
func NewStartLoopTool(orch *orchestrator.Orchestrator, runCtx context.Context) *StartLoopTool {
	return &StartLoopTool{orch: orch, runCtx: runCtx}
}

// Definition returns the MCP tool definition for registration.
func (t *StartLoopTool) Definition() mcp.Tool {
	return mcp.NewTool("kaizen_start_loop",
		mcp.WithDescription(
			"Start a continuous improvement loop on a topic. The loop runs "+
				"AI iterations on its own schedule and must be acknowledged "+
				"with `kaizen_acknowledge` before prompts are delivered.",
		),
		mcp.WithString("topic",
			mcp.Required(),
			mcp.Description("What the loop should improve, e.g. \"optimize the query planner\"."),
		),
		mcp.WithNumber("interval_seconds",
			mcp.Description("Seconds between iterations. Defaults to the configured interval. Doubles after a failed iteration."),
		),
		mcp.WithNumber("max_iterations",
			mcp.Description("Iteration cap for the loop. Defaults to the configured cap."),
		),
		mcp.WithBoolean("ai_to_ai",
			mcp.Description("Phrase iteration prompts for AI-to-AI exchange rather than human review."),
		),
	)
}

// Handle processes the kaizen_start_loop tool call.
func (t *StartLoopTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	topic := strings.TrimSpace(req.GetString("topic", ""))
	if topic == "" {
		return mcp.NewToolResultError("`topic` is required. Describe what the loop should improve."), nil
	}

	opts := loop.Options{
		Interval:      time.Duration(req.GetInt("interval_seconds", 0)) * time.Second,
		MaxIterations: req.GetInt("max_iterations", 0),
		AIToAI:        req.GetBool("ai_to_ai", false),
	}
	if opts.Interval < 0 {
		return mcp.NewToolResultError("`interval_seconds` must be positive."), nil
	}
	if opts.MaxIterations < 0 {
		return mcp.NewToolResultError("`max_iterations` must be positive."), nil
	}

	res, err := t.orch.StartLoop(t.runCtx, topic, opts)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	response := fmt.Sprintf(
		"# Loop Started\n\n"+
			"**ID:** `%s`\n"+
			"**Topic:** %s\n"+
			"**Category:** %s\n"+
			"**Complexity:** %s\n"+
			"**Interval:** %s\n"+
			"**Max iterations:** %d\n\n"+
			"⚠️ Acknowledge this loop with `kaizen_acknowledge` (loop_id: `%s`) "+
			"or prompt delivery stays blocked.",
		res.Loop.ID, res.Loop.Topic,
		res.Context.Category, res.Context.Complexity,
		formatDuration(res.Loop.Interval), res.Loop.MaxIterations,
		res.Loop.ID,
	)

	return mcp.NewToolResultText(response), nil
}
