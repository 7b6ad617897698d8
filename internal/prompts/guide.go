// Package prompts implements MCP prompt handlers for the improvement
// loop server.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// GuidePrompt handles the kaizen-guide MCP prompt.
// It walks the AI through starting, acknowledging, and harvesting an
// improvement loop.
type GuidePrompt struct{}

// NewGuidePrompt creates a GuidePrompt.
func NewGuidePrompt() *GuidePrompt {
	return &GuidePrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *GuidePrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("kaizen-guide",
		mcp.WithPromptDescription(
			"Start a continuous improvement loop on a topic and walk "+
				"through the acknowledgment flow that unlocks prompt delivery.",
		),
		mcp.WithArgument("topic",
			mcp.ArgumentDescription("What to improve, e.g. \"optimize the query planner\""),
		),
	)
}

// Handle processes the kaizen-guide prompt request.
func (p *GuidePrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	topic := "the project's weakest area"
	if args := req.Params.Arguments; args != nil {
		if v, ok := args["topic"]; ok && v != "" {
			topic = v
		}
	}

	return &mcp.GetPromptResult{
		Description: fmt.Sprintf("Run an improvement loop on: %s", topic),
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"I want to run a continuous improvement loop on '%s'.\n\n"+
						"Please:\n"+
						"1. Run `kaizen_start_loop` with topic='%s'\n"+
						"2. Immediately run `kaizen_acknowledge` with the loop id the tool returns\n"+
						"3. Run `kaizen_fetch_prompts` and show me the generated improvement prompts\n"+
						"4. Use `kaizen_history` to summarize what the loop has done so far\n\n"+
						"If any tool reports that prompt delivery is blocked, acknowledge the "+
						"loops it names before retrying.",
					topic, topic,
				)),
			},
		},
	}, nil
}
