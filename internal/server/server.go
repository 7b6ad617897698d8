// Package server wires all MCP components and creates the server instance.
//
// This is the composition root (DIP): it creates concrete implementations
// and injects them into the tools/prompts/resources that depend on
// abstractions. No business logic lives here — only wiring.
package server

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"kaizen/internal/ack"
	"kaizen/internal/ai"
	"kaizen/internal/collect"
	"kaizen/internal/config"
	"kaizen/internal/logging"
	"kaizen/internal/orchestrator"
	"kaizen/internal/prompts"
	"kaizen/internal/resources"
	"kaizen/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// Loop runners and the background monitors inherit ctx: cancelling it
// stops them. The returned cleanup function flushes the logger and
// closes the interaction store; it is always non-nil and must be
// called on shutdown (typically via defer).
func New(ctx context.Context) (*server.MCPServer, func(), error) {
	// --- Create shared dependencies ---

	cfg, err := config.Load()
	if err != nil {
		return nil, noop, fmt.Errorf("loading config: %w", err)
	}

	log, err := logging.New(cfg.DataDir, cfg.LogLevel)
	if err != nil {
		return nil, noop, fmt.Errorf("creating logger: %w", err)
	}

	client, err := ai.New(cfg)
	if err != nil {
		log.Error("ai client init failed", zap.Error(err))
		_ = log.Sync()
		return nil, noop, fmt.Errorf("creating AI client: %w", err)
	}

	store, err := collect.New(cfg.DataDir)
	if err != nil {
		log.Error("interaction store init failed", zap.Error(err))
		_ = log.Sync()
		return nil, noop, fmt.Errorf("opening interaction store: %w", err)
	}

	cleanup := func() {
		if err := store.Close(); err != nil {
			log.Warn("interaction store close", zap.Error(err))
		}
		_ = log.Sync()
	}

	gate := ack.NewState(ack.Config{
		PendingTimeout: cfg.PendingTimeout,
		StaleTimeout:   cfg.StaleTimeout,
	}, log)

	orch := orchestrator.New(cfg, client, store, gate, log)

	// The monitors escalate overdue acknowledgments and enforce
	// staleness for the server's whole lifetime.
	monitors := ack.NewMonitors(gate, cfg.PendingMonitorPeriod, cfg.StaleMonitorPeriod, log)
	monitors.Start(ctx)

	// --- Create the MCP server ---

	s := server.NewMCPServer(
		"kaizen",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register loop tools ---

	startTool := tools.NewStartLoopTool(orch, ctx)
	s.AddTool(startTool.Definition(), startTool.Handle)

	stopTool := tools.NewStopLoopsTool(orch)
	s.AddTool(stopTool.Definition(), stopTool.Handle)

	listTool := tools.NewListLoopsTool(orch)
	s.AddTool(listTool.Definition(), listTool.Handle)

	ackTool := tools.NewAcknowledgeTool(orch)
	s.AddTool(ackTool.Definition(), ackTool.Handle)

	fetchTool := tools.NewFetchPromptsTool(orch)
	s.AddTool(fetchTool.Definition(), fetchTool.Handle)

	historyTool := tools.NewHistoryTool(orch, store)
	s.AddTool(historyTool.Definition(), historyTool.Handle)

	// --- Register prompts ---

	guidePrompt := prompts.NewGuidePrompt()
	s.AddPrompt(guidePrompt.Definition(), guidePrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(orch)
	s.AddResource(resourceHandler.StatusResource(), resourceHandler.HandleStatus)

	log.Info("server configured",
		zap.String("version", Version),
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model))

	return s, cleanup, nil
}

// noop is the default cleanup when initialization fails early.
func noop() {}

// serverInstructions returns the system instructions that tell the AI
// how to use the improvement loop server effectively.
func serverInstructions() string {
	return `You have access to Kaizen, a continuous improvement loop MCP server.

## What Kaizen Does
Kaizen runs background improvement loops: each loop iterates on a topic
at a fixed interval, asks the configured AI provider for improvement
suggestions, and records every iteration. Generated improvement prompts
are delivered on demand — but only after every started loop has been
acknowledged.

## The Acknowledgment Gate
This is the core discipline of the server:
- Starting a loop creates a PENDING acknowledgment for it
- While ANY loop is pending or blocked, kaizen_fetch_prompts delivers nothing
- Acknowledge each loop with kaizen_acknowledge(loop_id) to reopen delivery
- Pending loops that wait too long are escalated to BLOCKED — they still
  clear on acknowledgment, but never expire on their own
- Long silence after starting loops forces strict mode until you acknowledge

ALWAYS acknowledge a loop right after starting it unless the user
explicitly wants delivery held back.

## Tools
- kaizen_start_loop: start a loop on a topic (interval, iteration cap,
  and AI-to-AI phrasing are optional)
- kaizen_acknowledge: confirm a loop by id — required for delivery
- kaizen_fetch_prompts: fetch generated improvement prompts
- kaizen_list_loops: see active loops, progress, and acknowledgment state
- kaizen_stop_loops: stop all loops (unacknowledged ones keep blocking)
- kaizen_history: recent iterations and acknowledgments

## Resources
- kaizen://status: JSON snapshot of loops and gate state

## Typical Flow
1. kaizen_start_loop with a concrete topic ("optimize the query planner",
   not "make it better")
2. kaizen_acknowledge with the returned loop id
3. kaizen_fetch_prompts to collect improvement prompts
4. Apply the prompts, then kaizen_history to review what the loop did

## Important Rules
- Topics should be specific and actionable
- A failed iteration doubles that loop's interval — check kaizen_history
  if a loop seems slow
- Loops stop on their own at their iteration cap
- If kaizen_fetch_prompts reports blocked delivery, acknowledge the loops
  it names and retry`
}
