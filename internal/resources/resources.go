// Package resources implements MCP resource handlers for the
// improvement loop server.
//
// Resources provide read-only data that the host can consume for
// context. They use URI-based addressing (kaizen://...) following MCP
// conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"kaizen/internal/orchestrator"
)

// Handler manages the server's resource endpoints.
type Handler struct {
	orch *orchestrator.Orchestrator
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{orch: orch}
}

// loopStatus is one loop's entry in the status document.
type loopStatus struct {
	ID            string    `json:"id"`
	Topic         string    `json:"topic"`
	Status        string    `json:"status"`
	Iteration     int       `json:"iteration"`
	MaxIterations int       `json:"max_iterations"`
	IntervalSec   float64   `json:"interval_seconds"`
	StartTime     time.Time `json:"start_time"`
	LastActivity  time.Time `json:"last_activity"`
	Acknowledged  bool      `json:"acknowledged"`
}

// status is the kaizen://status document.
type status struct {
	Loops             []loopStatus `json:"loops"`
	PendingCount      int          `json:"pending_count"`
	BlockedCount      int          `json:"blocked_count"`
	StrictMode        bool         `json:"strict_mode"`
	CanDeliverPrompts bool         `json:"can_deliver_prompts"`
}

// StatusResource returns the MCP resource definition for loop status.
func (h *Handler) StatusResource() mcp.Resource {
	return mcp.NewResource(
		"kaizen://status",
		"Improvement Loop Status",
		mcp.WithResourceDescription("Active loops, acknowledgment gate state, and prompt delivery availability"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleStatus returns the current loop and gate state as JSON.
func (h *Handler) HandleStatus(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	gate := h.orch.Gate()

	doc := status{
		Loops:             []loopStatus{},
		PendingCount:      gate.PendingCount(),
		BlockedCount:      gate.BlockedCount(),
		StrictMode:        gate.StrictMode(),
		CanDeliverPrompts: gate.CanDeliverPrompts(),
	}
	for _, lp := range h.orch.ListLoops() {
		_, pending := gate.PendingRecord(lp.ID)
		doc.Loops = append(doc.Loops, loopStatus{
			ID:            lp.ID,
			Topic:         lp.Topic,
			Status:        string(lp.Status),
			Iteration:     lp.Iteration,
			MaxIterations: lp.MaxIterations,
			IntervalSec:   lp.Interval.Seconds(),
			StartTime:     lp.StartTime,
			LastActivity:  lp.LastActivity,
			Acknowledged:  !pending && !gate.IsBlocked(lp.ID),
		})
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling status: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
