// Package tools implements the MCP tool handlers for the improvement
// loop server.
//
// Each tool is a thin adapter: it parses and validates arguments,
// delegates to the orchestrator, and formats the result as markdown.
// All loop and gate state lives behind the orchestrator.
//
// Design principles:
// - SRP: each file = one tool
// - DIP: tools depend on the orchestrator and stores, not on loop internals
// - OCP: new tools are added without modifying existing ones
package tools

import (
	"fmt"
	"time"
)

// formatDuration renders durations the way humans read them in tool
// output: whole seconds below a minute, minutes and seconds above.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	m := int(d.Minutes())
	s := int(d.Seconds()) - m*60
	if s == 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%dm%ds", m, s)
}

// formatTimestamp renders absolute times in tool output.
func formatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}
