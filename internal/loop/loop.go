// Package loop owns the improvement-loop records and the per-loop
// iteration scheduler.
//
// A Loop is one independent, long-lived improvement process. Records
// are owned exclusively by the Registry; the Scheduler and the stop
// path mutate them only through Registry methods, so the registry
// mutex is the single synchronization point for loop state.
package loop

import "time"

// Status is the lifecycle state of a loop.
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
)

// Loop is one running improvement process. Iteration is non-decreasing
// while running; Interval doubles on iteration failure and is never
// restored to baseline — deliberate throttling of flaky loops.
type Loop struct {
	ID            string        `json:"id"`
	Topic         string        `json:"topic"`
	Status        Status        `json:"status"`
	Iteration     int           `json:"iteration"`
	MaxIterations int           `json:"max_iterations"`
	Interval      time.Duration `json:"interval"`
	AIToAI        bool          `json:"ai_to_ai"`
	StartTime     time.Time     `json:"start_time"`
	LastActivity  time.Time     `json:"last_activity"`
}

// Options configures a new loop. Zero values fall back to the
// orchestrator's configured defaults before reaching the registry.
type Options struct {
	Interval      time.Duration
	MaxIterations int
	AIToAI        bool
}
