// Package orchestrator wires the loop registry, iteration scheduler,
// acknowledgment gate, topic analyzer, and prompt generator behind the
// operations the tool layer exposes.
//
// All external interaction with loop or gate state goes through these
// methods; the tool handlers hold no state of their own.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"kaizen/internal/ack"
	"kaizen/internal/ai"
	"kaizen/internal/collect"
	"kaizen/internal/config"
	"kaizen/internal/loop"
	"kaizen/internal/prompt"
	"kaizen/internal/topic"
)

// maxTopicLength rejects pathological topics before they reach prompts.
const maxTopicLength = 500

// defaultFetchLimit applies when fetch-prompts is called without one.
const defaultFetchLimit = 5

// Orchestrator coordinates the improvement-loop core.
type Orchestrator struct {
	cfg       config.Config
	log       *zap.Logger
	registry  *loop.Registry
	scheduler *loop.Scheduler
	gate      *ack.State
}

// New creates the orchestrator and its owned registry and scheduler.
// The gate state is created by the caller so the monitors can share it.
func New(cfg config.Config, client ai.Client, recorder collect.Recorder, gate *ack.State, log *zap.Logger) *Orchestrator {
	registry := loop.NewRegistry()
	return &Orchestrator{
		cfg:       cfg,
		log:       log,
		registry:  registry,
		scheduler: loop.NewScheduler(registry, client, recorder, log),
		gate:      gate,
	}
}

// StartResult is the outcome of StartLoop.
type StartResult struct {
	Loop loop.Loop
	// Context is the derived topic classification.
	Context topic.Context
}

// StartLoop validates the topic, registers a new loop, arms the
// acknowledgment gate, and launches the iteration runner. The runner
// inherits ctx: cancelling it stops every loop started under it.
func (o *Orchestrator) StartLoop(ctx context.Context, loopTopic string, opts loop.Options) (*StartResult, error) {
	trimmed := strings.TrimSpace(loopTopic)
	if trimmed == "" {
		return nil, fmt.Errorf("topic is required")
	}
	if len(trimmed) > maxTopicLength {
		return nil, fmt.Errorf("topic too long: %d characters (max %d)", len(trimmed), maxTopicLength)
	}

	if opts.Interval <= 0 {
		opts.Interval = o.cfg.DefaultInterval
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = o.cfg.DefaultMaxIterations
	}

	lp := o.registry.Create(trimmed, opts)
	tc := topic.Classify(trimmed)
	o.gate.RegisterLoop(lp.ID, trimmed, tc, ack.LoopConfig{
		Interval:      lp.Interval,
		MaxIterations: lp.MaxIterations,
		AIToAI:        lp.AIToAI,
	})
	o.scheduler.Start(ctx, lp.ID)

	o.log.Info("loop started",
		zap.String("loop_id", lp.ID),
		zap.String("topic", trimmed),
		zap.String("category", string(tc.Category)),
		zap.Duration("interval", lp.Interval),
		zap.Int("max_iterations", lp.MaxIterations))

	return &StartResult{Loop: lp, Context: tc}, nil
}

// StopAll cancels every runner and empties the registry, returning the
// stopped loops. Pending and blocked acknowledgment entries for those
// loops are left in place: they still gate prompt delivery until
// acknowledged.
func (o *Orchestrator) StopAll() []loop.Loop {
	o.scheduler.StopAll()
	stopped := o.registry.Clear()
	o.log.Info("all loops stopped", zap.Int("count", len(stopped)))
	return stopped
}

// ListLoops returns a read-only snapshot of active loops.
func (o *Orchestrator) ListLoops() []loop.Loop {
	return o.registry.List()
}

// Acknowledge processes a confirmation for a loop id. An unknown id is
// recorded but not an error.
func (o *Orchestrator) Acknowledge(loopID, response string) (ack.AckResult, error) {
	if strings.TrimSpace(loopID) == "" {
		return ack.AckResult{}, fmt.Errorf("loop_id is required")
	}
	return o.gate.Acknowledge(loopID, response), nil
}

// FetchResult is the outcome of FetchPrompts: either a prompt list or
// a blocked notice with remediation detail.
type FetchResult struct {
	Blocked      bool
	PendingCount int
	BlockedCount int
	PendingLoops []ack.Record
	Remediation  string
	Prompts      []prompt.Prompt
}

// FetchPrompts returns generated prompts when the gate is open, or a
// blocked result when it is not. The fallback catalogue applies only
// once the gate has already opened — blocking is checked first.
func (o *Orchestrator) FetchPrompts(limit int) FetchResult {
	if limit <= 0 {
		limit = defaultFetchLimit
	}

	if !o.gate.CanDeliverPrompts() {
		pending := o.gate.PendingRecords()
		ids := make([]string, 0, len(pending))
		for _, rec := range pending {
			ids = append(ids, rec.LoopID)
		}
		return FetchResult{
			Blocked:      true,
			PendingCount: len(pending),
			BlockedCount: o.gate.BlockedCount(),
			PendingLoops: pending,
			Remediation: fmt.Sprintf(
				"Prompt delivery is withheld until outstanding loops are acknowledged. "+
					"Call kaizen_acknowledge for: %s.", strings.Join(ids, ", ")),
		}
	}

	contexts := o.gate.AcknowledgedContexts()
	if len(contexts) == 0 {
		return FetchResult{Prompts: prompt.Fallback(limit)}
	}

	var prompts []prompt.Prompt
	for _, tc := range contexts {
		remaining := limit - len(prompts)
		if remaining <= 0 {
			break
		}
		prompts = append(prompts, prompt.Generate(tc, remaining)...)
	}
	return FetchResult{Prompts: prompts}
}

// Gate exposes the acknowledgment state for the resource handler.
func (o *Orchestrator) Gate() *ack.State {
	return o.gate
}
