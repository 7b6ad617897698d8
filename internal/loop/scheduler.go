package loop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"kaizen/internal/ai"
	"kaizen/internal/collect"
)

// Scheduler drives one independent runner per loop. Each runner is a
// goroutine owning its loop's timing: it performs an iteration, sleeps
// the loop's current interval (doubled after failures), and repeats
// until the iteration cap is reached or the loop is cancelled.
//
// Stop is an explicit context cancellation: it aborts the in-flight AI
// request and the current sleep rather than waiting for the next tick.
type Scheduler struct {
	registry *Registry
	client   ai.Client
	recorder collect.Recorder
	log      *zap.Logger

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// NewScheduler creates a scheduler over the given registry and
// collaborators.
func NewScheduler(registry *Registry, client ai.Client, recorder collect.Recorder, log *zap.Logger) *Scheduler {
	return &Scheduler{
		registry: registry,
		client:   client,
		recorder: recorder,
		log:      log,
		cancels:  make(map[string]context.CancelFunc),
	}
}

// Start launches the runner for an already-registered loop. The runner
// lives until ctx is cancelled, StopAll is called, or the loop reaches
// its iteration cap.
func (s *Scheduler) Start(ctx context.Context, loopID string) {
	runCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancels[loopID] = cancel
	s.mu.Unlock()

	go s.run(runCtx, loopID)
}

// StopAll cancels every runner. Loop records are cleared by the
// orchestrator via the registry; this only tears down the goroutines.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for loopID, cancel := range s.cancels {
		cancel()
		delete(s.cancels, loopID)
	}
}

// run is the per-loop iteration chain.
func (s *Scheduler) run(ctx context.Context, loopID string) {
	defer func() {
		s.registry.Remove(loopID)
		s.mu.Lock()
		delete(s.cancels, loopID)
		s.mu.Unlock()
	}()

	for {
		lp, ok := s.registry.Get(loopID)
		if !ok || lp.Status != StatusRunning {
			return
		}
		if ctx.Err() != nil {
			s.log.Info("loop cancelled",
				zap.String("loop_id", loopID),
				zap.Int("iterations", lp.Iteration))
			return
		}
		if lp.Iteration >= lp.MaxIterations {
			s.log.Info("loop reached iteration cap",
				zap.String("loop_id", loopID),
				zap.String("topic", lp.Topic),
				zap.Int("iterations", lp.Iteration))
			return
		}

		lp, ok = s.registry.BeginIteration(loopID)
		if !ok {
			return
		}

		delay := s.iterate(ctx, lp)
		if ctx.Err() != nil {
			return
		}

		select {
		case <-ctx.Done():
		case <-time.After(delay):
		}
	}
}

// iterate performs one AI request plus bookkeeping and returns the
// delay before the next attempt: the loop's interval on success, the
// doubled interval on failure.
func (s *Scheduler) iterate(ctx context.Context, lp Loop) time.Duration {
	resp, err := s.client.Request(ctx, iterationPrompt(lp), ai.Options{})
	if err != nil {
		// A cancelled request means the loop is being stopped: the
		// runner exits without recording an outcome or backing off.
		if ctx.Err() != nil {
			return lp.Interval
		}
		doubled, _ := s.registry.DoubleInterval(lp.ID)
		if doubled == 0 {
			doubled = 2 * lp.Interval
		}
		s.log.Warn("iteration failed, backing off",
			zap.String("loop_id", lp.ID),
			zap.Int("iteration", lp.Iteration),
			zap.Duration("next_delay", doubled),
			zap.Error(err))
		s.record(collect.Interaction{
			LoopID:    lp.ID,
			Topic:     lp.Topic,
			Iteration: lp.Iteration,
			Success:   false,
			Error:     err.Error(),
		})
		return doubled
	}

	s.log.Debug("iteration completed",
		zap.String("loop_id", lp.ID),
		zap.Int("iteration", lp.Iteration),
		zap.Duration("response_time", resp.ResponseTime))
	s.record(collect.Interaction{
		LoopID:       lp.ID,
		Topic:        lp.Topic,
		Iteration:    lp.Iteration,
		Success:      true,
		Content:      resp.Content,
		Model:        resp.Model,
		Provider:     resp.Provider,
		ResponseTime: resp.ResponseTime,
	})
	return lp.Interval
}

// record forwards an interaction to the data-collection sink.
// Sink failures are logged and swallowed — they never disturb
// scheduling.
func (s *Scheduler) record(in collect.Interaction) {
	if err := s.recorder.Record(in); err != nil {
		s.log.Warn("interaction record failed",
			zap.String("loop_id", in.LoopID),
			zap.Int("iteration", in.Iteration),
			zap.Error(err))
	}
}

// iterationPrompt builds the per-iteration request embedding the topic
// and iteration number.
func iterationPrompt(lp Loop) string {
	base := fmt.Sprintf(
		"Continuous improvement loop on %q, iteration %d of %d. "+
			"Provide one concrete, actionable improvement suggestion. "+
			"Build on earlier iterations instead of repeating them.",
		lp.Topic, lp.Iteration, lp.MaxIterations)
	if lp.AIToAI {
		return base + " Address the suggestion to another AI agent that will apply it directly."
	}
	return base
}
