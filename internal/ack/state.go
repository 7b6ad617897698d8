// Package ack implements the acknowledgment gate.
//
// The gate withholds newly generated prompts until the caller confirms
// receipt of prior output. Its state is an explicit object owned by the
// orchestrator and injected where needed — never a package-level
// singleton. All mutation goes through State's methods under one mutex;
// the two background monitors (monitors.go) only ever call those
// methods.
package ack

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"kaizen/internal/topic"
)

// RecordStatus is the per-loop acknowledgment state.
type RecordStatus string

const (
	StatusWaiting      RecordStatus = "waiting"
	StatusAcknowledged RecordStatus = "acknowledged"
)

// LoopConfig is the loop configuration snapshot captured when the
// acknowledgment record is created.
type LoopConfig struct {
	Interval      time.Duration `json:"interval"`
	MaxIterations int           `json:"max_iterations"`
	AIToAI        bool          `json:"ai_to_ai"`
}

// Record tracks one loop awaiting confirmation. A loop id appears in at
// most one waiting record.
type Record struct {
	LoopID    string       `json:"loop_id"`
	Timestamp time.Time    `json:"timestamp"`
	Topic     string       `json:"topic"`
	Status    RecordStatus `json:"status"`
	Context   LoopConfig   `json:"context"`
}

// HistoryEntry is one processed acknowledgment call.
type HistoryEntry struct {
	LoopID   string    `json:"loop_id"`
	Topic    string    `json:"topic,omitempty"`
	Response string    `json:"response"`
	Known    bool      `json:"known"`
	At       time.Time `json:"at"`
}

// maxHistory bounds the acknowledgment history ring.
const maxHistory = 50

// maxAcknowledgedTopics bounds the acknowledged-topic map; oldest
// entries are evicted first.
const maxAcknowledgedTopics = 50

// Config carries the gate timings. Production values come from the
// process config (30s pending, 60s staleness); tests shorten them.
type Config struct {
	// PendingTimeout is both the per-loop escalation age and the
	// delivery-freshness window of CanDeliverPrompts.
	PendingTimeout time.Duration
	// StaleTimeout is the global window after which a missing
	// acknowledgment forces strict mode.
	StaleTimeout time.Duration
}

// State is the process-lifetime acknowledgment state.
type State struct {
	mu sync.Mutex

	cfg Config
	log *zap.Logger

	pending       map[string]*Record
	blocked       map[string]struct{}
	acknowledged  map[string]string // loop id -> last response detail
	ackOrder      []string          // eviction order for acknowledged
	topicContexts map[string]topic.Context

	strictMode  bool
	ackRequired bool
	lastAckTime time.Time

	history []HistoryEntry
}

// NewState creates an empty gate state.
func NewState(cfg Config, log *zap.Logger) *State {
	return &State{
		cfg:           cfg,
		log:           log,
		pending:       make(map[string]*Record),
		blocked:       make(map[string]struct{}),
		acknowledged:  make(map[string]string),
		topicContexts: make(map[string]topic.Context),
		lastAckTime:   timeNow(),
	}
}

// RegisterLoop creates the waiting record and topic context for a new
// loop and arms the gate. Called by the orchestrator on loop start.
func (s *State) RegisterLoop(loopID, loopTopic string, tc topic.Context, snapshot LoopConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending[loopID] = &Record{
		LoopID:    loopID,
		Timestamp: timeNow(),
		Topic:     loopTopic,
		Status:    StatusWaiting,
		Context:   snapshot,
	}
	s.topicContexts[loopID] = tc
	s.ackRequired = true
	s.strictMode = true

	s.log.Info("acknowledgment required",
		zap.String("loop_id", loopID),
		zap.String("topic", loopTopic))
}

// AckResult reports what an Acknowledge call did.
type AckResult struct {
	// Known is true when a waiting record existed for the loop id.
	Known bool
	// Topic is the acknowledged loop's topic (empty when unknown).
	Topic string
	// GateOpen is true when the gate ended the call fully cleared.
	GateOpen bool
}

// Acknowledge processes a confirmation for loopID. A waiting record
// moves to acknowledged and is removed; an unknown id records the
// response without any transition — deliberately not an error.
// Either way, when both the pending and blocked sets end up empty the
// required/strict flags are cleared.
func (s *State) Acknowledge(loopID, response string) AckResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timeNow()
	result := AckResult{}

	if rec, ok := s.pending[loopID]; ok {
		result.Known = true
		result.Topic = rec.Topic

		s.rememberAcknowledged(loopID, summarize(rec.Topic, response))
		delete(s.pending, loopID)
		delete(s.blocked, loopID)
		s.lastAckTime = now

		s.log.Info("loop acknowledged",
			zap.String("loop_id", loopID),
			zap.String("topic", rec.Topic))
	} else {
		s.log.Info("acknowledgment for unknown loop recorded",
			zap.String("loop_id", loopID))
	}

	s.history = append(s.history, HistoryEntry{
		LoopID:   loopID,
		Topic:    result.Topic,
		Response: response,
		Known:    result.Known,
		At:       now,
	})
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}

	if len(s.pending) == 0 && len(s.blocked) == 0 {
		s.ackRequired = false
		s.strictMode = false
		result.GateOpen = true
	}
	return result
}

// rememberAcknowledged stores the latest detail per loop id, evicting
// the oldest entry beyond maxAcknowledgedTopics. Caller holds the lock.
func (s *State) rememberAcknowledged(loopID, detail string) {
	if _, exists := s.acknowledged[loopID]; !exists {
		s.ackOrder = append(s.ackOrder, loopID)
		if len(s.ackOrder) > maxAcknowledgedTopics {
			oldest := s.ackOrder[0]
			s.ackOrder = s.ackOrder[1:]
			delete(s.acknowledged, oldest)
			delete(s.topicContexts, oldest)
		}
	}
	s.acknowledged[loopID] = detail
}

// CanDeliverPrompts reports whether generated prompts may be released.
// Delivery is withheld when any acknowledgment is pending, or when
// strict mode is armed and no acknowledgment has landed within the
// freshness window.
func (s *State) CanDeliverPrompts() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) > 0 {
		return false
	}
	if s.strictMode && s.ackRequired && timeNow().Sub(s.lastAckTime) > s.cfg.PendingTimeout {
		return false
	}
	return true
}

// escalateOverdue moves every waiting record older than PendingTimeout
// into the blocked set. Idempotent; entries leave the set only through
// acknowledgment. Called by the pending monitor.
func (s *State) escalateOverdue() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := timeNow()
	for loopID, rec := range s.pending {
		if now.Sub(rec.Timestamp) <= s.cfg.PendingTimeout {
			continue
		}
		if _, already := s.blocked[loopID]; already {
			continue
		}
		s.blocked[loopID] = struct{}{}
		s.log.Warn("loop escalated to blocked: acknowledgment overdue",
			zap.String("loop_id", loopID),
			zap.String("topic", rec.Topic),
			zap.Duration("pending_for", now.Sub(rec.Timestamp)))
	}
}

// enforceStaleness force-sets strict mode when acknowledgments are
// required and none has landed within StaleTimeout. Idempotent.
// Called by the staleness monitor.
func (s *State) enforceStaleness() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ackRequired {
		return
	}
	if timeNow().Sub(s.lastAckTime) <= s.cfg.StaleTimeout {
		return
	}
	if !s.strictMode {
		s.log.Warn("strict mode forced: acknowledgments stale",
			zap.Duration("since_last_ack", timeNow().Sub(s.lastAckTime)))
	}
	s.strictMode = true
}

// --- Read-only snapshots ---

// PendingCount returns the number of waiting records.
func (s *State) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// BlockedCount returns the number of escalated loop ids.
func (s *State) BlockedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blocked)
}

// PendingRecords returns a copy of the waiting records.
func (s *State) PendingRecords() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, 0, len(s.pending))
	for _, rec := range s.pending {
		out = append(out, *rec)
	}
	return out
}

// PendingRecord returns the waiting record for a loop id, if any.
func (s *State) PendingRecord(loopID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.pending[loopID]
	if !ok {
		return Record{}, false
	}
	return *rec, true
}

// IsBlocked reports whether a loop id has been escalated.
func (s *State) IsBlocked(loopID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.blocked[loopID]
	return ok
}

// StrictMode reports the strict-mode flag.
func (s *State) StrictMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strictMode
}

// AcknowledgedContexts returns the topic contexts of acknowledged loops
// in acknowledgment order. This is the prompt generator's input set.
func (s *State) AcknowledgedContexts() []topic.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]topic.Context, 0, len(s.ackOrder))
	for _, loopID := range s.ackOrder {
		if tc, ok := s.topicContexts[loopID]; ok {
			out = append(out, tc)
		}
	}
	return out
}

// History returns a copy of the acknowledgment history ring, newest last.
func (s *State) History() []HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]HistoryEntry, len(s.history))
	copy(out, s.history)
	return out
}

// summarize builds the acknowledged-topic detail line.
func summarize(loopTopic, response string) string {
	if response == "" {
		return loopTopic
	}
	return loopTopic + ": " + response
}
