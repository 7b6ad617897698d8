package loop

import (
	"fmt"
	"sync"
	"time"
)

// Registry is the keyed store of active loops. It assigns monotonically
// increasing ids and is the only writer of loop records.
type Registry struct {
	mu     sync.Mutex
	loops  map[string]*Loop
	order  []string
	nextID int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{loops: make(map[string]*Loop)}
}

// Create inserts a new running loop and returns a copy of its record.
// Option defaults are the caller's responsibility; the registry only
// assigns identity and lifecycle fields.
func (r *Registry) Create(topic string, opts Options) Loop {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	now := timeNow()
	lp := &Loop{
		ID:            fmt.Sprintf("loop-%d", r.nextID),
		Topic:         topic,
		Status:        StatusRunning,
		Iteration:     0,
		MaxIterations: opts.MaxIterations,
		Interval:      opts.Interval,
		AIToAI:        opts.AIToAI,
		StartTime:     now,
		LastActivity:  now,
	}
	r.loops[lp.ID] = lp
	r.order = append(r.order, lp.ID)
	return *lp
}

// Get returns a copy of the loop record.
func (r *Registry) Get(id string) (Loop, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lp, ok := r.loops[id]
	if !ok {
		return Loop{}, false
	}
	return *lp, true
}

// BeginIteration increments the iteration counter and refreshes
// LastActivity, returning the updated snapshot. The counter moves at
// attempt start — a failed attempt still counts.
func (r *Registry) BeginIteration(id string) (Loop, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lp, ok := r.loops[id]
	if !ok || lp.Status != StatusRunning {
		return Loop{}, false
	}
	lp.Iteration++
	lp.LastActivity = timeNow()
	return *lp, true
}

// DoubleInterval doubles the loop's effective interval after a failed
// iteration and returns the new value. The baseline is never restored.
func (r *Registry) DoubleInterval(id string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	lp, ok := r.loops[id]
	if !ok {
		return 0, false
	}
	lp.Interval *= 2
	return lp.Interval, true
}

// Remove deletes a loop record. Called by the scheduler on terminal
// transitions (cap reached or cancelled).
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remove(id)
}

// remove deletes id from both the map and the order slice.
// Caller holds the lock.
func (r *Registry) remove(id string) {
	if _, ok := r.loops[id]; !ok {
		return
	}
	delete(r.loops, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// List returns copies of all loops in creation order.
func (r *Registry) List() []Loop {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Loop, 0, len(r.loops))
	for _, id := range r.order {
		if lp, ok := r.loops[id]; ok {
			out = append(out, *lp)
		}
	}
	return out
}

// Len returns the number of active loops.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.loops)
}

// Clear marks every loop stopped, empties the registry, and returns
// the stopped records. Acknowledgment state for those loops is
// deliberately untouched — outstanding loops must still be
// acknowledged even after a mass stop.
func (r *Registry) Clear() []Loop {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Loop, 0, len(r.loops))
	for _, id := range r.order {
		lp := r.loops[id]
		lp.Status = StatusStopped
		out = append(out, *lp)
	}
	r.loops = make(map[string]*Loop)
	r.order = nil
	return out
}
