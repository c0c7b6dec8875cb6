package rotation

import "sync"

// state is the per-provider cursor for round-robin and the counters for
// smooth weighted round robin.
type state struct {
	index    int
	counters []int
}

// StateRegistry holds rotation state keyed by provider id. It lives only as
// long as the process; lastUsed timestamps are the only persisted part.
type StateRegistry struct {
	mu     sync.Mutex
	states map[string]*state
}

// NewStateRegistry returns an empty registry.
func NewStateRegistry() *StateRegistry {
	return &StateRegistry{states: make(map[string]*state)}
}

// with runs fn with the state for providerID while holding the lock.
func (r *StateRegistry) with(providerID string, fn func(*state)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.states[providerID]
	if !ok {
		s = &state{}
		r.states[providerID] = s
	}
	fn(s)
}

// Reset drops the state of one provider.
func (r *StateRegistry) Reset(providerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.states, providerID)
}

// ResetAll drops every provider's state.
func (r *StateRegistry) ResetAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.states)
}
