package supervise

import "sync"

// ExitStatus pairs a PID with its terminal outcome.
type ExitStatus struct {
	PID     int     `json:"pid" yaml:"pid"`
	Outcome Outcome `json:"outcome" yaml:"outcome"`
}

// Registry stores exactly one outcome per PID. The first write wins; later
// writes for the same PID are ignored. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[int]Outcome
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[int]Outcome)}
}

// Record stores outcome for pid and reports whether this was the first write.
func (r *Registry) Record(pid int, outcome Outcome) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[pid]; ok {
		return false
	}
	r.entries[pid] = outcome
	return true
}

// Query returns the recorded outcome for pid.
func (r *Registry) Query(pid int) (Outcome, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.entries[pid]
	return o, ok
}

// All returns a copy of every recorded outcome.
func (r *Registry) All() map[int]Outcome {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[int]Outcome, len(r.entries))
	for pid, o := range r.entries {
		out[pid] = o
	}
	return out
}

// Len reports the number of recorded outcomes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
