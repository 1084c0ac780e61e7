package collab

import (
	"fmt"
	"sort"
	"sync"
)

// Registry holds the set of participants available to sessions. It is
// read-mostly: registration happens at startup, while concurrent sessions
// only read entries and bump load counters.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*LLMParticipant
}

// NewRegistry creates an empty participant registry
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]*LLMParticipant),
	}
}

// Register adds a participant to the registry
func (r *Registry) Register(p *LLMParticipant) error {
	if p == nil {
		return fmt.Errorf("participant cannot be nil")
	}
	if p.ID == "" {
		return fmt.Errorf("participant ID is required")
	}
	if p.Provider == "" {
		return fmt.Errorf("participant %s: provider is required", p.ID)
	}
	if p.Model == "" {
		return fmt.Errorf("participant %s: model is required", p.ID)
	}
	if p.Role == "" {
		p.Role = RoleGeneralist
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.participants[p.ID]; exists {
		return fmt.Errorf("participant %s already registered", p.ID)
	}
	r.participants[p.ID] = p

	return nil
}

// Get returns a participant by ID, or nil if not registered
func (r *Registry) Get(id string) *LLMParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.participants[id]
}

// Exists reports whether a participant is registered
func (r *Registry) Exists(id string) bool {
	return r.Get(id) != nil
}

// Count returns the number of registered participants
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.participants)
}

// List returns all registered participants in stable ID order
func (r *Registry) List() []*LLMParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*LLMParticipant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// ListActive returns active participants ordered by ascending current
// load, breaking ties by ID. This is the load-balancing order used by
// participant selection.
func (r *Registry) ListActive() []*LLMParticipant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*LLMParticipant, 0, len(r.participants))
	for _, p := range r.participants {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		li, lj := out[i].Load(), out[j].Load()
		if li != lj {
			return li < lj
		}
		return out[i].ID < out[j].ID
	})

	return out
}

// Deactivate marks a participant inactive so it is skipped by selection.
// In-flight calls are unaffected.
func (r *Registry) Deactivate(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return fmt.Errorf("participant %s not registered", id)
	}
	p.Active = false

	return nil
}
