package source

import (
	"fmt"
	"sync"
)

// Handle binds a descriptor to its live provider and pacing state.
type Handle struct {
	Descriptor *Descriptor
	Provider   Provider
	limiter    *pacer
}

// ListFilter selects sources by adult classification.
// Mixed sources always pass; adult-only sources pass when IncludeAdult or
// AdultOnly is set; safe-only sources pass unless AdultOnly is set.
type ListFilter struct {
	IncludeAdult bool
	AdultOnly    bool
}

func (f ListFilter) matches(rating AdultRating) bool {
	switch rating {
	case Mixed:
		return true
	case AdultOnly:
		return f.IncludeAdult || f.AdultOnly
	default:
		return !f.AdultOnly
	}
}

// Registry owns every source handle for the lifetime of the process.
// Registration happens at startup; only the Enabled flag mutates afterwards.
type Registry struct {
	mu      sync.RWMutex
	handles map[string]*Handle
	order   []string // registration order, keeps fan-out deterministic
}

func NewRegistry() *Registry {
	return &Registry{handles: make(map[string]*Handle)}
}

// Register adds a source. The descriptor is copied; the registry owns it.
func (r *Registry) Register(d Descriptor, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handles[d.ID]; ok {
		return fmt.Errorf("%s: %w", d.ID, ErrDuplicateSource)
	}

	desc := d
	r.handles[d.ID] = &Handle{
		Descriptor: &desc,
		Provider:   p,
		limiter:    newPacer(d.RateLimit),
	}
	r.order = append(r.order, d.ID)
	return nil
}

// Resolve returns the handle for id regardless of the enabled flag, so
// explicit single-source requests (direct links) keep working after a
// source is hidden from fan-outs.
func (r *Registry) Resolve(id string) (*Handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handles[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownSource)
	}
	return h, nil
}

// SetEnabled toggles a source's participation in fan-out target sets.
func (r *Registry) SetEnabled(id string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.handles[id]
	if !ok {
		return fmt.Errorf("%s: %w", id, ErrUnknownSource)
	}
	h.Descriptor.Enabled = enabled
	return nil
}

// List returns descriptor copies for every source matching the filter,
// in registration order.
func (r *Registry) List(f ListFilter) []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		d := r.handles[id].Descriptor
		if f.matches(d.Adult) {
			out = append(out, *d)
		}
	}
	return out
}

// Enabled returns the handles eligible for fan-out under the filter,
// in registration order.
func (r *Registry) Enabled(f ListFilter) []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Handle, 0, len(r.order))
	for _, id := range r.order {
		h := r.handles[id]
		if h.Descriptor.Enabled && f.matches(h.Descriptor.Adult) {
			out = append(out, h)
		}
	}
	return out
}

// All returns every handle in registration order.
func (r *Registry) All() []*Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Handle, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.handles[id])
	}
	return out
}
