// Package registry maps tracker ids to the live instances rendered by one client.
package registry

import (
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Instance is a live tracker owned by the registry
type Instance interface {
	ID() string
	Title() string
	// Dispose releases listeners and the window. It must be safe to call twice.
	Dispose()
}

// Registry is the per-session set of live trackers. Create one at session
// start and Clear it at session end.
type Registry[T Instance] struct {
	mu        sync.RWMutex
	instances map[string]T
}

// New creates an empty registry
func New[T Instance]() *Registry[T] {
	return &Registry[T]{instances: make(map[string]T)}
}

// Open returns the instance registered under id, building and registering one
// when none exists. created reports whether build ran.
func (r *Registry[T]) Open(id string, build func() (T, error)) (inst T, created bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.instances[id]; ok {
		return existing, false, nil
	}
	inst, err = build()
	if err != nil {
		var zero T
		return zero, false, err
	}
	r.instances[id] = inst
	log.Debug().Str("tracker_id", id).Int("live", len(r.instances)).Msg("tracker registered")
	return inst, true, nil
}

// Get looks up an instance by exact id
func (r *Registry[T]) Get(id string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	return inst, ok
}

// Close disposes and removes the instance under id. It reports whether one existed.
func (r *Registry[T]) Close(id string) bool {
	r.mu.Lock()
	inst, ok := r.instances[id]
	delete(r.instances, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	inst.Dispose()
	log.Debug().Str("tracker_id", id).Msg("tracker deregistered")
	return true
}

// FindByTitle returns the first live instance, in id order, with the given title
func (r *Registry[T]) FindByTitle(title string) (T, bool) {
	for _, inst := range r.All() {
		if inst.Title() == title {
			return inst, true
		}
	}
	var zero T
	return zero, false
}

// All returns a snapshot of the live instances ordered by id
func (r *Registry[T]) All() []T {
	r.mu.RLock()
	out := make([]T, 0, len(r.instances))
	for _, inst := range r.instances {
		out = append(out, inst)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Clear disposes every instance
func (r *Registry[T]) Clear() {
	r.mu.Lock()
	old := r.instances
	r.instances = make(map[string]T)
	r.mu.Unlock()

	for _, inst := range old {
		inst.Dispose()
	}
	if len(old) > 0 {
		log.Info().Int("disposed", len(old)).Msg("tracker registry cleared")
	}
}
