// Package health aggregates subsystem checks for the health endpoint.
package health

import (
	"context"
	"sync"
)

// Status is one subsystem's result.
type Status struct {
	Name    string `json:"name"`
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

// Checker probes one subsystem. It returns whether the subsystem is
// healthy and an optional human-readable detail.
type Checker func(ctx context.Context) (bool, string)

// Registry runs named checkers on demand. Registration order is the
// report order.
type Registry struct {
	mu    sync.RWMutex
	names []string
	byName map[string]Checker
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Checker)}
}

// Register adds or replaces the checker for name.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; !exists {
		r.names = append(r.names, name)
	}
	r.byName[name] = check
}

// CheckAll runs every checker and reports the overall verdict alongside
// the per-subsystem results. Overall health is the AND of all checks.
func (r *Registry) CheckAll(ctx context.Context) (bool, []Status) {
	r.mu.RLock()
	names := make([]string, len(r.names))
	copy(names, r.names)
	checks := make(map[string]Checker, len(r.byName))
	for name, c := range r.byName {
		checks[name] = c
	}
	r.mu.RUnlock()

	healthy := true
	statuses := make([]Status, 0, len(names))
	for _, name := range names {
		ok, detail := checks[name](ctx)
		if !ok {
			healthy = false
		}
		statuses = append(statuses, Status{Name: name, Healthy: ok, Detail: detail})
	}
	return healthy, statuses
}
