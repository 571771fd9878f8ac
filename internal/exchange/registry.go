// Package exchange provides venue clients implementing the
// domain.ExchangeAdapter capability interface and a registry to resolve them
// by name.
package exchange

import (
	"fmt"
	"sort"
	"sync"

	"github.com/alanyoungcy/sentinel/internal/domain"
)

// Registry maps exchange identifiers to adapter instances.
type Registry struct {
	adapters map[string]domain.ExchangeAdapter
	mu       sync.RWMutex
}

// NewRegistry returns an empty registry. Call Register to add adapters.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]domain.ExchangeAdapter)}
}

// Register adds an adapter under its own Name().
func (r *Registry) Register(a domain.ExchangeAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Name()] = a
}

// Get resolves an adapter by name. Unknown names fail with
// domain.ErrAdapterNotFound.
func (r *Registry) Get(name string) (domain.ExchangeAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("exchange %q: %w", name, domain.ErrAdapterNotFound)
	}
	return a, nil
}

// Names returns all registered adapter names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// All returns the registered adapters in name order.
func (r *Registry) All() []domain.ExchangeAdapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for n := range r.adapters {
		names = append(names, n)
	}
	sort.Strings(names)
	out := make([]domain.ExchangeAdapter, 0, len(names))
	for _, n := range names {
		out = append(out, r.adapters[n])
	}
	return out
}
