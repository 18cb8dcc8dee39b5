package etl

import (
	"fmt"
	"sort"
	"sync"
)

// Registration pairs a source adapter with the transformer that
// normalizes its records.
type Registration struct {
	Source      Source
	Transformer Transformer
}

// Registry maps source names to their adapter/transformer pair. Pairs are
// registered at startup and resolved once per run.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Registration
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Registration)}
}

func (r *Registry) Register(name string, src Source, tr Transformer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[name] = Registration{Source: src, Transformer: tr}
}

// Resolve looks up the pair for a source name. A missing registration is
// a fatal configuration error.
func (r *Registry) Resolve(name string) (Registration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.entries[name]
	if !ok {
		return Registration{}, fmt.Errorf("%w: %s", ErrSourceNotRegistered, name)
	}
	return reg, nil
}

// Names returns the registered source names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
