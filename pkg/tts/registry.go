package tts

import (
	"sort"
	"sync"
)

// Registry maps provider identifiers to configured Provider instances and
// holds the precomputed fallback chains. Absence of a key means "not
// configured", checked once at startup rather than during the hot path.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	chains    map[string][]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		chains:    make(map[string][]string),
	}
}

// Register adds a provider under its own ID.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

// Get returns the provider with the given ID, if configured.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

// IDs returns all configured provider IDs, sorted.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.providers))
	for id := range r.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// SetChains precomputes the per-primary fallback chains from raw
// configuration. Each chain is sanitised once here: the primary itself is
// removed (no cycles), duplicates collapse to their first occurrence and
// unconfigured providers are dropped.
func (r *Registry) SetChains(raw map[string][]string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.chains = make(map[string][]string, len(raw))
	for primary, entries := range raw {
		seen := map[string]bool{primary: true}
		chain := make([]string, 0, len(entries))
		for _, id := range entries {
			if seen[id] {
				continue
			}
			seen[id] = true
			if _, ok := r.providers[id]; !ok {
				continue
			}
			chain = append(chain, id)
		}
		r.chains[primary] = chain
	}
}

// Chain returns the precomputed fallback chain for a primary provider.
// The returned slice must not be modified.
func (r *Registry) Chain(primary string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chains[primary]
}
