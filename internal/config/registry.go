package config

import (
	"sync"
)

// Registry is the shared view of the strategy map. The engine reads it every
// scoring cycle while the feedback loop rewrites thresholds, so access goes
// through a lock and snapshots.
type Registry struct {
	mu         sync.RWMutex
	path       string
	strategies map[string]Strategy
}

// NewRegistry loads the strategy file into a registry bound to that path.
func NewRegistry(path string) (*Registry, error) {
	strategies, err := LoadStrategies(path)
	if err != nil {
		return nil, err
	}
	return &Registry{path: path, strategies: strategies}, nil
}

// NewRegistryFromMap builds an unbound registry, mainly for tests.
func NewRegistryFromMap(strategies map[string]Strategy) *Registry {
	copied := make(map[string]Strategy, len(strategies))
	for name, s := range strategies {
		s.Name = name
		copied[name] = s
	}
	return &Registry{strategies: copied}
}

// All returns a copy of the strategy map.
func (r *Registry) All() map[string]Strategy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Strategy, len(r.strategies))
	for name, s := range r.strategies {
		out[name] = s
	}
	return out
}

// Get returns one strategy by name.
func (r *Registry) Get(name string) (Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[name]
	return s, ok
}

// SetScoreMin updates the adaptive threshold for a strategy.
func (r *Registry) SetScoreMin(name string, v float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strategies[name]
	if !ok {
		return false
	}
	s.Adaptive.ScoreMin = v
	r.strategies[name] = s
	return true
}

// Save persists the current map back to the bound path. Unbound registries
// save nowhere and report nil.
func (r *Registry) Save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.path == "" {
		return nil
	}
	return SaveStrategies(r.path, r.strategies)
}
