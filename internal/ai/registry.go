package ai

import (
	"fmt"
	"strings"
	"sync"
)

// ProviderFactory builds a fully-configured backend.
type ProviderFactory func() (Provider, error)

// Registry maps backend names to factories. The configured MODEL_BACKEND
// name picks one at startup.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *Registry) Get(name string) (Provider, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown model backend: %s", name)
	}
	return f()
}
