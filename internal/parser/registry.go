package parser

import (
	"fmt"
	"sync"
)

// Factory creates a parser instance from its dependencies.
type Factory func(deps Deps) Parser

// Registry holds parser factories indexed by parser key.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// Register adds a factory for the given parser key.
// Panics if the key is already registered.
func (r *Registry) Register(key string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[key]; exists {
		panic(fmt.Sprintf("parser already registered: %s", key))
	}
	r.factories[key] = factory
}

// Get returns the factory for the given parser key.
func (r *Registry) Get(key string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	factory, ok := r.factories[key]
	return factory, ok
}

// List returns all registered parser keys.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.factories))
	for key := range r.factories {
		keys = append(keys, key)
	}
	return keys
}

// Create instantiates the parser registered under the given key.
// Unknown keys fail fast here, before any run state is touched.
func (r *Registry) Create(key string, deps Deps) (Parser, error) {
	factory, ok := r.Get(key)
	if !ok {
		return nil, fmt.Errorf("unknown parser key: %s", key)
	}
	return factory(deps), nil
}

// --- Default Global Registry ---

var defaultRegistry = NewRegistry()

// DefaultRegistry returns the global parser registry.
func DefaultRegistry() *Registry {
	return defaultRegistry
}

// Register adds a factory to the default registry.
func Register(key string, factory Factory) {
	defaultRegistry.Register(key, factory)
}
