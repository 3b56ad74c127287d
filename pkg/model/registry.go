package model

import (
	"sync"
)

// Registry holds the design models of one schema-generation session,
// keyed by name. Create one per session; nothing is shared between them.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Type
	order  []string
}

// NewRegistry creates an empty model registry.
func NewRegistry() *Registry {
	return &Registry{
		models: make(map[string]*Type),
	}
}

// Register adds a model to the registry. Returns a *DuplicateModelError if a
// model with the same name is already registered.
func (r *Registry) Register(t *Type) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.models[name]; exists {
		return &DuplicateModelError{Name: name}
	}
	r.models[name] = t
	r.order = append(r.order, name)
	return nil
}

// RegisterAll registers each model in turn and stops at the first error.
func (r *Registry) RegisterAll(types ...*Type) error {
	for _, t := range types {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the model registered under name, or an *UnknownModelError.
func (r *Registry) Lookup(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.models[name]
	if !ok {
		return nil, &UnknownModelError{Name: name}
	}
	return t, nil
}

// Names returns all registered model names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]string(nil), r.order...)
}

// Len returns the number of registered models.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.models)
}
