package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/davidbz/runrelay/internal/domain"
)

// Registry implements the domain.ModelRegistry interface.
type Registry struct {
	mu     sync.RWMutex
	routes map[string]domain.ModelRoute
}

// NewRegistry creates a new, empty model registry.
func NewRegistry() *Registry {
	return &Registry{
		mu:     sync.RWMutex{},
		routes: make(map[string]domain.ModelRoute),
	}
}

// Register adds a model route to the registry.
func (r *Registry) Register(_ context.Context, route domain.ModelRoute) error {
	if route.ID == "" {
		return errors.New("model id cannot be empty")
	}

	if route.Format == "" {
		return fmt.Errorf("model %s has no prompt format", route.ID)
	}

	if route.Client == nil {
		return fmt.Errorf("model %s has no job client", route.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.routes[route.ID]; exists {
		return fmt.Errorf("model %s already registered", route.ID)
	}

	r.routes[route.ID] = route
	return nil
}

// Get retrieves the route of a model.
func (r *Registry) Get(_ context.Context, model string) (domain.ModelRoute, error) {
	if model == "" {
		return domain.ModelRoute{}, errors.New("model cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	route, exists := r.routes[model]
	if !exists {
		return domain.ModelRoute{}, fmt.Errorf("%w: %s", domain.ErrModelNotFound, model)
	}

	return route, nil
}

// List returns every registered model id in ascending order.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]string, 0, len(r.routes))
	for model := range r.routes {
		models = append(models, model)
	}
	sort.Strings(models)

	return models, nil
}
