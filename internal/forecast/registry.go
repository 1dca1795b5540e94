package forecast

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry maps site-type keys to forecast models. Keys are case-insensitive
// and normalized to lowercase. Lookups for unregistered types fall back to
// the configured default model. Reads vastly outnumber writes, so the map is
// guarded by an RWMutex.
type Registry struct {
	mu           sync.RWMutex
	models       map[string]Model
	defaultModel Model
}

// NewRegistry returns a registry pre-populated with the synthetic model for
// solar and wind sites, with another synthetic instance as the default.
func NewRegistry() *Registry {
	r := &Registry{
		models:       make(map[string]Model),
		defaultModel: NewSyntheticModel(),
	}
	r.models["solar"] = NewSyntheticModel()
	r.models["wind"] = NewSyntheticModel()
	return r
}

// Register binds a model to a site type.
func (r *Registry) Register(siteType string, model Model) error {
	if model == nil {
		return fmt.Errorf("%w: model must not be nil", ErrModelRegistration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.models[strings.ToLower(siteType)] = model
	return nil
}

// Get returns the model registered for the site type, or the default model
// when none is registered.
func (r *Registry) Get(siteType string) Model {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if model, ok := r.models[strings.ToLower(siteType)]; ok {
		return model
	}
	return r.defaultModel
}

// RegisteredTypes returns the sorted list of site types with a registered
// model.
func (r *Registry) RegisteredTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.models))
	for t := range r.models {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Unregister removes the model for a site type, reporting whether an entry
// existed.
func (r *Registry) Unregister(siteType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := strings.ToLower(siteType)
	if _, ok := r.models[key]; !ok {
		return false
	}
	delete(r.models, key)
	return true
}

// SetDefault replaces the fallback model used for unregistered site types.
func (r *Registry) SetDefault(model Model) error {
	if model == nil {
		return fmt.Errorf("%w: default model must not be nil", ErrModelRegistration)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaultModel = model
	return nil
}

// DefaultRegistry is the process-wide registry used when callers do not
// inject their own. It is the only global mutable state in the package.
var DefaultRegistry = NewRegistry()
