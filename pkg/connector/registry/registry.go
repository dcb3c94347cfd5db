// Package registry maps sink names to backend factories. Destinations
// register themselves from init, so importing a destination package is
// enough to make it available by name.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/nebula-sink/pkg/config"
	"github.com/ajitpratap0/nebula-sink/pkg/errors"
	"github.com/ajitpratap0/nebula-sink/pkg/sink"
)

// Factory creates a backend from the sink configuration.
type Factory func(ctx context.Context, cfg *config.Config, logger *zap.Logger) (sink.Backend, error)

// Registry manages backend registration and instantiation
type Registry struct {
	factories map[string]Factory
	infos     map[string]*Info
	mu        sync.RWMutex
}

// Info describes a registered backend.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Shape is the outcome shape the backend reports failures with.
	Shape string `json:"shape"`
}

var globalRegistry = NewRegistry()

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		infos:     make(map[string]*Info),
	}
}

// Register adds a backend factory under info.Name.
func (r *Registry) Register(info Info, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[info.Name]; exists {
		return errors.New(errors.ErrorTypeConfig, fmt.Sprintf("sink %s already registered", info.Name))
	}
	r.factories[info.Name] = factory
	r.infos[info.Name] = &info
	return nil
}

// Create instantiates the backend registered as name.
func (r *Registry) Create(ctx context.Context, name string, cfg *config.Config, logger *zap.Logger) (sink.Backend, error) {
	r.mu.RLock()
	factory, exists := r.factories[name]
	r.mu.RUnlock()

	if !exists {
		return nil, errors.New(errors.ErrorTypeConfig, fmt.Sprintf("sink %s not found", name))
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := factory(ctx, cfg, logger)
	if err != nil {
		if errors.TypeOf(err) == "" {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, fmt.Sprintf("failed to create sink %s", name))
		}
		return nil, err
	}
	logger.Info("sink backend created", zap.String("sink", name))
	return backend, nil
}

// List returns the registered names in order.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Info returns the description of a registered backend.
func (r *Registry) Info(name string) (*Info, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	info, ok := r.infos[name]
	return info, ok
}

// Has checks if a backend is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[name]
	return exists
}

// Clear removes all registered backends (mainly for testing)
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]Factory)
	r.infos = make(map[string]*Info)
}

// Register adds a backend to the global registry.
func Register(info Info, factory Factory) error {
	return globalRegistry.Register(info, factory)
}

// Create instantiates a backend from the global registry.
func Create(ctx context.Context, name string, cfg *config.Config, logger *zap.Logger) (sink.Backend, error) {
	return globalRegistry.Create(ctx, name, cfg, logger)
}

// List returns the backends of the global registry.
func List() []string {
	return globalRegistry.List()
}

// Has checks the global registry.
func Has(name string) bool {
	return globalRegistry.Has(name)
}

// GetRegistry returns the global registry instance.
func GetRegistry() *Registry {
	return globalRegistry
}
