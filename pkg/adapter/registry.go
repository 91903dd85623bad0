package adapter

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Factory constructs an adapter from its configuration.
type Factory func(ctx context.Context, cfg Config, cat Catalog) (Adapter, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register makes a backend constructor available under a type name. Backends
// call it from init; registering the same type twice panics.
func Register(adapterType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if factory == nil {
		panic("adapter: Register called with nil factory")
	}
	if _, dup := registry[adapterType]; dup {
		panic(fmt.Sprintf("adapter: Register called twice for type %q", adapterType))
	}
	registry[adapterType] = factory
}

// Create constructs the adapter described by cfg. Unknown types report
// AdapterCreationFailed.
func Create(ctx context.Context, cfg Config, cat Catalog) (Adapter, error) {
	registryMu.RLock()
	factory, ok := registry[cfg.Type]
	registryMu.RUnlock()
	if !ok {
		return nil, NewAdapterCreationError(cfg.Type,
			fmt.Errorf("unknown adapter type (registered: %v)", RegisteredTypes()))
	}
	return factory(ctx, cfg, cat)
}

// RegisteredTypes returns the sorted list of registered backend type names.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for t := range registry {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
