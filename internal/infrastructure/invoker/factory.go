package invoker

import (
	"sync"

	"github.com/rs/zerolog"
)

// Factory lazily builds and caches one Manager per scope. It is constructed
// once at startup and handed down the call graph; there is no process-wide
// lookup.
type Factory struct {
	mu        sync.RWMutex
	managers  map[string]*Manager
	registry  *Registry
	defaults  Options
	overrides map[string]Options
	log       zerolog.Logger
}

// NewFactory wires the registry and tuning parameters. overrides replaces
// the default Options for the named scopes; all other scopes share defaults.
func NewFactory(registry *Registry, defaults Options, overrides map[string]Options, log zerolog.Logger) *Factory {
	return &Factory{
		managers:  make(map[string]*Manager),
		registry:  registry,
		defaults:  defaults,
		overrides: overrides,
		log:       log,
	}
}

// Manager returns the cached manager for a scope, building it on first
// access. The double-checked lock keeps concurrent first-time callers from
// building duplicates while repeat callers stay on the read lock.
func (f *Factory) Manager(scope string) (*Manager, error) {
	f.mu.RLock()
	manager, ok := f.managers[scope]
	f.mu.RUnlock()
	if ok {
		return manager, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if manager, ok = f.managers[scope]; ok {
		return manager, nil
	}

	endpoints, err := f.registry.Resolve(scope)
	if err != nil {
		return nil, err
	}
	opts := f.defaults
	if override, ok := f.overrides[scope]; ok {
		opts = override
	}
	manager, err = NewManager(scope, endpoints, opts, f.log)
	if err != nil {
		return nil, err
	}
	f.managers[scope] = manager
	return manager, nil
}

// Snapshots aggregates per-endpoint breaker status across every scope that
// has a built manager, keyed scope then endpoint.
func (f *Factory) Snapshots() map[string]map[string]EndpointStatus {
	f.mu.RLock()
	managers := make([]*Manager, 0, len(f.managers))
	for _, manager := range f.managers {
		managers = append(managers, manager)
	}
	f.mu.RUnlock()

	snapshots := make(map[string]map[string]EndpointStatus, len(managers))
	for _, manager := range managers {
		snapshots[manager.Scope()] = manager.Snapshot()
	}
	return snapshots
}
