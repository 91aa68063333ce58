package invoker

import "fmt"

// DefaultGroup is the group consulted when a scope has no explicit endpoint
// group of its own.
const DefaultGroup = "default"

// EndpointConfig describes one backend endpoint. Instances are created at
// configuration load time and never mutated.
type EndpointConfig struct {
	// Name is unique within a scope.
	Name    string
	BaseURL string
	APIKey  string
	// Priority ranks endpoints within a scope, higher is preferred.
	Priority int
}

// Registry holds the per-scope endpoint groups loaded at startup.
type Registry struct {
	groups   map[string][]EndpointConfig
	fallback []EndpointConfig
}

// NewRegistry copies the provided groups so later mutation of the caller's
// maps cannot leak into resolution.
func NewRegistry(groups map[string][]EndpointConfig, fallback []EndpointConfig) *Registry {
	copied := make(map[string][]EndpointConfig, len(groups))
	for scope, endpoints := range groups {
		if len(endpoints) == 0 {
			continue
		}
		list := make([]EndpointConfig, len(endpoints))
		copy(list, endpoints)
		copied[scope] = list
	}
	fb := make([]EndpointConfig, len(fallback))
	copy(fb, fallback)
	return &Registry{groups: copied, fallback: fb}
}

// Resolve returns the ordered endpoint list for a scope: the scope's own
// group if present, otherwise the "default" group, otherwise the global
// fallback. Resolving to zero endpoints is a configuration error and must be
// handled at manager-build time, never per call.
func (r *Registry) Resolve(scope string) ([]EndpointConfig, error) {
	if endpoints, ok := r.groups[scope]; ok && len(endpoints) > 0 {
		return endpoints, nil
	}
	if endpoints, ok := r.groups[DefaultGroup]; ok && len(endpoints) > 0 {
		return endpoints, nil
	}
	if len(r.fallback) > 0 {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("scope %q: %w", scope, ErrNoEndpoints)
}

// Scopes lists every scope with an explicit endpoint group.
func (r *Registry) Scopes() []string {
	scopes := make([]string, 0, len(r.groups))
	for scope := range r.groups {
		scopes = append(scopes, scope)
	}
	return scopes
}
