package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dispatch-server/services/dispatch-api/internal/infrastructure/invoker"
	"dispatch-server/services/dispatch-api/internal/infrastructure/logger"
)

// ScopeTuning overrides the global invoker parameters for one scope. Nil
// pointers fall back to the global value.
type ScopeTuning struct {
	FailureThreshold *int
	RecoveryInterval *time.Duration
	MaxConcurrency   *int
	RequestTimeout   *time.Duration
}

// EndpointGroupsConfig maintains the per-scope endpoint groups loaded at
// startup. The invocation layer never re-reads this mid-run.
type EndpointGroupsConfig struct {
	groups  map[string][]invoker.EndpointConfig
	tunings map[string]ScopeTuning
}

// Groups returns a copy of the scope -> endpoints mapping.
func (c *EndpointGroupsConfig) Groups() map[string][]invoker.EndpointConfig {
	if c == nil {
		return nil
	}
	result := make(map[string][]invoker.EndpointConfig, len(c.groups))
	for scope, endpoints := range c.groups {
		list := make([]invoker.EndpointConfig, len(endpoints))
		copy(list, endpoints)
		result[scope] = list
	}
	return result
}

// Overrides materializes per-scope invoker Options from the scope tunings,
// filling unset fields from the provided defaults.
func (c *EndpointGroupsConfig) Overrides(defaults invoker.Options) map[string]invoker.Options {
	if c == nil || len(c.tunings) == 0 {
		return nil
	}
	overrides := make(map[string]invoker.Options, len(c.tunings))
	for scope, tuning := range c.tunings {
		opts := defaults
		if tuning.FailureThreshold != nil {
			opts.FailureThreshold = *tuning.FailureThreshold
		}
		if tuning.RecoveryInterval != nil {
			opts.RecoveryInterval = *tuning.RecoveryInterval
		}
		if tuning.MaxConcurrency != nil {
			opts.MaxConcurrency = *tuning.MaxConcurrency
		}
		if tuning.RequestTimeout != nil {
			opts.RequestTimeout = *tuning.RequestTimeout
		}
		overrides[scope] = opts
	}
	return overrides
}

// LoadEndpointGroupsConfig parses the yaml file at the provided path.
func LoadEndpointGroupsConfig(path string) (*EndpointGroupsConfig, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("endpoint config path is empty")
	}

	log := logger.GetLogger()
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read endpoint config %q: %w", cleanPath, err)
	}
	log.Info().Str("path", cleanPath).Msg("loading endpoint config file")

	return ParseEndpointGroupsConfig(data)
}

// ParseEndpointGroupsConfig builds the config from raw yaml.
func ParseEndpointGroupsConfig(data []byte) (*EndpointGroupsConfig, error) {
	log := logger.GetLogger()

	var doc endpointConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse endpoint config: %w", err)
	}
	if len(doc.Scopes) == 0 {
		return nil, errors.New("endpoint config has no scopes defined")
	}

	result := &EndpointGroupsConfig{
		groups:  make(map[string][]invoker.EndpointConfig),
		tunings: make(map[string]ScopeTuning),
	}

	for rawScope, entry := range doc.Scopes {
		scope := strings.TrimSpace(rawScope)
		if scope == "" || len(entry.Endpoints) == 0 {
			continue
		}
		seen := make(map[string]bool, len(entry.Endpoints))
		for idx, raw := range entry.Endpoints {
			endpoint, err := normalizeEndpointEntry(raw)
			if err != nil {
				return nil, fmt.Errorf("scopes.%s.endpoints[%d]: %w", scope, idx, err)
			}
			if seen[endpoint.Name] {
				return nil, fmt.Errorf("scopes.%s.endpoints[%d]: duplicate endpoint name %q", scope, idx, endpoint.Name)
			}
			seen[endpoint.Name] = true
			log.Info().
				Str("scope", scope).
				Str("endpoint", endpoint.Name).
				Str("base_url", endpoint.BaseURL).
				Int("priority", endpoint.Priority).
				Msg("registering endpoint")
			result.groups[scope] = append(result.groups[scope], endpoint)
		}
		if tuning, ok := entry.tuning(); ok {
			result.tunings[scope] = tuning
		}
	}

	if len(result.groups) == 0 {
		return nil, errors.New("endpoint config has no valid endpoint entries")
	}

	return result, nil
}

func normalizeEndpointEntry(entry endpointConfigEntry) (invoker.EndpointConfig, error) {
	name := strings.TrimSpace(entry.Name)
	if name == "" {
		return invoker.EndpointConfig{}, errors.New("endpoint name is required")
	}
	baseURL := strings.TrimSpace(entry.BaseURL)
	parsed, err := url.Parse(baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return invoker.EndpointConfig{}, fmt.Errorf("invalid base_url %q", entry.BaseURL)
	}
	return invoker.EndpointConfig{
		Name:     name,
		BaseURL:  strings.TrimSuffix(baseURL, "/"),
		APIKey:   strings.TrimSpace(entry.APIKey),
		Priority: entry.Priority,
	}, nil
}

type endpointConfigDocument struct {
	Scopes map[string]scopeConfigEntry `yaml:"scopes"`
}

type scopeConfigEntry struct {
	Endpoints             []endpointConfigEntry `yaml:"endpoints"`
	FailureThreshold      *int                  `yaml:"failure_threshold"`
	RecoverySeconds       *int                  `yaml:"recovery_seconds"`
	MaxConcurrency        *int                  `yaml:"max_concurrency"`
	RequestTimeoutSeconds *int                  `yaml:"request_timeout_seconds"`
}

func (e scopeConfigEntry) tuning() (ScopeTuning, bool) {
	var tuning ScopeTuning
	set := false
	if e.FailureThreshold != nil {
		tuning.FailureThreshold = e.FailureThreshold
		set = true
	}
	if e.RecoverySeconds != nil {
		interval := time.Duration(*e.RecoverySeconds) * time.Second
		tuning.RecoveryInterval = &interval
		set = true
	}
	if e.MaxConcurrency != nil {
		tuning.MaxConcurrency = e.MaxConcurrency
		set = true
	}
	if e.RequestTimeoutSeconds != nil {
		timeout := time.Duration(*e.RequestTimeoutSeconds) * time.Second
		tuning.RequestTimeout = &timeout
		set = true
	}
	return tuning, set
}

type endpointConfigEntry struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Priority int    `yaml:"priority"`
}
