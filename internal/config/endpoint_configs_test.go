package config

import (
	"strings"
	"testing"
	"time"

	"dispatch-server/services/dispatch-api/internal/infrastructure/invoker"
)

func invokerDefaults() invoker.Options {
	return invoker.Options{
		FailureThreshold: 3,
		RecoveryInterval: 30 * time.Second,
		MaxConcurrency:   8,
		RequestTimeout:   30 * time.Second,
	}
}

const sampleEndpointConfig = `
scopes:
  inference:
    failure_threshold: 2
    recovery_seconds: 30
    endpoints:
      - name: primary
        base_url: http://primary:8001/v1/
        api_key: sk-primary
        priority: 100
      - name: backup
        base_url: http://backup:8001/v1
        priority: 80
  default:
    endpoints:
      - name: shared
        base_url: http://shared:8001/v1
        priority: 1
`

func TestParseEndpointGroupsConfig(t *testing.T) {
	cfg, err := ParseEndpointGroupsConfig([]byte(sampleEndpointConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	groups := cfg.Groups()
	inference := groups["inference"]
	if len(inference) != 2 {
		t.Fatalf("expected 2 inference endpoints, got %d", len(inference))
	}
	if inference[0].Name != "primary" || inference[0].Priority != 100 {
		t.Fatalf("unexpected first endpoint: %+v", inference[0])
	}
	if inference[0].BaseURL != "http://primary:8001/v1" {
		t.Fatalf("trailing slash not trimmed: %q", inference[0].BaseURL)
	}
	if inference[0].APIKey != "sk-primary" {
		t.Fatalf("unexpected api key: %q", inference[0].APIKey)
	}
	if len(groups["default"]) != 1 {
		t.Fatalf("expected default group, got %+v", groups)
	}
}

func TestParseEndpointGroupsConfigTunings(t *testing.T) {
	cfg, err := ParseEndpointGroupsConfig([]byte(sampleEndpointConfig))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	defaults := invokerDefaults()
	overrides := cfg.Overrides(defaults)
	inference, ok := overrides["inference"]
	if !ok {
		t.Fatalf("expected inference override, got %v", overrides)
	}
	if inference.FailureThreshold != 2 {
		t.Fatalf("expected threshold 2, got %d", inference.FailureThreshold)
	}
	if inference.RecoveryInterval != 30*time.Second {
		t.Fatalf("expected 30s recovery, got %v", inference.RecoveryInterval)
	}
	// Unset fields inherit the defaults.
	if inference.MaxConcurrency != defaults.MaxConcurrency {
		t.Fatalf("expected inherited concurrency, got %d", inference.MaxConcurrency)
	}
	if _, ok := overrides["default"]; ok {
		t.Fatal("scope without tuning keys must not produce an override")
	}
}

func TestParseEndpointGroupsConfigRejectsDuplicates(t *testing.T) {
	doc := `
scopes:
  inference:
    endpoints:
      - name: primary
        base_url: http://a:8001/v1
      - name: primary
        base_url: http://b:8001/v1
`
	if _, err := ParseEndpointGroupsConfig([]byte(doc)); err == nil || !strings.Contains(err.Error(), "duplicate") {
		t.Fatalf("expected duplicate-name error, got %v", err)
	}
}

func TestParseEndpointGroupsConfigRejectsBadURL(t *testing.T) {
	doc := `
scopes:
  inference:
    endpoints:
      - name: primary
        base_url: not-a-url
`
	if _, err := ParseEndpointGroupsConfig([]byte(doc)); err == nil {
		t.Fatal("expected invalid base_url error")
	}
}

func TestParseEndpointGroupsConfigRejectsEmpty(t *testing.T) {
	if _, err := ParseEndpointGroupsConfig([]byte("scopes: {}")); err == nil {
		t.Fatal("expected error for empty scopes")
	}
}
