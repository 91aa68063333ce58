package invoker

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestFactory(overrides map[string]Options) *Factory {
	registry := NewRegistry(map[string][]EndpointConfig{
		"inference": {
			{Name: "primary", BaseURL: "http://primary:8001/v1", Priority: 100},
			{Name: "backup", BaseURL: "http://backup:8001/v1", Priority: 80},
		},
		"default": {
			{Name: "shared", BaseURL: "http://shared:8001/v1", Priority: 1},
		},
	}, nil)
	return NewFactory(registry, Options{FailureThreshold: 3, RecoveryInterval: 30 * time.Second}, overrides, zerolog.Nop())
}

func TestFactoryReturnsCachedInstance(t *testing.T) {
	factory := newTestFactory(nil)

	first, err := factory.Manager("inference")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := factory.Manager("inference")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first != second {
		t.Fatal("repeated lookups must return the identical cached manager")
	}
}

func TestFactoryConcurrentFirstAccessBuildsOnce(t *testing.T) {
	factory := newTestFactory(nil)

	const callers = 16
	managers := make([]*Manager, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			manager, err := factory.Manager("inference")
			if err != nil {
				t.Errorf("concurrent lookup failed: %v", err)
				return
			}
			managers[i] = manager
		}(i)
	}
	wg.Wait()

	for i := 1; i < callers; i++ {
		if managers[i] != managers[0] {
			t.Fatal("concurrent first-time callers built duplicate managers")
		}
	}
}

func TestFactoryUnknownScopeUsesDefaultGroup(t *testing.T) {
	factory := newTestFactory(nil)

	manager, err := factory.Manager("geocoding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	endpoints := manager.Endpoints()
	if len(endpoints) != 1 || endpoints[0].Name != "shared" {
		t.Fatalf("expected default group endpoints, got %+v", endpoints)
	}
}

func TestFactoryEmptyResolutionFailsAtBuildTime(t *testing.T) {
	factory := NewFactory(NewRegistry(nil, nil), Options{}, nil, zerolog.Nop())
	if _, err := factory.Manager("inference"); !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expected ErrNoEndpoints, got %v", err)
	}
}

func TestFactoryScopeOverridesApply(t *testing.T) {
	factory := newTestFactory(map[string]Options{
		"inference": {FailureThreshold: 1, RecoveryInterval: time.Second},
	})

	manager, err := factory.Manager("inference")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if manager.opts.FailureThreshold != 1 {
		t.Fatalf("override not applied: %+v", manager.opts)
	}

	other, err := factory.Manager("geocoding")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if other.opts.FailureThreshold != 3 {
		t.Fatalf("default tuning not applied: %+v", other.opts)
	}
}

func TestFactorySnapshotsCoverBuiltScopes(t *testing.T) {
	factory := newTestFactory(nil)
	if _, err := factory.Manager("inference"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snapshots := factory.Snapshots()
	scope, ok := snapshots["inference"]
	if !ok {
		t.Fatalf("missing inference scope in snapshots: %v", snapshots)
	}
	if _, ok := scope["primary"]; !ok {
		t.Fatalf("missing primary endpoint in scope snapshot: %v", scope)
	}
}
