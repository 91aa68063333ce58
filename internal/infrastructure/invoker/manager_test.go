package invoker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

func newTestManager(t *testing.T, opts Options, endpoints ...EndpointConfig) *Manager {
	t.Helper()
	manager, err := NewManager("test", endpoints, opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error building manager: %v", err)
	}
	return manager
}

func primaryBackup() []EndpointConfig {
	return []EndpointConfig{
		{Name: "primary", BaseURL: "http://primary:8001/v1", Priority: 100},
		{Name: "backup", BaseURL: "http://backup:8001/v1", Priority: 80},
	}
}

// waitFor polls until the condition holds or the test deadline is blown.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestNewManagerRequiresEndpoints(t *testing.T) {
	if _, err := NewManager("empty", nil, Options{}, zerolog.Nop()); !errors.Is(err, ErrNoEndpoints) {
		t.Fatalf("expected ErrNoEndpoints, got %v", err)
	}
}

func TestCallPrefersTopPriorityExclusively(t *testing.T) {
	manager := newTestManager(t, Options{}, primaryBackup()...)

	var primaryCalls, backupCalls int32
	fn := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		switch endpoint.Name {
		case "primary":
			atomic.AddInt32(&primaryCalls, 1)
		case "backup":
			atomic.AddInt32(&backupCalls, 1)
		}
		return endpoint.Name, nil
	}

	for i := 0; i < 5; i++ {
		value, err := manager.Call(context.Background(), "chat.completion", fn)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if value != "primary" {
			t.Fatalf("expected primary result, got %v", value)
		}
	}
	if primaryCalls != 5 || backupCalls != 0 {
		t.Fatalf("expected 5/0 attempts, got %d/%d", primaryCalls, backupCalls)
	}
}

func TestCallRegistrationOrderBreaksPriorityTies(t *testing.T) {
	manager := newTestManager(t, Options{},
		EndpointConfig{Name: "first", Priority: 50},
		EndpointConfig{Name: "second", Priority: 50},
	)

	value, err := manager.Call(context.Background(), "op", func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		return endpoint.Name, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "first" {
		t.Fatalf("expected registration order to win ties, got %v", value)
	}
}

// The concrete failover scenario: two failures open primary's circuit, call
// three routes straight to backup without touching primary again.
func TestCallFailsOverAfterThreshold(t *testing.T) {
	manager := newTestManager(t, Options{FailureThreshold: 2, RecoveryInterval: 30 * time.Second}, primaryBackup()...)

	var primaryAttempts int32
	fn := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		if endpoint.Name == "primary" {
			atomic.AddInt32(&primaryAttempts, 1)
			return nil, errors.New("runtime error")
		}
		return map[string]string{"provider": "backup"}, nil
	}

	for i := 1; i <= 2; i++ {
		value, err := manager.Call(context.Background(), "chat.completion", fn)
		if err != nil {
			t.Fatalf("call %d: unexpected error: %v", i, err)
		}
		result, ok := value.(map[string]string)
		if !ok || result["provider"] != "backup" {
			t.Fatalf("call %d: expected backup result, got %v", i, value)
		}
	}

	status := manager.Snapshot()["primary"]
	if status.Available {
		t.Fatal("primary must be unavailable immediately after call 2")
	}
	if status.RecoveryDeadline == nil {
		t.Fatal("open circuit must carry a recovery deadline")
	}

	value, err := manager.Call(context.Background(), "chat.completion", fn)
	if err != nil {
		t.Fatalf("call 3: unexpected error: %v", err)
	}
	if result := value.(map[string]string); result["provider"] != "backup" {
		t.Fatalf("call 3: expected backup result, got %v", value)
	}
	if primaryAttempts != 2 {
		t.Fatalf("expected exactly 2 primary attempts, got %d", primaryAttempts)
	}
}

// After the recovery window, exactly one of N concurrent calls probes the
// opened endpoint; the rest route to backup.
func TestCallSingleHalfOpenTrialUnderConcurrency(t *testing.T) {
	manager := newTestManager(t, Options{FailureThreshold: 1, RecoveryInterval: 10 * time.Second}, primaryBackup()...)

	failing := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		if endpoint.Name == "primary" {
			return nil, errors.New("connection refused")
		}
		return "backup", nil
	}
	if _, err := manager.Call(context.Background(), "warmup", failing); err != nil {
		t.Fatalf("warmup call failed: %v", err)
	}
	if manager.Snapshot()["primary"].Available {
		t.Fatal("primary should be open after threshold=1 failure")
	}

	// Jump the clock past the recovery deadline.
	future := time.Now().Add(11 * time.Second)
	manager.now = func() time.Time { return future }

	const callers = 8
	var primaryAttempts, backupAttempts int32
	release := make(chan struct{})
	probe := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		if endpoint.Name == "primary" {
			atomic.AddInt32(&primaryAttempts, 1)
			// Hold the trial open until every caller has routed.
			<-release
			return "primary", nil
		}
		atomic.AddInt32(&backupAttempts, 1)
		return "backup", nil
	}

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := manager.Call(context.Background(), "chat.completion", probe); err != nil {
				t.Errorf("concurrent call failed: %v", err)
			}
		}()
	}

	waitFor(t, func() bool {
		return atomic.LoadInt32(&primaryAttempts) == 1 && atomic.LoadInt32(&backupAttempts) == callers-1
	})
	close(release)
	wg.Wait()

	if primaryAttempts != 1 {
		t.Fatalf("expected exactly one half-open trial, got %d", primaryAttempts)
	}
	if !manager.Snapshot()["primary"].Available {
		t.Fatal("successful trial should close the circuit")
	}
}

// With MaxConcurrency=1, a second concurrent call skips the saturated
// endpoint instead of queuing.
func TestCallSkipsGateSaturatedEndpoint(t *testing.T) {
	manager := newTestManager(t, Options{MaxConcurrency: 1}, primaryBackup()...)

	release := make(chan struct{})
	blocking := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		if endpoint.Name == "primary" {
			<-release
		}
		return endpoint.Name, nil
	}

	done := make(chan any, 1)
	go func() {
		value, err := manager.Call(context.Background(), "chat.completion", blocking)
		if err != nil {
			t.Errorf("blocked call failed: %v", err)
		}
		done <- value
	}()

	waitFor(t, func() bool { return manager.gate.InFlight("primary") == 1 })

	value, err := manager.Call(context.Background(), "chat.completion", blocking)
	if err != nil {
		t.Fatalf("second call failed: %v", err)
	}
	if value != "backup" {
		t.Fatalf("second call should have skipped to backup, got %v", value)
	}
	// Skipping a full gate is not an endpoint failure.
	if got := manager.Snapshot()["primary"].ConsecutiveFailures; got != 0 {
		t.Fatalf("gate skip must not count as failure, got %d", got)
	}

	close(release)
	if value := <-done; value != "primary" {
		t.Fatalf("blocked call should have used primary, got %v", value)
	}
}

func TestCallSingleEndpointFailureBelowThreshold(t *testing.T) {
	manager := newTestManager(t, Options{FailureThreshold: 2},
		EndpointConfig{Name: "only", Priority: 1},
	)

	boom := errors.New("boom")
	_, err := manager.Call(context.Background(), "chat.completion", func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		return nil, boom
	})

	var aggregate *AggregateError
	if !errors.As(err, &aggregate) {
		t.Fatalf("expected AggregateError, got %v", err)
	}
	if len(aggregate.Attempts) != 1 {
		t.Fatalf("expected exactly one attempt entry, got %d", len(aggregate.Attempts))
	}
	if aggregate.Attempts[0].Endpoint != "only" || !errors.Is(aggregate.Attempts[0].Err, boom) {
		t.Fatalf("unexpected attempt entry: %+v", aggregate.Attempts[0])
	}
	// Below threshold the endpoint stays available for the next call.
	if !manager.Snapshot()["only"].Available {
		t.Fatal("single failure below threshold must not open the circuit")
	}
}

func TestCallAggregatesAllFailures(t *testing.T) {
	manager := newTestManager(t, Options{}, primaryBackup()...)

	_, err := manager.Call(context.Background(), "chat.completion", func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		return nil, errors.New(endpoint.Name + " down")
	})

	var aggregate *AggregateError
	if !errors.As(err, &aggregate) {
		t.Fatalf("expected AggregateError, got %v", err)
	}
	if len(aggregate.Attempts) != 2 {
		t.Fatalf("expected 2 attempts, got %d", len(aggregate.Attempts))
	}
	if aggregate.Attempts[0].Endpoint != "primary" || aggregate.Attempts[1].Endpoint != "backup" {
		t.Fatalf("attempts out of rank order: %+v", aggregate.Attempts)
	}
}

func TestCallRequestTimeoutCountsAsFailure(t *testing.T) {
	manager := newTestManager(t, Options{RequestTimeout: 20 * time.Millisecond}, primaryBackup()...)

	fn := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		if endpoint.Name == "primary" {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return "backup", nil
	}

	value, err := manager.Call(context.Background(), "chat.completion", fn)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != "backup" {
		t.Fatalf("expected backup after primary timeout, got %v", value)
	}
	if got := manager.Snapshot()["primary"].ConsecutiveFailures; got != 1 {
		t.Fatalf("timeout should count as one failure, got %d", got)
	}
}

func TestCallAbandonsOnCallerCancellation(t *testing.T) {
	manager := newTestManager(t, Options{}, primaryBackup()...)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	fn := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	go func() {
		<-started
		cancel()
	}()

	_, err := manager.Call(ctx, "chat.completion", fn)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	// Cancellation is not an endpoint failure and must not leak a gate slot.
	if got := manager.Snapshot()["primary"].ConsecutiveFailures; got != 0 {
		t.Fatalf("cancellation counted as failure: %d", got)
	}
	if got := manager.gate.InFlight("primary"); got != 0 {
		t.Fatalf("gate slot leaked on cancellation: %d", got)
	}
}

// A caller cancelled mid-trial must hand the half-open slot back, or the
// endpoint can never be probed again.
func TestCallCancelledTrialDoesNotWedgeEndpoint(t *testing.T) {
	manager := newTestManager(t, Options{FailureThreshold: 1, RecoveryInterval: 10 * time.Second}, primaryBackup()...)

	failing := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		if endpoint.Name == "primary" {
			return nil, errors.New("connection refused")
		}
		return "backup", nil
	}
	if _, err := manager.Call(context.Background(), "warmup", failing); err != nil {
		t.Fatalf("warmup call failed: %v", err)
	}

	future := time.Now().Add(11 * time.Second)
	manager.now = func() time.Time { return future }

	// The next call claims the trial, then its caller cancels mid-flight.
	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	go func() {
		<-started
		cancel()
	}()
	_, err := manager.Call(ctx, "chat.completion", func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	// The abandoned trial slot is free again, so a later caller can still
	// probe primary and close the circuit.
	value, err := manager.Call(context.Background(), "chat.completion", func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		return endpoint.Name, nil
	})
	if err != nil {
		t.Fatalf("probe call failed: %v", err)
	}
	if value != "primary" {
		t.Fatalf("expected primary to be probed after the cancelled trial, got %v", value)
	}
	if !manager.Snapshot()["primary"].Available {
		t.Fatal("successful probe should close the circuit")
	}
}

func TestCallOverallTimeoutBoundsAttempts(t *testing.T) {
	endpoints := []EndpointConfig{
		{Name: "a", Priority: 3},
		{Name: "b", Priority: 2},
		{Name: "c", Priority: 1},
	}
	manager := newTestManager(t, Options{OverallTimeout: 50 * time.Millisecond}, endpoints...)

	fn := func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		select {
		case <-time.After(40 * time.Millisecond):
			return nil, errors.New("slow failure")
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	_, err := manager.Call(context.Background(), "chat.completion", fn)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected overall deadline to cut the call short, got %v", err)
	}
}

func TestCallAsyncMatchesCall(t *testing.T) {
	manager := newTestManager(t, Options{}, primaryBackup()...)

	result := <-manager.CallAsync(context.Background(), "chat.completion", func(ctx context.Context, client *resty.Client, endpoint EndpointConfig) (any, error) {
		return endpoint.Name, nil
	})
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.Value != "primary" {
		t.Fatalf("expected primary, got %v", result.Value)
	}
}

func TestManagerTransportClientsCarryCredentials(t *testing.T) {
	manager := newTestManager(t, Options{},
		EndpointConfig{Name: "primary", BaseURL: "http://primary:8001/v1", APIKey: "sk-test", Priority: 1},
	)

	client := manager.clients["primary"]
	if client.BaseURL() != "http://primary:8001/v1" {
		t.Fatalf("unexpected base URL: %s", client.BaseURL())
	}
	if got := client.Header().Get("Authorization"); got != "Bearer sk-test" {
		t.Fatalf("unexpected authorization header: %q", got)
	}
}
