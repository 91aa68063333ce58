package invoker

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"dispatch-server/services/dispatch-api/internal/infrastructure/metrics"
)

// EndpointStatus is a point-in-time view of one endpoint's breaker state.
type EndpointStatus struct {
	Available           bool       `json:"available"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	RecoveryDeadline    *time.Time `json:"recovery_deadline,omitempty"`
}

// endpointHealth is the mutable breaker state for one endpoint. Fields are
// guarded by mu; the invariants are: available == false implies
// recoveryDeadline is set, and trialInFlight implies available == false.
type endpointHealth struct {
	mu                  sync.Mutex
	consecutiveFailures int
	available           bool
	recoveryDeadline    time.Time
	trialInFlight       bool
}

// healthTracker implements the CLOSED/OPEN/HALF-OPEN state machine, one
// entry per endpoint. The endpoint set is fixed at construction, so the map
// itself is never written after New and needs no lock of its own.
type healthTracker struct {
	scope            string
	failureThreshold int
	recoveryInterval time.Duration
	entries          map[string]*endpointHealth
	order            []string
	log              zerolog.Logger
}

func newHealthTracker(scope string, endpoints []EndpointConfig, failureThreshold int, recoveryInterval time.Duration, log zerolog.Logger) *healthTracker {
	tracker := &healthTracker{
		scope:            scope,
		failureThreshold: failureThreshold,
		recoveryInterval: recoveryInterval,
		entries:          make(map[string]*endpointHealth, len(endpoints)),
		order:            make([]string, 0, len(endpoints)),
		log:              log.With().Str("component", "health-tracker").Str("scope", scope).Logger(),
	}
	for _, endpoint := range endpoints {
		tracker.entries[endpoint.Name] = &endpointHealth{available: true}
		tracker.order = append(tracker.order, endpoint.Name)
	}
	return tracker
}

// RecordSuccess closes the circuit for the endpoint.
func (t *healthTracker) RecordSuccess(name string) {
	entry := t.entries[name]
	entry.mu.Lock()
	defer entry.mu.Unlock()

	recovered := !entry.available
	entry.consecutiveFailures = 0
	entry.available = true
	entry.recoveryDeadline = time.Time{}
	entry.trialInFlight = false

	if recovered {
		t.log.Info().Str("endpoint", name).Msg("endpoint recovered, circuit closed")
		metrics.InvokerBreakerTransitionsTotal.WithLabelValues(t.scope, name, "closed").Inc()
	}
}

// RecordFailure counts one failed attempt. Crossing the failure threshold
// opens the circuit. trial marks the failure as the half-open trial owner's:
// only the owner clears the slot and re-arms the recovery deadline, so a
// straggler attempt admitted before the circuit opened cannot release a
// trial it never held.
func (t *healthTracker) RecordFailure(name string, now time.Time, trial bool) {
	entry := t.entries[name]
	entry.mu.Lock()
	defer entry.mu.Unlock()

	entry.consecutiveFailures++

	if trial {
		entry.trialInFlight = false
		entry.recoveryDeadline = now.Add(t.recoveryInterval)
		t.log.Warn().
			Str("endpoint", name).
			Time("recovery_deadline", entry.recoveryDeadline).
			Msg("half-open trial failed, circuit stays open")
		metrics.InvokerBreakerTransitionsTotal.WithLabelValues(t.scope, name, "open").Inc()
		return
	}

	if entry.available && entry.consecutiveFailures >= t.failureThreshold {
		entry.available = false
		entry.recoveryDeadline = now.Add(t.recoveryInterval)
		t.log.Warn().
			Str("endpoint", name).
			Int("consecutive_failures", entry.consecutiveFailures).
			Time("recovery_deadline", entry.recoveryDeadline).
			Msg("failure threshold reached, circuit opened")
		metrics.InvokerBreakerTransitionsTotal.WithLabelValues(t.scope, name, "open").Inc()
	}
}

// Eligible reports whether the endpoint may be attempted at time now. For an
// open circuit whose recovery deadline has passed it atomically claims the
// single half-open trial slot, so under concurrent callers exactly one gets
// the probe and the rest keep failing over.
func (t *healthTracker) Eligible(name string, now time.Time) (ok bool, trial bool) {
	entry := t.entries[name]
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if entry.available {
		return true, false
	}
	if entry.trialInFlight {
		return false, false
	}
	if now.Before(entry.recoveryDeadline) {
		return false, false
	}
	entry.trialInFlight = true
	t.log.Info().Str("endpoint", name).Msg("recovery window elapsed, permitting half-open trial")
	return true, true
}

// CancelTrial returns an unused trial slot. Called when the concurrency gate
// denies admission after Eligible already claimed the probe, so the skipped
// attempt leaves no residual breaker mutation.
func (t *healthTracker) CancelTrial(name string) {
	entry := t.entries[name]
	entry.mu.Lock()
	defer entry.mu.Unlock()
	entry.trialInFlight = false
}

// Snapshot reads every endpoint's status under the same locks as writers, so
// no torn state is observable.
func (t *healthTracker) Snapshot() map[string]EndpointStatus {
	snapshot := make(map[string]EndpointStatus, len(t.order))
	for _, name := range t.order {
		entry := t.entries[name]
		entry.mu.Lock()
		status := EndpointStatus{
			Available:           entry.available,
			ConsecutiveFailures: entry.consecutiveFailures,
		}
		if !entry.recoveryDeadline.IsZero() {
			deadline := entry.recoveryDeadline
			status.RecoveryDeadline = &deadline
		}
		entry.mu.Unlock()
		snapshot[name] = status
	}
	return snapshot
}
