package invoker

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestTracker(threshold int, recovery time.Duration) *healthTracker {
	endpoints := []EndpointConfig{{Name: "primary"}, {Name: "backup"}}
	return newHealthTracker("test", endpoints, threshold, recovery, zerolog.Nop())
}

func TestTrackerOpensAtThreshold(t *testing.T) {
	tracker := newTestTracker(2, 30*time.Second)
	now := time.Now()

	tracker.RecordFailure("primary", now, false)
	if ok, _ := tracker.Eligible("primary", now); !ok {
		t.Fatal("endpoint should remain eligible below threshold")
	}

	tracker.RecordFailure("primary", now, false)
	if ok, _ := tracker.Eligible("primary", now); ok {
		t.Fatal("endpoint should be ineligible after reaching threshold")
	}

	status := tracker.Snapshot()["primary"]
	if status.Available {
		t.Fatal("expected available=false after opening")
	}
	if status.RecoveryDeadline == nil {
		t.Fatal("open circuit must carry a recovery deadline")
	}
	if status.ConsecutiveFailures != 2 {
		t.Fatalf("expected 2 consecutive failures, got %d", status.ConsecutiveFailures)
	}
}

func TestTrackerSuccessResets(t *testing.T) {
	tracker := newTestTracker(2, 30*time.Second)
	now := time.Now()

	tracker.RecordFailure("primary", now, false)
	tracker.RecordSuccess("primary")

	status := tracker.Snapshot()["primary"]
	if !status.Available || status.ConsecutiveFailures != 0 || status.RecoveryDeadline != nil {
		t.Fatalf("success did not fully reset state: %+v", status)
	}
}

func TestTrackerSingleHalfOpenTrial(t *testing.T) {
	tracker := newTestTracker(1, 10*time.Second)
	now := time.Now()

	tracker.RecordFailure("primary", now, false)

	// Before the deadline nobody gets a trial.
	if ok, _ := tracker.Eligible("primary", now.Add(5*time.Second)); ok {
		t.Fatal("endpoint eligible before recovery deadline")
	}

	after := now.Add(11 * time.Second)
	ok, trial := tracker.Eligible("primary", after)
	if !ok || !trial {
		t.Fatalf("expected trial claim after deadline, got ok=%v trial=%v", ok, trial)
	}

	// The trial slot is claimed; concurrent callers are turned away.
	if ok, _ := tracker.Eligible("primary", after); ok {
		t.Fatal("second caller must not get a concurrent trial")
	}
}

func TestTrackerTrialFailureRearmsDeadline(t *testing.T) {
	tracker := newTestTracker(1, 10*time.Second)
	start := time.Now()

	tracker.RecordFailure("primary", start, false)
	trialAt := start.Add(11 * time.Second)
	if ok, trial := tracker.Eligible("primary", trialAt); !ok || !trial {
		t.Fatal("expected trial after deadline")
	}

	tracker.RecordFailure("primary", trialAt, true)

	status := tracker.Snapshot()["primary"]
	if status.Available {
		t.Fatal("circuit must stay open after failed trial")
	}
	if status.RecoveryDeadline == nil || !status.RecoveryDeadline.Equal(trialAt.Add(10*time.Second)) {
		t.Fatalf("trial failure did not re-arm deadline: %+v", status.RecoveryDeadline)
	}

	// Deadline re-armed, so the next trial waits for the new window.
	if ok, _ := tracker.Eligible("primary", trialAt.Add(5*time.Second)); ok {
		t.Fatal("trial permitted inside the re-armed window")
	}
	if ok, trial := tracker.Eligible("primary", trialAt.Add(11*time.Second)); !ok || !trial {
		t.Fatal("expected a fresh trial after the re-armed window")
	}
}

func TestTrackerTrialSuccessCloses(t *testing.T) {
	tracker := newTestTracker(1, 10*time.Second)
	start := time.Now()

	tracker.RecordFailure("primary", start, false)
	if ok, _ := tracker.Eligible("primary", start.Add(11*time.Second)); !ok {
		t.Fatal("expected trial after deadline")
	}
	tracker.RecordSuccess("primary")

	status := tracker.Snapshot()["primary"]
	if !status.Available || status.RecoveryDeadline != nil || status.ConsecutiveFailures != 0 {
		t.Fatalf("trial success did not close circuit: %+v", status)
	}
}

func TestTrackerCancelTrialFreesSlot(t *testing.T) {
	tracker := newTestTracker(1, 10*time.Second)
	start := time.Now()

	tracker.RecordFailure("primary", start, false)
	after := start.Add(11 * time.Second)
	if ok, trial := tracker.Eligible("primary", after); !ok || !trial {
		t.Fatal("expected trial claim")
	}

	tracker.CancelTrial("primary")

	// The returned slot is claimable again.
	if ok, trial := tracker.Eligible("primary", after); !ok || !trial {
		t.Fatal("cancelled trial slot was not returned")
	}
}

func TestTrackerStragglerFailureKeepsTrialClaimed(t *testing.T) {
	tracker := newTestTracker(1, 10*time.Second)
	start := time.Now()

	tracker.RecordFailure("primary", start, false)
	trialAt := start.Add(11 * time.Second)
	if ok, trial := tracker.Eligible("primary", trialAt); !ok || !trial {
		t.Fatal("expected trial claim after deadline")
	}

	// A slow attempt admitted before the circuit opened fails while the
	// trial is in flight. It holds no trial, so it must neither free the
	// slot nor move the deadline.
	tracker.RecordFailure("primary", trialAt.Add(time.Second), false)

	if ok, _ := tracker.Eligible("primary", trialAt.Add(2*time.Second)); ok {
		t.Fatal("straggler failure released a trial slot it never held")
	}
	status := tracker.Snapshot()["primary"]
	if status.RecoveryDeadline == nil || !status.RecoveryDeadline.Equal(start.Add(10*time.Second)) {
		t.Fatalf("straggler failure moved the recovery deadline: %+v", status.RecoveryDeadline)
	}

	// The real trial owner still settles the trial normally.
	tracker.RecordSuccess("primary")
	if ok, _ := tracker.Eligible("primary", trialAt.Add(3*time.Second)); !ok {
		t.Fatal("endpoint should close after the trial owner succeeds")
	}
}

func TestTrackerSnapshotSelfConsistent(t *testing.T) {
	tracker := newTestTracker(1, 10*time.Second)
	tracker.RecordFailure("primary", time.Now(), false)

	for name, status := range tracker.Snapshot() {
		if !status.Available && status.RecoveryDeadline == nil {
			t.Fatalf("%s: unavailable without a recovery deadline", name)
		}
	}
}
