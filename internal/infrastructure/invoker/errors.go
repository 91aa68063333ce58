package invoker

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoEndpoints indicates a scope resolved to an empty endpoint list. It is
// returned when a manager is built, never from Call.
var ErrNoEndpoints = errors.New("no endpoints configured")

// AttemptError records the outcome of one failed endpoint attempt.
type AttemptError struct {
	Endpoint string
	Err      error
}

func (e AttemptError) Error() string {
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Err)
}

func (e AttemptError) Unwrap() error {
	return e.Err
}

// AggregateError is returned when every ranked candidate was ineligible,
// gate-saturated, or failed. Attempts holds the (endpoint, error) pairs in
// the order they were tried. Callers should treat it as "operation currently
// unavailable".
type AggregateError struct {
	Scope     string
	Operation string
	Attempts  []AttemptError
}

func (e *AggregateError) Error() string {
	if len(e.Attempts) == 0 {
		return fmt.Sprintf("invoker: %s/%s: no eligible endpoint", e.Scope, e.Operation)
	}
	parts := make([]string, 0, len(e.Attempts))
	for _, attempt := range e.Attempts {
		parts = append(parts, attempt.Error())
	}
	return fmt.Sprintf("invoker: %s/%s: all endpoints failed: %s", e.Scope, e.Operation, strings.Join(parts, "; "))
}

// Unwrap exposes the attempt errors to errors.Is/errors.As.
func (e *AggregateError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i := range e.Attempts {
		errs[i] = e.Attempts[i].Err
	}
	return errs
}
