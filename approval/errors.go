/*
errors.go - Centralized error types for the approval workflow

PURPOSE:
  All error types in one place for consistency and discoverability.
  The taxonomy mirrors how callers must react:

  1. Validation errors     - Correct the input and resubmit
  2. State transition      - Re-fetch current state, do not blind-retry
  3. Conflict gates        - Re-present the decision to the approver
  4. Persistence errors    - The action did not happen; retry is safe

USAGE:
  Callers classify with errors.Is / errors.As:

    var conflict *approval.ConflictError
    if errors.As(err, &conflict) {
        // conflict.Conflicts carries the per-split conflict map
    }

SEE ALSO:
  - orchestrator.go: Produces these errors
  - api/handlers.go: Maps them to HTTP statuses
*/
package approval

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidTransition is returned when an action targets a plan whose
	// current status does not match the expected pending status for the
	// level (stale UI, concurrent actor, double-submit).
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrValidation is returned for malformed input: empty split selection
	// on an approve, missing rejection comment, missing justification.
	ErrValidation = errors.New("validation failed")

	// ErrConflictDetected is returned when a level-1 approval finds
	// overlapping splits and no override justification was supplied.
	// This is the intended pause point, not a system failure.
	ErrConflictDetected = errors.New("staffing conflict detected")

	// ErrPriorConflict is returned when a level-2/3 approval finds an
	// earlier-level conflict record that has not been acknowledged.
	ErrPriorConflict = errors.New("prior conflict unacknowledged")

	// ErrPersistence wraps store failures. The action is defined not to
	// have occurred, so blind retry is safe.
	ErrPersistence = errors.New("persistence failure")

	// ErrPlanNotFound is returned when the referenced plan doesn't exist.
	ErrPlanNotFound = errors.New("plan not found")

	// ErrStaffNotFound is returned when a staff id cannot be resolved.
	ErrStaffNotFound = errors.New("staff not found")

	// ErrInvalidRange is returned when a split's end date precedes its start.
	ErrInvalidRange = errors.New("invalid range: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry remediation context
// =============================================================================

// ValidationError describes a single malformed input. Never partially
// applied: the caller corrects and resubmits.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// TransitionError reports a stale or illegal action against the plan's
// current status.
type TransitionError struct {
	PlanID  PlanID
	Current PlanStatus
	Level   Level
	Action  Action
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition: plan %s is %q, cannot %s at %s level",
		e.PlanID, e.Current, e.Action, e.Level)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// ConflictError carries the per-split conflict map so the caller can
// re-present the decision (which splits to approve, which to reject,
// and a justification) to the human approver.
type ConflictError struct {
	PlanID    PlanID
	Conflicts map[SplitID][]ConflictingPlan
}

func (e *ConflictError) Error() string {
	n := 0
	for _, cs := range e.Conflicts {
		n += len(cs)
	}
	return fmt.Sprintf("conflict detected: plan %s has %d overlapping vacation(s)", e.PlanID, n)
}

func (e *ConflictError) Unwrap() error { return ErrConflictDetected }

// PriorConflictError surfaces the earlier-level approval records that
// carry has_conflict=true. The conflict was established at level 1;
// later levels acknowledge it rather than recompute it.
type PriorConflictError struct {
	PlanID    PlanID
	Approvals []Approval
}

func (e *PriorConflictError) Error() string {
	return fmt.Sprintf("prior conflict unacknowledged: plan %s has %d flagged approval(s)",
		e.PlanID, len(e.Approvals))
}

func (e *PriorConflictError) Unwrap() error { return ErrPriorConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to caller input and a
// corrected resubmission can succeed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrConflictDetected) ||
		errors.Is(err, ErrPriorConflict) ||
		errors.Is(err, ErrInvalidRange)
}

// IsRetryable returns true if replaying the identical call might succeed.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrPersistence)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPlanNotFound) || errors.Is(err, ErrStaffNotFound)
}
