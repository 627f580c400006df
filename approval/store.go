/*
store.go - Boundary contracts consumed by the approval workflow

PURPOSE:
  Defines the interfaces between the core and its external
  collaborators: the transactional persistence store, the identity
  directory, and the notification sink. Implementations live in
  store/sqlite (production) and approval/store (in-memory, tests).

ATOMICITY CONTRACT:
  ApplyAction is the single write path for an approval action. The
  plan status write, split status writes, and the approval record must
  commit together or not at all. Every write carries an optimistic
  precondition (ExpectStatus): if the plan's status changed since the
  caller loaded it, the store must refuse with ErrInvalidTransition
  instead of double-applying. The loser of a concurrent race therefore
  re-validates rather than silently winning.

SEE ALSO:
  - orchestrator.go: The only caller of ApplyAction
  - store/sqlite/sqlite.go: Production implementation
  - approval/store/memory.go: Test implementation
*/
package approval

import (
	"context"
	"time"
)

// =============================================================================
// PERSISTENCE COLLABORATOR
// =============================================================================

// ConflictScope describes which departments' active splits the
// conflict detector should scan against.
type ConflictScope struct {
	DepartmentID DepartmentID

	// IncludeSiblings widens the scan to departments sharing the same
	// parent facility. Off by default.
	IncludeSiblings bool
}

// ActionWrite is one atomic approval mutation: all fields commit as a
// unit or the plan is untouched.
type ActionWrite struct {
	PlanID PlanID

	// ExpectStatus is the optimistic precondition: write only if the
	// plan's status still equals this value.
	ExpectStatus PlanStatus

	NewStatus   PlanStatus
	TotalDays   int
	SubmittedAt *time.Time // set on submit only

	// Splits carries the full resolved split set; nil means statuses
	// are untouched (submit).
	Splits []Split

	// Approval is the record to write for (plan, level); nil on submit.
	Approval *Approval
}

// Store is the persistence collaborator. Plans and their splits are
// exclusively mutated through ApplyAction once submitted; no other
// write path may touch plan.status or split.status.
type Store interface {
	// CreatePlan persists a draft aggregate (plan plus splits).
	CreatePlan(ctx context.Context, agg *Aggregate) error

	// LoadAggregate reads a plan with its splits and approval history
	// as one structured read.
	LoadAggregate(ctx context.Context, id PlanID) (*Aggregate, error)

	// DeleteDraftPlan removes a draft plan and cascades to its splits.
	// Refuses with ErrInvalidTransition once the plan left draft.
	DeleteDraftPlan(ctx context.Context, id PlanID) error

	// ListActiveSplits snapshots other plans' splits in scope whose
	// owning plan is pending at any level or approved. Read-only; the
	// snapshot is not serialized against concurrent mutation.
	ListActiveSplits(ctx context.Context, scope ConflictScope) ([]CandidateSplit, error)

	// ListDepartmentPlans returns all plans in a department.
	ListDepartmentPlans(ctx context.Context, dept DepartmentID) ([]Plan, error)

	// ApplyAction commits one approval action atomically under the
	// optimistic precondition described above.
	ApplyAction(ctx context.Context, w ActionWrite) error
}

// =============================================================================
// IDENTITY COLLABORATOR
// =============================================================================

// Directory resolves staff identities for conflict reporting and
// approval attribution. Read-only: the core never writes identities.
type Directory interface {
	// StaffName resolves a staff id to a display name.
	// Returns ErrStaffNotFound for unknown ids.
	StaffName(ctx context.Context, id StaffID) (string, error)
}

// =============================================================================
// NOTIFICATION COLLABORATOR
// =============================================================================

// Event describes a plan status transition worth telling someone about.
type Event struct {
	ID          string
	PlanID      PlanID
	NewStatus   PlanStatus
	RecipientID StaffID
	OccurredAt  time.Time
}

// Notifier receives transition events. Fire-and-forget: a notifier
// error never fails the transition that produced the event.
type Notifier interface {
	PlanTransitioned(ctx context.Context, ev Event) error
}

// NopNotifier discards events. Useful in tests and as a default.
type NopNotifier struct{}

func (NopNotifier) PlanTransitioned(context.Context, Event) error { return nil }
