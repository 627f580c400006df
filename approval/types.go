/*
Package approval implements the vacation approval workflow.

PURPOSE:
  This package contains the core domain logic for multi-level vacation
  approval: a three-level sign-off chain (department head, facility
  supervisor, workspace supervisor) over plans composed of date-range
  splits, with staffing-conflict detection gating the first approval.

KEY CONCEPTS IN THIS FILE (types.go):
  - PlanStatus / SplitStatus: Closed status enums (no loose strings)
  - Level: One of the three sequential approval authorities
  - Action: What an approver does (approve or reject)
  - DateRange: An inclusive start/end date pair with day arithmetic

DESIGN PRINCIPLES:
  1. Illegal states unrepresentable: statuses are closed enums, every
     transition goes through the state machine's table
  2. Purity: conflict detection and split resolution are pure functions
     over explicit snapshots, never live queries
  3. Auditability: every approval decision is a permanent record,
     conflict snapshots are frozen at decision time

USAGE:
  rng, err := approval.NewDateRange(start, end)
  split := approval.Split{Range: rng, Days: rng.Days()}

SEE ALSO:
  - plan.go: Plan, Split, Approval aggregates
  - machine.go: Status transition table
  - conflict.go: Overlap detection
*/
package approval

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type PlanID string
type SplitID string
type StaffID string
type DepartmentID string

// =============================================================================
// PLAN STATUS - The approval lifecycle
// =============================================================================

// PlanStatus is the plan-level lifecycle state. Transitions are owned
// exclusively by the state machine in machine.go; nothing else writes it.
type PlanStatus string

const (
	StatusDraft             PlanStatus = "draft"
	StatusDepartmentPending PlanStatus = "department_pending"
	StatusFacilityPending   PlanStatus = "facility_pending"
	StatusWorkspacePending  PlanStatus = "workspace_pending"
	StatusApproved          PlanStatus = "approved"
	StatusRejected          PlanStatus = "rejected"
)

// Terminal reports whether no further action is possible on the plan.
func (s PlanStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Pending reports whether the plan is awaiting an approval decision.
func (s PlanStatus) Pending() bool {
	switch s {
	case StatusDepartmentPending, StatusFacilityPending, StatusWorkspacePending:
		return true
	}
	return false
}

func (s PlanStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusDepartmentPending, StatusFacilityPending,
		StatusWorkspacePending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// =============================================================================
// SPLIT STATUS
// =============================================================================

type SplitStatus string

const (
	SplitPending  SplitStatus = "pending"
	SplitApproved SplitStatus = "approved"
	SplitRejected SplitStatus = "rejected"
)

// =============================================================================
// APPROVAL LEVEL - The three sequential authorities
// =============================================================================

type Level int

const (
	LevelDepartment Level = 1 // Department Head
	LevelFacility   Level = 2 // Facility Supervisor
	LevelWorkspace  Level = 3 // Workspace Supervisor
)

func (l Level) Valid() bool {
	return l >= LevelDepartment && l <= LevelWorkspace
}

func (l Level) String() string {
	switch l {
	case LevelDepartment:
		return "department"
	case LevelFacility:
		return "facility"
	case LevelWorkspace:
		return "workspace"
	}
	return fmt.Sprintf("level(%d)", int(l))
}

// ExpectedStatus returns the plan status at which this level may act.
func (l Level) ExpectedStatus() PlanStatus {
	switch l {
	case LevelDepartment:
		return StatusDepartmentPending
	case LevelFacility:
		return StatusFacilityPending
	case LevelWorkspace:
		return StatusWorkspacePending
	}
	return ""
}

// =============================================================================
// ACTION
// =============================================================================

type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

func (a Action) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// =============================================================================
// DATE RANGE - Inclusive [Start, End] with day arithmetic
// =============================================================================

// DateRange is an inclusive date interval. Times are normalized to
// midnight UTC; callers only ever care about whole days.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange normalizes and validates a range. End must not precede Start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	r := DateRange{Start: dateOnly(start), End: dateOnly(end)}
	if r.End.Before(r.Start) {
		return DateRange{}, ErrInvalidRange
	}
	return r, nil
}

// Days returns the inclusive day count: a one-day vacation has Days() == 1.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Overlaps reports whether two inclusive ranges share at least one day:
// r.Start <= other.End && r.End >= other.Start.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.Start.After(other.End) && !r.End.Before(other.Start)
}

func (r DateRange) String() string {
	return r.Start.Format("2006-01-02") + ".." + r.End.Format("2006-01-02")
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date is a convenience constructor used throughout tests and seeding.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
