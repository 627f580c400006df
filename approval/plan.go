/*
plan.go - Vacation plan aggregate: plans, splits, approval records

PURPOSE:
  Defines the persisted domain model. A Plan exclusively owns its
  Splits and its Approvals; approvals reference staff by id only.

INVARIANTS:
  - TotalDays always equals the sum of Days over approved splits
    (or over all splits before the first resolution)
  - A plan holds 1..MaxSplits splits
  - At most one approval record per (plan, level)
  - Approval records are never deleted; conflict snapshots never change

SEE ALSO:
  - machine.go: Owns PlanStatus transitions
  - resolver.go: Owns SplitStatus writes
*/
package approval

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxSplits bounds how many date ranges one plan may hold.
const DefaultMaxSplits = 6

// =============================================================================
// PLAN
// =============================================================================

// Plan is one staff member's vacation request for a period.
// Once submitted it is mutated only through the orchestrator.
type Plan struct {
	ID             PlanID
	StaffID        StaffID
	DepartmentID   DepartmentID
	VacationTypeID string
	TotalDays      int
	Status         PlanStatus
	Notes          string
	CreatedBy      StaffID
	SubmittedAt    *time.Time
	CreatedAt      time.Time
}

// Split is one contiguous date range within a plan. Status is set
// exactly once per approval action and never reverts to pending.
type Split struct {
	ID     SplitID
	PlanID PlanID
	Range  DateRange
	Days   int
	Status SplitStatus
}

// Approval is one decision record per (plan, level). Once a level's
// record is written with status approved it is immutable context for
// later levels.
type Approval struct {
	PlanID           PlanID
	Level            Level
	ApproverID       StaffID
	Status           SplitStatus // approved or rejected, never pending
	Comments         string
	HasConflict      bool
	ConflictReason   string
	ConflictingPlans []ConflictingPlan // snapshot at decision time
	DecidedAt        time.Time
}

// ConflictingPlan is a frozen description of another staff member's
// overlapping vacation. It is a snapshot, not a live reference: later
// changes to the other plan must not alter this record.
type ConflictingPlan struct {
	PlanID    PlanID    `json:"plan_id"`
	StaffID   StaffID   `json:"staff_id"`
	StaffName string    `json:"staff_name"`
	Range     DateRange `json:"range"`
	Days      int       `json:"days"`
}

// =============================================================================
// AGGREGATE - Plan with its owned records
// =============================================================================

// Aggregate is a plan loaded together with its splits and approval
// history, as a single read against the store.
type Aggregate struct {
	Plan      Plan
	Splits    []Split
	Approvals []Approval
}

// Split returns the split with the given id, or nil.
func (a *Aggregate) Split(id SplitID) *Split {
	for i := range a.Splits {
		if a.Splits[i].ID == id {
			return &a.Splits[i]
		}
	}
	return nil
}

// ApprovalAt returns the approval record for a level, or nil.
func (a *Aggregate) ApprovalAt(level Level) *Approval {
	for i := range a.Approvals {
		if a.Approvals[i].Level == level {
			return &a.Approvals[i]
		}
	}
	return nil
}

// FlaggedApprovals returns approval records carrying an unresolved
// conflict flag from earlier levels.
func (a *Aggregate) FlaggedApprovals(before Level) []Approval {
	var flagged []Approval
	for _, rec := range a.Approvals {
		if rec.Level < before && rec.HasConflict {
			flagged = append(flagged, rec)
		}
	}
	return flagged
}

// SumDays totals the day counts of splits matching the status.
func SumDays(splits []Split, status SplitStatus) int {
	total := 0
	for _, s := range splits {
		if s.Status == status {
			total += s.Days
		}
	}
	return total
}

// =============================================================================
// PLAN CONSTRUCTION
// =============================================================================

// NewPlanInput describes a draft plan to create.
type NewPlanInput struct {
	StaffID        StaffID
	DepartmentID   DepartmentID
	VacationTypeID string
	Notes          string
	CreatedBy      StaffID
	Ranges         []DateRange
	MaxSplits      int // 0 means DefaultMaxSplits
}

// NewPlan builds a draft plan with pending splits. TotalDays starts as
// the sum over all splits; the resolver narrows it on approval.
func NewPlan(in NewPlanInput, now time.Time) (*Aggregate, error) {
	if in.StaffID == "" {
		return nil, &ValidationError{Field: "staff_id", Message: "required"}
	}
	if in.DepartmentID == "" {
		return nil, &ValidationError{Field: "department_id", Message: "required"}
	}
	maxSplits := in.MaxSplits
	if maxSplits <= 0 {
		maxSplits = DefaultMaxSplits
	}
	if len(in.Ranges) == 0 {
		return nil, &ValidationError{Field: "splits", Message: "plan requires at least one split"}
	}
	if len(in.Ranges) > maxSplits {
		return nil, &ValidationError{Field: "splits", Message: "too many splits"}
	}

	createdBy := in.CreatedBy
	if createdBy == "" {
		createdBy = in.StaffID
	}

	planID := PlanID(uuid.NewString())
	plan := Plan{
		ID:             planID,
		StaffID:        in.StaffID,
		DepartmentID:   in.DepartmentID,
		VacationTypeID: in.VacationTypeID,
		Status:         StatusDraft,
		Notes:          in.Notes,
		CreatedBy:      createdBy,
		CreatedAt:      now,
	}

	splits := make([]Split, 0, len(in.Ranges))
	total := 0
	for _, r := range in.Ranges {
		if r.End.Before(r.Start) {
			return nil, ErrInvalidRange
		}
		days := r.Days()
		total += days
		splits = append(splits, Split{
			ID:     SplitID(uuid.NewString()),
			PlanID: planID,
			Range:  r,
			Days:   days,
			Status: SplitPending,
		})
	}
	plan.TotalDays = total

	return &Aggregate{Plan: plan, Splits: splits}, nil
}
