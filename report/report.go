/*
Package report computes department vacation-load summaries.

PURPOSE:
  Read-only reporting over a department's plans: per-staff approved and
  pending day totals, average split length, and each staff member's
  share of the department's total approved days. Percentages and
  averages use decimal arithmetic to keep API output exact.

  This is reporting only. No accrual or balance computation happens
  here or anywhere else in the system.

SEE ALSO:
  - approval/store.go: The Store interface this reads through
*/
package report

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/warp/vacation-engine/approval"
)

// =============================================================================
// SUMMARY TYPES
// =============================================================================

// StaffLoad is one staff member's vacation footprint in a department.
type StaffLoad struct {
	StaffID      approval.StaffID
	ApprovedDays int
	PendingDays  int
	PlanCount    int

	// ShareOfApproved is this staff member's percentage of the
	// department's approved days, to two decimal places.
	ShareOfApproved decimal.Decimal
}

// DepartmentSummary aggregates a department's plans.
type DepartmentSummary struct {
	DepartmentID      approval.DepartmentID
	TotalApprovedDays int
	TotalPendingDays  int
	PlanCount         int
	AvgApprovedDays   decimal.Decimal // per plan with approved days
	Staff             []StaffLoad
}

// =============================================================================
// BUILDER
// =============================================================================

// Builder computes summaries through the store.
type Builder struct {
	Store approval.Store
}

// DepartmentLoad summarizes every plan in the department. Pending days
// count plans still in the pipeline; approved days count terminal
// approvals only.
func (b *Builder) DepartmentLoad(ctx context.Context, dept approval.DepartmentID) (*DepartmentSummary, error) {
	plans, err := b.Store.ListDepartmentPlans(ctx, dept)
	if err != nil {
		return nil, err
	}

	summary := &DepartmentSummary{DepartmentID: dept}
	perStaff := make(map[approval.StaffID]*StaffLoad)

	approvedPlans := 0
	for _, p := range plans {
		load := perStaff[p.StaffID]
		if load == nil {
			load = &StaffLoad{StaffID: p.StaffID}
			perStaff[p.StaffID] = load
		}
		load.PlanCount++
		summary.PlanCount++

		switch {
		case p.Status == approval.StatusApproved:
			load.ApprovedDays += p.TotalDays
			summary.TotalApprovedDays += p.TotalDays
			if p.TotalDays > 0 {
				approvedPlans++
			}
		case p.Status.Pending():
			load.PendingDays += p.TotalDays
			summary.TotalPendingDays += p.TotalDays
		}
	}

	if approvedPlans > 0 {
		summary.AvgApprovedDays = decimal.NewFromInt(int64(summary.TotalApprovedDays)).
			Div(decimal.NewFromInt(int64(approvedPlans))).
			Round(2)
	}

	total := decimal.NewFromInt(int64(summary.TotalApprovedDays))
	for _, load := range perStaff {
		if total.IsPositive() {
			load.ShareOfApproved = decimal.NewFromInt(int64(load.ApprovedDays)).
				Mul(decimal.NewFromInt(100)).
				Div(total).
				Round(2)
		}
		summary.Staff = append(summary.Staff, *load)
	}

	sort.Slice(summary.Staff, func(i, j int) bool {
		return summary.Staff[i].StaffID < summary.Staff[j].StaffID
	})

	return summary, nil
}
