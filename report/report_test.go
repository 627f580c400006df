package report_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vacation-engine/approval"
	memstore "github.com/warp/vacation-engine/approval/store"
	"github.com/warp/vacation-engine/report"
)

// seedPlan persists a plan directly in the given status with the given
// day total. Reporting only reads plan rows, so the approval chain is
// not exercised here.
func seedPlan(t *testing.T, mem *memstore.Memory, staff approval.StaffID, dept approval.DepartmentID, status approval.PlanStatus, days int) {
	t.Helper()
	agg := &approval.Aggregate{
		Plan: approval.Plan{
			ID:           approval.PlanID(fmt.Sprintf("%s-%s-%d", staff, status, days)),
			StaffID:      staff,
			DepartmentID: dept,
			Status:       status,
			TotalDays:    days,
		},
	}
	require.NoError(t, mem.CreatePlan(context.Background(), agg))
}

func TestDepartmentLoad(t *testing.T) {
	// GIVEN: Two staff with a mix of approved, pending, and rejected plans
	mem := memstore.NewMemory()
	seedPlan(t, mem, "alice", "d1", approval.StatusApproved, 10)
	seedPlan(t, mem, "alice", "d1", approval.StatusFacilityPending, 3)
	seedPlan(t, mem, "bob", "d1", approval.StatusApproved, 5)
	seedPlan(t, mem, "bob", "d1", approval.StatusRejected, 7)
	seedPlan(t, mem, "carol", "d2", approval.StatusApproved, 20)

	b := &report.Builder{Store: mem}

	// WHEN: Summarizing d1
	summary, err := b.DepartmentLoad(context.Background(), "d1")
	require.NoError(t, err)

	// THEN: Rejected days count nowhere; d2 stays out of scope
	assert.Equal(t, 15, summary.TotalApprovedDays)
	assert.Equal(t, 3, summary.TotalPendingDays)
	assert.Equal(t, 4, summary.PlanCount)
	assert.Equal(t, "7.50", summary.AvgApprovedDays.StringFixed(2))

	require.Len(t, summary.Staff, 2)
	alice, bob := summary.Staff[0], summary.Staff[1]

	assert.Equal(t, approval.StaffID("alice"), alice.StaffID)
	assert.Equal(t, 10, alice.ApprovedDays)
	assert.Equal(t, 3, alice.PendingDays)
	assert.Equal(t, 2, alice.PlanCount)
	assert.Equal(t, "66.67", alice.ShareOfApproved.StringFixed(2))

	assert.Equal(t, approval.StaffID("bob"), bob.StaffID)
	assert.Equal(t, 5, bob.ApprovedDays)
	assert.Equal(t, 0, bob.PendingDays)
	assert.Equal(t, "33.33", bob.ShareOfApproved.StringFixed(2))
}

func TestDepartmentLoad_EmptyDepartment(t *testing.T) {
	mem := memstore.NewMemory()
	b := &report.Builder{Store: mem}

	summary, err := b.DepartmentLoad(context.Background(), "d1")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.PlanCount)
	assert.Empty(t, summary.Staff)
	assert.True(t, summary.AvgApprovedDays.IsZero())
}

func TestDepartmentLoad_NoApprovedDays_NoDivisionByZero(t *testing.T) {
	mem := memstore.NewMemory()
	seedPlan(t, mem, "alice", "d1", approval.StatusDepartmentPending, 4)

	b := &report.Builder{Store: mem}
	summary, err := b.DepartmentLoad(context.Background(), "d1")
	require.NoError(t, err)

	assert.Equal(t, 0, summary.TotalApprovedDays)
	assert.Equal(t, 4, summary.TotalPendingDays)
	require.Len(t, summary.Staff, 1)
	assert.True(t, summary.Staff[0].ShareOfApproved.IsZero())
}
