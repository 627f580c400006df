package approval_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/vacation-engine/approval"
)

// =============================================================================
// SUBMIT TRANSITIONS
// =============================================================================

func TestSubmit_Draft_MovesToDepartmentPending(t *testing.T) {
	next, err := approval.Submit(approval.StatusDraft)
	require.NoError(t, err)
	assert.Equal(t, approval.StatusDepartmentPending, next)
}

func TestSubmit_NonDraft_Fails(t *testing.T) {
	// Double-submit and submitting resolved plans must both fail.
	for _, status := range []approval.PlanStatus{
		approval.StatusDepartmentPending,
		approval.StatusFacilityPending,
		approval.StatusWorkspacePending,
		approval.StatusApproved,
		approval.StatusRejected,
	} {
		_, err := approval.Submit(status)
		assert.ErrorIs(t, err, approval.ErrInvalidTransition, "status %s", status)
	}
}

// =============================================================================
// TRANSITION TABLE - every row, exhaustively
// =============================================================================

func TestNextStatus_TransitionTable(t *testing.T) {
	cases := []struct {
		name        string
		current     approval.PlanStatus
		level       approval.Level
		action      approval.Action
		anyApproved bool
		want        approval.PlanStatus
	}{
		{"L1 approve with splits", approval.StatusDepartmentPending, approval.LevelDepartment, approval.ActionApprove, true, approval.StatusFacilityPending},
		{"L1 approve nothing kept", approval.StatusDepartmentPending, approval.LevelDepartment, approval.ActionApprove, false, approval.StatusRejected},
		{"L1 reject", approval.StatusDepartmentPending, approval.LevelDepartment, approval.ActionReject, false, approval.StatusRejected},
		{"L2 approve with splits", approval.StatusFacilityPending, approval.LevelFacility, approval.ActionApprove, true, approval.StatusWorkspacePending},
		{"L2 approve nothing kept", approval.StatusFacilityPending, approval.LevelFacility, approval.ActionApprove, false, approval.StatusRejected},
		{"L2 reject", approval.StatusFacilityPending, approval.LevelFacility, approval.ActionReject, true, approval.StatusRejected},
		{"L3 approve with splits", approval.StatusWorkspacePending, approval.LevelWorkspace, approval.ActionApprove, true, approval.StatusApproved},
		{"L3 approve nothing kept", approval.StatusWorkspacePending, approval.LevelWorkspace, approval.ActionApprove, false, approval.StatusRejected},
		{"L3 reject", approval.StatusWorkspacePending, approval.LevelWorkspace, approval.ActionReject, false, approval.StatusRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			next, err := approval.NextStatus(tc.current, tc.level, tc.action, tc.anyApproved)
			require.NoError(t, err)
			assert.Equal(t, tc.want, next)
		})
	}
}

func TestNextStatus_WrongLevelForStatus_Fails(t *testing.T) {
	// GIVEN: A plan waiting at department level
	// WHEN: The facility supervisor (level 2) acts on it
	// THEN: The action is a stale/illegal transition

	_, err := approval.NextStatus(approval.StatusDepartmentPending, approval.LevelFacility, approval.ActionApprove, true)
	assert.ErrorIs(t, err, approval.ErrInvalidTransition)

	var terr *approval.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, approval.StatusDepartmentPending, terr.Current)
	assert.Equal(t, approval.LevelFacility, terr.Level)
}

func TestNextStatus_TerminalStates_Fail(t *testing.T) {
	for _, status := range []approval.PlanStatus{approval.StatusApproved, approval.StatusRejected, approval.StatusDraft} {
		for _, level := range []approval.Level{approval.LevelDepartment, approval.LevelFacility, approval.LevelWorkspace} {
			_, err := approval.NextStatus(status, level, approval.ActionApprove, true)
			assert.ErrorIs(t, err, approval.ErrInvalidTransition, "%s at %s", status, level)
		}
	}
}

func TestNextStatus_InvalidLevelOrAction_Fails(t *testing.T) {
	_, err := approval.NextStatus(approval.StatusDepartmentPending, approval.Level(4), approval.ActionApprove, true)
	assert.ErrorIs(t, err, approval.ErrInvalidTransition)

	_, err = approval.NextStatus(approval.StatusDepartmentPending, approval.LevelDepartment, approval.Action("defer"), true)
	assert.ErrorIs(t, err, approval.ErrInvalidTransition)
}

// =============================================================================
// STATUS PROPERTIES
// =============================================================================

func TestPlanStatus_Predicates(t *testing.T) {
	assert.True(t, approval.StatusApproved.Terminal())
	assert.True(t, approval.StatusRejected.Terminal())
	assert.False(t, approval.StatusDraft.Terminal())

	assert.True(t, approval.StatusDepartmentPending.Pending())
	assert.True(t, approval.StatusFacilityPending.Pending())
	assert.True(t, approval.StatusWorkspacePending.Pending())
	assert.False(t, approval.StatusDraft.Pending())
	assert.False(t, approval.StatusApproved.Pending())
}

func TestLevel_ExpectedStatus(t *testing.T) {
	assert.Equal(t, approval.StatusDepartmentPending, approval.LevelDepartment.ExpectedStatus())
	assert.Equal(t, approval.StatusFacilityPending, approval.LevelFacility.ExpectedStatus())
	assert.Equal(t, approval.StatusWorkspacePending, approval.LevelWorkspace.ExpectedStatus())
}
