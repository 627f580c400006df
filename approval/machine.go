/*
machine.go - The approval state machine

PURPOSE:
  Owns the plan-level status lifecycle. All transitions live in one
  exhaustive table; nothing else in the codebase decides a next status.

LIFECYCLE:
  draft -> department_pending -> facility_pending -> workspace_pending -> approved
                  |                     |                    |
                  +---------------------+--------------------+--> rejected

  Status only ever moves forward; rejected is reachable from any
  pending state; approved and rejected are terminal.

TRANSITION TABLE (approve actions additionally depend on whether the
resolved split set kept at least one approved split):

  current             level  action   anyApproved  next
  ------------------  -----  -------  -----------  ------------------
  draft               -      submit   -            department_pending
  department_pending  1      approve  true         facility_pending
  department_pending  1      approve  false        rejected
  department_pending  1      reject   -            rejected
  facility_pending    2      approve  true         workspace_pending
  facility_pending    2      approve  false        rejected
  facility_pending    2      reject   -            rejected
  workspace_pending   3      approve  true         approved
  workspace_pending   3      approve  false        rejected
  workspace_pending   3      reject   -            rejected

  Anything else is a TransitionError (stale action, double submit,
  acting on an already-resolved plan).

SEE ALSO:
  - orchestrator.go: Runs the pre-approval gates before consulting
    this table, and persists the outcome atomically
*/
package approval

// Submit computes the transition for submitting a draft plan.
func Submit(current PlanStatus) (PlanStatus, error) {
	if current != StatusDraft {
		return "", &TransitionError{Current: current, Action: "submit"}
	}
	return StatusDepartmentPending, nil
}

// NextStatus computes the plan's next status for an approver action at
// a level. The caller must have already run the pre-approval gates and
// resolved the splits; anyApproved is the resolver's outcome and is
// ignored for reject actions.
func NextStatus(current PlanStatus, level Level, action Action, anyApproved bool) (PlanStatus, error) {
	if !level.Valid() || !action.Valid() {
		return "", &TransitionError{Current: current, Level: level, Action: action}
	}
	if current != level.ExpectedStatus() {
		return "", &TransitionError{Current: current, Level: level, Action: action}
	}

	if action == ActionReject {
		return StatusRejected, nil
	}

	// Approve with nothing left approved is a rejection in disguise.
	if !anyApproved {
		return StatusRejected, nil
	}

	switch level {
	case LevelDepartment:
		return StatusFacilityPending, nil
	case LevelFacility:
		return StatusWorkspacePending, nil
	case LevelWorkspace:
		return StatusApproved, nil
	}

	return "", &TransitionError{Current: current, Level: level, Action: action}
}
