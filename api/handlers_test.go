package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/vacation-engine/approval"
	"github.com/warp/vacation-engine/notify"
	"github.com/warp/vacation-engine/store/sqlite"
)

// =============================================================================
// TEST HARNESS - full router over an in-memory database
// =============================================================================

type testAPI struct {
	router http.Handler
	store  *sqlite.Store
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	orch := approval.NewOrchestrator(store, store, notify.NewOutbox(store, nil), nil)
	handler := NewHandler(store, orch, nil)
	return &testAPI{router: NewRouter(handler), store: store}
}

// do executes a request and decodes the JSON response into out (if non-nil).
func (a *testAPI) do(t *testing.T, method, path string, body any, out any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out))
	}
	return rec
}

// createPlan seeds a draft plan with two splits (5 + 3 days) over the API.
func (a *testAPI) createPlan(t *testing.T, staffID string) PlanDTO {
	t.Helper()
	var plan PlanDTO
	rec := a.do(t, http.MethodPost, "/api/plans", CreatePlanRequest{
		StaffID:      staffID,
		DepartmentID: "d1",
		Splits: []SplitRangeRequest{
			{StartDate: "2026-07-01", EndDate: "2026-07-05"},
			{StartDate: "2026-08-10", EndDate: "2026-08-12"},
		},
	}, &plan)
	require.Equal(t, http.StatusCreated, rec.Code)
	return plan
}

// submitPlan pushes a draft into department_pending over the API.
func (a *testAPI) submitPlan(t *testing.T, staffID string) PlanDTO {
	t.Helper()
	plan := a.createPlan(t, staffID)
	var out PlanDTO
	rec := a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/submit",
		SubmitPlanRequest{ActorID: staffID}, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	return out
}

func dtoSplitIDs(plan PlanDTO) []string {
	ids := make([]string, 0, len(plan.Splits))
	for _, s := range plan.Splits {
		ids = append(ids, s.ID)
	}
	return ids
}

// =============================================================================
// STAFF / DEPARTMENTS
// =============================================================================

func TestCreateAndListStaff(t *testing.T) {
	a := newTestAPI(t)

	var created StaffDTO
	rec := a.do(t, http.MethodPost, "/api/staff", CreateStaffRequest{
		ID: "alice", Name: "Alice Walker", Email: "alice@example.com", DepartmentID: "d1",
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "alice", created.ID)

	// Missing name is a 400
	rec = a.do(t, http.MethodPost, "/api/staff", CreateStaffRequest{ID: "x"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var all []StaffDTO
	rec = a.do(t, http.MethodGet, "/api/staff", nil, &all)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, all, 1)
	assert.Equal(t, "Alice Walker", all[0].Name)
}

func TestCreateDepartment(t *testing.T) {
	a := newTestAPI(t)

	var created DepartmentDTO
	rec := a.do(t, http.MethodPost, "/api/departments", CreateDepartmentRequest{
		ID: "d1", Name: "Nursing", FacilityID: "north",
	}, &created)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "north", created.FacilityID)
}

// =============================================================================
// PLAN LIFECYCLE
// =============================================================================

func TestCreatePlan_ReturnsDraftAggregate(t *testing.T) {
	a := newTestAPI(t)

	plan := a.createPlan(t, "alice")

	assert.Equal(t, string(approval.StatusDraft), plan.Status)
	assert.Equal(t, 8, plan.TotalDays)
	require.Len(t, plan.Splits, 2)
	assert.Equal(t, "2026-07-01", plan.Splits[0].StartDate)
	assert.Equal(t, 5, plan.Splits[0].Days)
	assert.Equal(t, string(approval.SplitPending), plan.Splits[0].Status)
}

func TestCreatePlan_BadDate(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/plans", CreatePlanRequest{
		StaffID:      "alice",
		DepartmentID: "d1",
		Splits:       []SplitRangeRequest{{StartDate: "07/01/2026", EndDate: "2026-07-05"}},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreatePlan_EndBeforeStart(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodPost, "/api/plans", CreatePlanRequest{
		StaffID:      "alice",
		DepartmentID: "d1",
		Splits:       []SplitRangeRequest{{StartDate: "2026-07-05", EndDate: "2026-07-01"}},
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPlan_NotFound(t *testing.T) {
	a := newTestAPI(t)

	rec := a.do(t, http.MethodGet, "/api/plans/missing", nil, nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeletePlan_DraftOnly(t *testing.T) {
	a := newTestAPI(t)
	draft := a.createPlan(t, "alice")

	rec := a.do(t, http.MethodDelete, "/api/plans/"+draft.ID, nil, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = a.do(t, http.MethodGet, "/api/plans/"+draft.ID, nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// A submitted plan refuses deletion with 409
	submitted := a.submitPlan(t, "bob")
	rec = a.do(t, http.MethodDelete, "/api/plans/"+submitted.ID, nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitPlan_DoubleSubmitIs409(t *testing.T) {
	a := newTestAPI(t)
	plan := a.submitPlan(t, "alice")

	assert.Equal(t, string(approval.StatusDepartmentPending), plan.Status)
	assert.NotEmpty(t, plan.SubmittedAt)

	rec := a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/submit", nil, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubmitPlan_MalformedBodyIs400(t *testing.T) {
	a := newTestAPI(t)
	plan := a.createPlan(t, "alice")

	// WHEN: The submit body is present but not valid JSON
	req := httptest.NewRequest(http.MethodPost, "/api/plans/"+plan.ID+"/submit",
		bytes.NewBufferString("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	// THEN: 400, and the plan never left draft
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var out PlanDTO
	got := a.do(t, http.MethodGet, "/api/plans/"+plan.ID, nil, &out)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Equal(t, string(approval.StatusDraft), out.Status)
}

// =============================================================================
// APPROVAL ACTIONS OVER HTTP
// =============================================================================

func TestActOnPlan_FullChain(t *testing.T) {
	a := newTestAPI(t)
	plan := a.submitPlan(t, "alice")

	statuses := []string{
		string(approval.StatusFacilityPending),
		string(approval.StatusWorkspacePending),
		string(approval.StatusApproved),
	}
	for level := 1; level <= 3; level++ {
		var out PlanDTO
		rec := a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/actions", ActionRequestDTO{
			Level:      level,
			Action:     "approve",
			ApproverID: fmt.Sprintf("approver-%d", level),
			SplitIDs:   dtoSplitIDs(plan),
		}, &out)
		require.Equal(t, http.StatusOK, rec.Code, "level %d", level)
		assert.Equal(t, statuses[level-1], out.Status)
		plan = out
	}

	require.Len(t, plan.Approvals, 3)
	assert.Equal(t, 8, plan.TotalDays)
}

func TestActOnPlan_ConflictGateReturns422WithPayload(t *testing.T) {
	// GIVEN: Bob's submitted plan overlaps Alice's
	a := newTestAPI(t)
	a.do(t, http.MethodPost, "/api/staff", CreateStaffRequest{ID: "bob", Name: "Bob Iverson"}, nil)
	a.submitPlan(t, "bob")
	alice := a.submitPlan(t, "alice")

	// WHEN: Level 1 approves without a justification
	var resp ConflictResponse
	rec := a.do(t, http.MethodPost, "/api/plans/"+alice.ID+"/actions", ActionRequestDTO{
		Level:      1,
		Action:     "approve",
		ApproverID: "dept-head",
		SplitIDs:   dtoSplitIDs(alice),
	}, &resp)

	// THEN: 422 with the per-split conflict map
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "conflict_detected", resp.Error)
	assert.Equal(t, alice.ID, resp.PlanID)
	require.NotEmpty(t, resp.Conflicts)
	for _, conflicts := range resp.Conflicts {
		require.NotEmpty(t, conflicts)
		assert.Equal(t, "Bob Iverson", conflicts[0].StaffName)
	}

	// WHEN: Retrying with a justification
	var out PlanDTO
	rec = a.do(t, http.MethodPost, "/api/plans/"+alice.ID+"/actions", ActionRequestDTO{
		Level:         1,
		Action:        "approve",
		ApproverID:    "dept-head",
		SplitIDs:      dtoSplitIDs(alice),
		Justification: "coverage arranged",
	}, &out)

	// THEN: The approval proceeds and the record carries the snapshot
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(approval.StatusFacilityPending), out.Status)
	require.Len(t, out.Approvals, 1)
	assert.True(t, out.Approvals[0].HasConflict)
	assert.Equal(t, "coverage arranged", out.Approvals[0].ConflictReason)
	assert.NotEmpty(t, out.Approvals[0].ConflictingPlans)
}

func TestActOnPlan_PriorConflictReturns422(t *testing.T) {
	a := newTestAPI(t)
	a.submitPlan(t, "bob")
	alice := a.submitPlan(t, "alice")

	a.do(t, http.MethodPost, "/api/plans/"+alice.ID+"/actions", ActionRequestDTO{
		Level: 1, Action: "approve", ApproverID: "dept-head",
		SplitIDs: dtoSplitIDs(alice), Justification: "accepted",
	}, nil)

	var resp ConflictResponse
	rec := a.do(t, http.MethodPost, "/api/plans/"+alice.ID+"/actions", ActionRequestDTO{
		Level: 2, Action: "approve", ApproverID: "fac-sup",
		SplitIDs: dtoSplitIDs(alice),
	}, &resp)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "prior_conflict_unacknowledged", resp.Error)
	require.Len(t, resp.Approvals, 1)
	assert.Equal(t, 1, resp.Approvals[0].Level)
	assert.True(t, resp.Approvals[0].HasConflict)
}

func TestActOnPlan_RejectAndReplay(t *testing.T) {
	a := newTestAPI(t)
	plan := a.submitPlan(t, "alice")

	// Reject without a comment is a 400
	rec := a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/actions", ActionRequestDTO{
		Level: 1, Action: "reject", ApproverID: "dept-head",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Reject with a comment terminates the plan
	var out PlanDTO
	rec = a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/actions", ActionRequestDTO{
		Level: 1, Action: "reject", ApproverID: "dept-head", Comment: "blackout period",
	}, &out)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(approval.StatusRejected), out.Status)
	assert.Equal(t, 0, out.TotalDays)
	for _, s := range out.Splits {
		assert.Equal(t, string(approval.SplitRejected), s.Status)
	}

	// Replaying the decision is a 409, nothing double-applies
	rec = a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/actions", ActionRequestDTO{
		Level: 1, Action: "reject", ApproverID: "dept-head", Comment: "blackout period",
	}, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestActOnPlan_EmptySplitSelectionIs400(t *testing.T) {
	a := newTestAPI(t)
	plan := a.submitPlan(t, "alice")

	rec := a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/actions", ActionRequestDTO{
		Level: 1, Action: "approve", ApproverID: "dept-head",
	}, nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestActOnPlan_WrongLevelIs409(t *testing.T) {
	a := newTestAPI(t)
	plan := a.submitPlan(t, "alice")

	rec := a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/actions", ActionRequestDTO{
		Level: 3, Action: "approve", ApproverID: "ws-sup", SplitIDs: dtoSplitIDs(plan),
	}, nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

// =============================================================================
// DEPARTMENT VIEWS
// =============================================================================

func TestListDepartmentPlansAndReport(t *testing.T) {
	a := newTestAPI(t)
	plan := a.submitPlan(t, "alice")
	for level := 1; level <= 3; level++ {
		rec := a.do(t, http.MethodPost, "/api/plans/"+plan.ID+"/actions", ActionRequestDTO{
			Level: level, Action: "approve", ApproverID: "sup",
			SplitIDs: dtoSplitIDs(plan),
		}, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	a.createPlan(t, "bob") // draft, counted in plan list but not in day totals

	var plans []PlanDTO
	rec := a.do(t, http.MethodGet, "/api/departments/d1/plans", nil, &plans)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, plans, 2)

	var summary DepartmentSummaryDTO
	rec = a.do(t, http.MethodGet, "/api/departments/d1/report", nil, &summary)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 8, summary.TotalApprovedDays)
	assert.Equal(t, 2, summary.PlanCount)
	require.Len(t, summary.Staff, 2)
	assert.Equal(t, "alice", summary.Staff[0].StaffID)
	assert.Equal(t, "100.00", summary.Staff[0].ShareOfApproved)
}
