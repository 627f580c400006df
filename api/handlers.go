/*
handlers.go - HTTP API handlers for the vacation approval system

PURPOSE:
  Exposes the approval workflow via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Staff / Departments:
    POST   /api/staff                    Create staff member
    GET    /api/staff                    List staff
    POST   /api/departments              Create department
    GET    /api/departments/{id}/plans   List plans in department
    GET    /api/departments/{id}/report  Vacation-load summary

  Plans:
    POST   /api/plans                    Create draft plan with splits
    GET    /api/plans/{id}               Plan aggregate
    DELETE /api/plans/{id}               Delete draft plan
    POST   /api/plans/{id}/submit        Enter the approval pipeline
    POST   /api/plans/{id}/actions       Approve/reject at a level

ERROR HANDLING:
  Domain errors map to HTTP statuses:
  - 400: Validation errors, invalid input
  - 404: Plan or staff not found
  - 409: Invalid state transition (stale action, concurrent actor)
  - 422: Conflict gate paused the approval (structured payload)
  - 500: Persistence errors

SECURITY NOTE:
  No authentication middleware. Approver identity and level arrive as
  explicit request fields resolved by the (external) identity layer.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/warp/vacation-engine/approval"
	"github.com/warp/vacation-engine/report"
	"github.com/warp/vacation-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Orchestrator *approval.Orchestrator
	Reports      *report.Builder
	Logger       *zap.Logger

	// MaxSplits bounds splits per plan at intake.
	MaxSplits int
}

// NewHandler creates a new handler around the store and orchestrator.
func NewHandler(store *sqlite.Store, orch *approval.Orchestrator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Store:        store,
		Orchestrator: orch,
		Reports:      &report.Builder{Store: store},
		Logger:       logger,
		MaxSplits:    approval.DefaultMaxSplits,
	}
}

// =============================================================================
// STAFF HANDLERS
// =============================================================================

// CreateStaff creates a staff identity record.
func (h *Handler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req CreateStaffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	st := sqlite.Staff{
		ID:           req.ID,
		Name:         req.Name,
		Email:        req.Email,
		DepartmentID: req.DepartmentID,
	}
	if err := h.Store.SaveStaff(r.Context(), st); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create staff", err)
		return
	}

	writeJSON(w, http.StatusCreated, toStaffDTO(st))
}

// ListStaff returns all staff.
func (h *Handler) ListStaff(w http.ResponseWriter, r *http.Request) {
	staff, err := h.Store.ListStaff(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list staff", err)
		return
	}

	dtos := make([]StaffDTO, len(staff))
	for i, st := range staff {
		dtos[i] = toStaffDTO(st)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateDepartment creates a department record.
func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	var req CreateDepartmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	d := sqlite.Department{
		ID:          req.ID,
		Name:        req.Name,
		FacilityID:  req.FacilityID,
		WorkspaceID: req.WorkspaceID,
	}
	if err := h.Store.SaveDepartment(r.Context(), d); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create department", err)
		return
	}

	writeJSON(w, http.StatusCreated, DepartmentDTO{
		ID:          d.ID,
		Name:        d.Name,
		FacilityID:  d.FacilityID,
		WorkspaceID: d.WorkspaceID,
	})
}

// ListDepartmentPlans returns all plans in a department.
func (h *Handler) ListDepartmentPlans(w http.ResponseWriter, r *http.Request) {
	dept := approval.DepartmentID(chi.URLParam(r, "id"))

	plans, err := h.Store.ListDepartmentPlans(r.Context(), dept)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}

	dtos := make([]PlanDTO, len(plans))
	for i, p := range plans {
		dtos[i] = toPlanDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// DepartmentReport returns the vacation-load summary for a department.
func (h *Handler) DepartmentReport(w http.ResponseWriter, r *http.Request) {
	dept := approval.DepartmentID(chi.URLParam(r, "id"))

	summary, err := h.Reports.DepartmentLoad(r.Context(), dept)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build report", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// CreatePlan creates a draft plan with its splits.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ranges := make([]approval.DateRange, 0, len(req.Splits))
	for _, s := range req.Splits {
		start, err := time.Parse(dateFormat, s.StartDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start_date (use YYYY-MM-DD)", err)
			return
		}
		end, err := time.Parse(dateFormat, s.EndDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid end_date (use YYYY-MM-DD)", err)
			return
		}
		rng, err := approval.NewDateRange(start, end)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid split range", err)
			return
		}
		ranges = append(ranges, rng)
	}

	agg, err := approval.NewPlan(approval.NewPlanInput{
		StaffID:        approval.StaffID(req.StaffID),
		DepartmentID:   approval.DepartmentID(req.DepartmentID),
		VacationTypeID: req.VacationTypeID,
		Notes:          req.Notes,
		CreatedBy:      approval.StaffID(req.CreatedBy),
		Ranges:         ranges,
		MaxSplits:      h.MaxSplits,
	}, time.Now().UTC())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	if err := h.Store.CreatePlan(r.Context(), agg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create plan", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAggregateDTO(agg))
}

// GetPlan returns a plan aggregate.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := approval.PlanID(chi.URLParam(r, "id"))

	agg, err := h.Store.LoadAggregate(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(agg))
}

// DeletePlan deletes a draft plan; splits and approvals cascade.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id := approval.PlanID(chi.URLParam(r, "id"))

	if err := h.Store.DeleteDraftPlan(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SubmitPlan moves a draft plan into the approval pipeline.
func (h *Handler) SubmitPlan(w http.ResponseWriter, r *http.Request) {
	id := approval.PlanID(chi.URLParam(r, "id"))

	// The body (actor attribution) is optional, but when one is sent it
	// has to parse.
	var req SubmitPlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	agg, err := h.Orchestrator.SubmitPlan(r.Context(), id, approval.StaffID(req.ActorID))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(agg))
}

// ActOnPlan applies one approver decision at a level.
func (h *Handler) ActOnPlan(w http.ResponseWriter, r *http.Request) {
	id := approval.PlanID(chi.URLParam(r, "id"))

	var req ActionRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	splitIDs := make([]approval.SplitID, len(req.SplitIDs))
	for i, s := range req.SplitIDs {
		splitIDs[i] = approval.SplitID(s)
	}

	agg, err := h.Orchestrator.Act(r.Context(), approval.ActionRequest{
		PlanID:        id,
		Level:         approval.Level(req.Level),
		Action:        approval.Action(req.Action),
		ApproverID:    approval.StaffID(req.ApproverID),
		SplitIDs:      splitIDs,
		Comment:       req.Comment,
		Justification: req.Justification,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAggregateDTO(agg))
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// writeDomainError maps domain errors to HTTP statuses and structured
// payloads. Gate errors are not failures: they carry the data the
// caller needs to re-present the decision.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	var conflictErr *approval.ConflictError
	if errors.As(err, &conflictErr) {
		resp := ConflictResponse{
			Error:     "conflict_detected",
			PlanID:    string(conflictErr.PlanID),
			Conflicts: make(map[string][]ConflictingPlanDTO, len(conflictErr.Conflicts)),
		}
		for splitID, conflicts := range conflictErr.Conflicts {
			dtos := make([]ConflictingPlanDTO, len(conflicts))
			for i, c := range conflicts {
				dtos[i] = toConflictingPlanDTO(c)
			}
			resp.Conflicts[string(splitID)] = dtos
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	var priorErr *approval.PriorConflictError
	if errors.As(err, &priorErr) {
		resp := ConflictResponse{
			Error:  "prior_conflict_unacknowledged",
			PlanID: string(priorErr.PlanID),
		}
		for _, rec := range priorErr.Approvals {
			resp.Approvals = append(resp.Approvals, toApprovalDTO(rec))
		}
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	switch {
	case errors.Is(err, approval.ErrValidation), errors.Is(err, approval.ErrInvalidRange):
		writeError(w, http.StatusBadRequest, "Validation failed", err)
	case approval.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, approval.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "Invalid state transition", err)
	default:
		h.Logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
