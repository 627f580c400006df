/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  Split dates travel as "YYYY-MM-DD"; timestamps as RFC3339.

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/vacation-engine/approval"
	"github.com/warp/vacation-engine/report"
	"github.com/warp/vacation-engine/store/sqlite"
)

const dateFormat = "2006-01-02"

// =============================================================================
// STAFF / DEPARTMENT
// =============================================================================

type StaffDTO struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email,omitempty"`
	DepartmentID string `json:"department_id,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
}

type CreateStaffRequest struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	DepartmentID string `json:"department_id"`
}

type DepartmentDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FacilityID  string `json:"facility_id,omitempty"`
	WorkspaceID string `json:"workspace_id,omitempty"`
}

type CreateDepartmentRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	FacilityID  string `json:"facility_id"`
	WorkspaceID string `json:"workspace_id"`
}

// =============================================================================
// PLANS
// =============================================================================

type SplitRangeRequest struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type CreatePlanRequest struct {
	StaffID        string              `json:"staff_id"`
	DepartmentID   string              `json:"department_id"`
	VacationTypeID string              `json:"vacation_type_id"`
	Notes          string              `json:"notes"`
	CreatedBy      string              `json:"created_by"`
	Splits         []SplitRangeRequest `json:"splits"`
}

type SplitDTO struct {
	ID        string `json:"id"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
	Status    string `json:"status"`
}

type ConflictingPlanDTO struct {
	PlanID    string `json:"plan_id"`
	StaffID   string `json:"staff_id"`
	StaffName string `json:"staff_name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Days      int    `json:"days"`
}

type ApprovalDTO struct {
	Level            int                  `json:"level"`
	ApproverID       string               `json:"approver_id"`
	Status           string               `json:"status"`
	Comments         string               `json:"comments,omitempty"`
	HasConflict      bool                 `json:"has_conflict"`
	ConflictReason   string               `json:"conflict_reason,omitempty"`
	ConflictingPlans []ConflictingPlanDTO `json:"conflicting_plans,omitempty"`
	DecidedAt        string               `json:"decided_at"`
}

type PlanDTO struct {
	ID             string        `json:"id"`
	StaffID        string        `json:"staff_id"`
	DepartmentID   string        `json:"department_id"`
	VacationTypeID string        `json:"vacation_type_id,omitempty"`
	TotalDays      int           `json:"total_days"`
	Status         string        `json:"status"`
	Notes          string        `json:"notes,omitempty"`
	CreatedBy      string        `json:"created_by"`
	SubmittedAt    string        `json:"submitted_at,omitempty"`
	CreatedAt      string        `json:"created_at"`
	Splits         []SplitDTO    `json:"splits,omitempty"`
	Approvals      []ApprovalDTO `json:"approvals,omitempty"`
}

// =============================================================================
// ACTIONS
// =============================================================================

type SubmitPlanRequest struct {
	ActorID string `json:"actor_id"`
}

type ActionRequestDTO struct {
	Level         int      `json:"level"`
	Action        string   `json:"action"`
	ApproverID    string   `json:"approver_id"`
	SplitIDs      []string `json:"split_ids"`
	Comment       string   `json:"comment"`
	Justification string   `json:"justification"`
}

// ConflictResponse is returned when a gate pauses an approval. The
// caller re-presents the decision and resubmits with a narrower split
// selection or a justification.
type ConflictResponse struct {
	Error     string                          `json:"error"`
	PlanID    string                          `json:"plan_id"`
	Conflicts map[string][]ConflictingPlanDTO `json:"conflicts,omitempty"`
	Approvals []ApprovalDTO                   `json:"approvals,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// REPORTS
// =============================================================================

type StaffLoadDTO struct {
	StaffID         string `json:"staff_id"`
	ApprovedDays    int    `json:"approved_days"`
	PendingDays     int    `json:"pending_days"`
	PlanCount       int    `json:"plan_count"`
	ShareOfApproved string `json:"share_of_approved"`
}

type DepartmentSummaryDTO struct {
	DepartmentID      string         `json:"department_id"`
	TotalApprovedDays int            `json:"total_approved_days"`
	TotalPendingDays  int            `json:"total_pending_days"`
	PlanCount         int            `json:"plan_count"`
	AvgApprovedDays   string         `json:"avg_approved_days"`
	Staff             []StaffLoadDTO `json:"staff"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toStaffDTO(st sqlite.Staff) StaffDTO {
	return StaffDTO{
		ID:           st.ID,
		Name:         st.Name,
		Email:        st.Email,
		DepartmentID: st.DepartmentID,
		CreatedAt:    st.CreatedAt.Format(time.RFC3339),
	}
}

func toPlanDTO(p approval.Plan) PlanDTO {
	dto := PlanDTO{
		ID:             string(p.ID),
		StaffID:        string(p.StaffID),
		DepartmentID:   string(p.DepartmentID),
		VacationTypeID: p.VacationTypeID,
		TotalDays:      p.TotalDays,
		Status:         string(p.Status),
		Notes:          p.Notes,
		CreatedBy:      string(p.CreatedBy),
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
	if p.SubmittedAt != nil {
		dto.SubmittedAt = p.SubmittedAt.Format(time.RFC3339)
	}
	return dto
}

func toAggregateDTO(agg *approval.Aggregate) PlanDTO {
	dto := toPlanDTO(agg.Plan)
	for _, s := range agg.Splits {
		dto.Splits = append(dto.Splits, SplitDTO{
			ID:        string(s.ID),
			StartDate: s.Range.Start.Format(dateFormat),
			EndDate:   s.Range.End.Format(dateFormat),
			Days:      s.Days,
			Status:    string(s.Status),
		})
	}
	for _, rec := range agg.Approvals {
		dto.Approvals = append(dto.Approvals, toApprovalDTO(rec))
	}
	return dto
}

func toApprovalDTO(rec approval.Approval) ApprovalDTO {
	dto := ApprovalDTO{
		Level:          int(rec.Level),
		ApproverID:     string(rec.ApproverID),
		Status:         string(rec.Status),
		Comments:       rec.Comments,
		HasConflict:    rec.HasConflict,
		ConflictReason: rec.ConflictReason,
		DecidedAt:      rec.DecidedAt.Format(time.RFC3339),
	}
	for _, c := range rec.ConflictingPlans {
		dto.ConflictingPlans = append(dto.ConflictingPlans, toConflictingPlanDTO(c))
	}
	return dto
}

func toConflictingPlanDTO(c approval.ConflictingPlan) ConflictingPlanDTO {
	return ConflictingPlanDTO{
		PlanID:    string(c.PlanID),
		StaffID:   string(c.StaffID),
		StaffName: c.StaffName,
		StartDate: c.Range.Start.Format(dateFormat),
		EndDate:   c.Range.End.Format(dateFormat),
		Days:      c.Days,
	}
}

func toSummaryDTO(s *report.DepartmentSummary) DepartmentSummaryDTO {
	dto := DepartmentSummaryDTO{
		DepartmentID:      string(s.DepartmentID),
		TotalApprovedDays: s.TotalApprovedDays,
		TotalPendingDays:  s.TotalPendingDays,
		PlanCount:         s.PlanCount,
		AvgApprovedDays:   s.AvgApprovedDays.StringFixed(2),
	}
	for _, load := range s.Staff {
		dto.Staff = append(dto.Staff, StaffLoadDTO{
			StaffID:         string(load.StaffID),
			ApprovedDays:    load.ApprovedDays,
			PendingDays:     load.PendingDays,
			PlanCount:       load.PlanCount,
			ShareOfApproved: load.ShareOfApproved.StringFixed(2),
		})
	}
	return dto
}
