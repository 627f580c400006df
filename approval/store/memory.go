// Package store provides Store implementations.
package store

import (
	"context"
	"sync"

	"github.com/warp/vacation-engine/approval"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements approval.Store and approval.Directory in memory.
// ApplyAction takes the whole-store lock, so the optimistic status
// precondition is checked and applied atomically, same as a database
// transaction would.
type Memory struct {
	mu     sync.RWMutex
	plans  map[approval.PlanID]*approval.Aggregate
	staff  map[approval.StaffID]string
	parent map[approval.DepartmentID]string // department -> facility
}

func NewMemory() *Memory {
	return &Memory{
		plans:  make(map[approval.PlanID]*approval.Aggregate),
		staff:  make(map[approval.StaffID]string),
		parent: make(map[approval.DepartmentID]string),
	}
}

// AddStaff registers a staff display name for directory lookups.
func (m *Memory) AddStaff(id approval.StaffID, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.staff[id] = name
}

// AddDepartment registers a department under a facility, for sibling
// scope scans.
func (m *Memory) AddDepartment(id approval.DepartmentID, facilityID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.parent[id] = facilityID
}

// =============================================================================
// approval.Store
// =============================================================================

func (m *Memory) CreatePlan(_ context.Context, agg *approval.Aggregate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[agg.Plan.ID] = cloneAggregate(agg)
	return nil
}

func (m *Memory) LoadAggregate(_ context.Context, id approval.PlanID) (*approval.Aggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agg, ok := m.plans[id]
	if !ok {
		return nil, approval.ErrPlanNotFound
	}
	return cloneAggregate(agg), nil
}

func (m *Memory) DeleteDraftPlan(_ context.Context, id approval.PlanID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg, ok := m.plans[id]
	if !ok {
		return approval.ErrPlanNotFound
	}
	if agg.Plan.Status != approval.StatusDraft {
		return &approval.TransitionError{PlanID: id, Current: agg.Plan.Status, Action: "delete"}
	}
	delete(m.plans, id)
	return nil
}

func (m *Memory) ListActiveSplits(_ context.Context, scope approval.ConflictScope) ([]approval.CandidateSplit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inScope := func(dept approval.DepartmentID) bool {
		if dept == scope.DepartmentID {
			return true
		}
		if !scope.IncludeSiblings {
			return false
		}
		own, sib := m.parent[scope.DepartmentID], m.parent[dept]
		return own != "" && own == sib
	}

	var candidates []approval.CandidateSplit
	for _, agg := range m.plans {
		if !inScope(agg.Plan.DepartmentID) {
			continue
		}
		if !agg.Plan.Status.Pending() && agg.Plan.Status != approval.StatusApproved {
			continue
		}
		for _, s := range agg.Splits {
			if s.Status == approval.SplitRejected {
				continue
			}
			candidates = append(candidates, approval.CandidateSplit{
				PlanID:  agg.Plan.ID,
				StaffID: agg.Plan.StaffID,
				Range:   s.Range,
				Days:    s.Days,
			})
		}
	}
	return candidates, nil
}

func (m *Memory) ListDepartmentPlans(_ context.Context, dept approval.DepartmentID) ([]approval.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var plans []approval.Plan
	for _, agg := range m.plans {
		if agg.Plan.DepartmentID == dept {
			plans = append(plans, agg.Plan)
		}
	}
	return plans, nil
}

func (m *Memory) ApplyAction(_ context.Context, w approval.ActionWrite) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg, ok := m.plans[w.PlanID]
	if !ok {
		return approval.ErrPlanNotFound
	}

	// Optimistic precondition: the loser of a concurrent race fails
	// here instead of double-applying.
	if agg.Plan.Status != w.ExpectStatus {
		return &approval.TransitionError{PlanID: w.PlanID, Current: agg.Plan.Status}
	}

	agg.Plan.Status = w.NewStatus
	agg.Plan.TotalDays = w.TotalDays
	if w.SubmittedAt != nil {
		t := *w.SubmittedAt
		agg.Plan.SubmittedAt = &t
	}
	if w.Splits != nil {
		agg.Splits = cloneSplits(w.Splits)
	}
	if w.Approval != nil {
		rec := *w.Approval
		replaced := false
		for i := range agg.Approvals {
			if agg.Approvals[i].Level == rec.Level {
				agg.Approvals[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			agg.Approvals = append(agg.Approvals, rec)
		}
	}
	return nil
}

// =============================================================================
// approval.Directory
// =============================================================================

func (m *Memory) StaffName(_ context.Context, id approval.StaffID) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	name, ok := m.staff[id]
	if !ok {
		return "", approval.ErrStaffNotFound
	}
	return name, nil
}

// =============================================================================
// CLONING - Callers never share memory with the store
// =============================================================================

func cloneAggregate(agg *approval.Aggregate) *approval.Aggregate {
	out := &approval.Aggregate{Plan: agg.Plan}
	if agg.Plan.SubmittedAt != nil {
		t := *agg.Plan.SubmittedAt
		out.Plan.SubmittedAt = &t
	}
	out.Splits = cloneSplits(agg.Splits)
	for _, rec := range agg.Approvals {
		c := rec
		c.ConflictingPlans = append([]approval.ConflictingPlan(nil), rec.ConflictingPlans...)
		out.Approvals = append(out.Approvals, c)
	}
	return out
}

func cloneSplits(splits []approval.Split) []approval.Split {
	return append([]approval.Split(nil), splits...)
}
