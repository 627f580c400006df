/*
conflict.go - Staffing conflict detection over a department snapshot

PURPOSE:
  Given a plan being approved at level 1, determine whether any of its
  splits date-overlap a split belonging to a different staff member in
  the same department (or a configured sibling scope), where the other
  plan is pending at any level or already approved.

DESIGN:
  The detector is a pure function over an explicit snapshot. The store
  produces the candidate set ("other active splits in the department");
  the detector only does interval arithmetic. This keeps it trivially
  testable and keeps the orchestrator's atomicity story tractable:
  a conflicting plan changing between detection and commit is accepted,
  since conflicts are advisory and audited rather than safety-critical.

  Conflicts are computed once, at the point of first approval, when the
  overlapping data is freshest. Levels 2 and 3 only acknowledge that
  determination (see orchestrator.go) - no re-scan per level, and the
  audit trail stays attributable to the level that discovered it.

SEE ALSO:
  - store.go: CandidateSplit snapshot contract
  - orchestrator.go: Conflict and prior-conflict gates
*/
package approval

// CandidateSplit is one active split of another plan, as snapshotted by
// the store for conflict scanning. Active means the owning plan is in a
// pending status or approved.
type CandidateSplit struct {
	PlanID    PlanID
	StaffID   StaffID
	StaffName string
	Range     DateRange
	Days      int
}

// ConflictReport maps each target split to the overlapping vacations it
// collides with. Splits with no conflicts are absent from the map.
type ConflictReport struct {
	BySplit map[SplitID][]ConflictingPlan
}

// Empty reports whether no split has any conflict.
func (r ConflictReport) Empty() bool { return len(r.BySplit) == 0 }

// All returns the deduplicated union of conflicting plans across all
// target splits, in first-seen order. This is what gets snapshotted
// into the approval record.
func (r ConflictReport) All() []ConflictingPlan {
	seen := make(map[PlanID]map[DateRange]bool)
	var all []ConflictingPlan
	for _, split := range sortedSplitIDs(r.BySplit) {
		for _, c := range r.BySplit[split] {
			if seen[c.PlanID] == nil {
				seen[c.PlanID] = make(map[DateRange]bool)
			}
			if seen[c.PlanID][c.Range] {
				continue
			}
			seen[c.PlanID][c.Range] = true
			all = append(all, c)
		}
	}
	return all
}

// DetectConflicts tests every target split against every candidate.
// Candidates belonging to the target plan or the target staff member
// are skipped: a staff member never conflicts with themselves.
func DetectConflicts(target *Aggregate, candidates []CandidateSplit) ConflictReport {
	report := ConflictReport{BySplit: make(map[SplitID][]ConflictingPlan)}

	for _, split := range target.Splits {
		// Already-rejected splits are out of play and cannot conflict.
		if split.Status == SplitRejected {
			continue
		}
		for _, cand := range candidates {
			if cand.PlanID == target.Plan.ID || cand.StaffID == target.Plan.StaffID {
				continue
			}
			if split.Range.Overlaps(cand.Range) {
				report.BySplit[split.ID] = append(report.BySplit[split.ID], ConflictingPlan{
					PlanID:    cand.PlanID,
					StaffID:   cand.StaffID,
					StaffName: cand.StaffName,
					Range:     cand.Range,
					Days:      cand.Days,
				})
			}
		}
	}

	return report
}

// DetectConflictsFor restricts the scan to the splits the approver
// selected: a narrowed re-submission only gates on what will actually
// be approved.
func DetectConflictsFor(target *Aggregate, selected []SplitID, candidates []CandidateSplit) ConflictReport {
	selectedSet := make(map[SplitID]bool, len(selected))
	for _, id := range selected {
		selectedSet[id] = true
	}

	narrowed := &Aggregate{Plan: target.Plan}
	for _, s := range target.Splits {
		if selectedSet[s.ID] {
			narrowed.Splits = append(narrowed.Splits, s)
		}
	}
	return DetectConflicts(narrowed, candidates)
}

func sortedSplitIDs(m map[SplitID][]ConflictingPlan) []SplitID {
	ids := make([]SplitID, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	// Stable iteration order for deterministic snapshots.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j] < ids[j-1]; j-- {
			ids[j], ids[j-1] = ids[j-1], ids[j]
		}
	}
	return ids
}
