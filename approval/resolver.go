/*
resolver.go - Split resolution: which splits survive an approval

PURPOSE:
  Given the full split set of a plan and the caller-supplied subset
  marked "to approve" (the remainder implicitly rejected), compute each
  split's resulting status and the plan's new aggregate day count.

RULES:
  - The "to approve" subset must be non-empty. An empty subset is a
    semantic full-rejection and must be submitted as a reject action,
    not an approve with zero splits.
  - A split's status is written once per action and never reverts to
    pending. Approved -> rejected is the only allowed later flip: a
    later level can narrow a previous level's approval, but a rejected
    split is never re-approved.
  - TotalDays is recomputed as the sum over the approved subset only.

SEE ALSO:
  - machine.go: Consumes the anyApproved outcome
  - plan.go: Split status invariants
*/
package approval

// Resolution is the outcome of resolving one approval action's split
// selection against a plan.
type Resolution struct {
	Splits      []Split // full split set with final statuses
	TotalDays   int     // sum of days over approved splits
	AnyApproved bool
}

// ResolveSplits applies an approve-selection to the plan's splits.
// Splits in the selection become approved; every other split becomes
// rejected. Returns a ValidationError without touching anything when
// the selection is empty, names an unknown split, or tries to
// re-approve a split a previous level already rejected.
func ResolveSplits(splits []Split, toApprove []SplitID) (Resolution, error) {
	if len(toApprove) == 0 {
		return Resolution{}, &ValidationError{
			Field:   "split_ids",
			Message: "approve requires at least one split; use reject to deny the whole plan",
		}
	}

	byID := make(map[SplitID]*Split, len(splits))
	resolved := make([]Split, len(splits))
	copy(resolved, splits)
	for i := range resolved {
		byID[resolved[i].ID] = &resolved[i]
	}

	selected := make(map[SplitID]bool, len(toApprove))
	for _, id := range toApprove {
		split, ok := byID[id]
		if !ok {
			return Resolution{}, &ValidationError{
				Field:   "split_ids",
				Message: "unknown split " + string(id),
			}
		}
		if split.Status == SplitRejected {
			return Resolution{}, &ValidationError{
				Field:   "split_ids",
				Message: "split " + string(id) + " was already rejected and cannot be re-approved",
			}
		}
		selected[id] = true
	}

	for i := range resolved {
		if selected[resolved[i].ID] {
			resolved[i].Status = SplitApproved
		} else {
			resolved[i].Status = SplitRejected
		}
	}

	return Resolution{
		Splits:      resolved,
		TotalDays:   SumDays(resolved, SplitApproved),
		AnyApproved: len(selected) > 0,
	}, nil
}

// RejectAllSplits resolves a reject action: every split not already
// rejected becomes rejected and the plan grants zero days.
func RejectAllSplits(splits []Split) Resolution {
	resolved := make([]Split, len(splits))
	copy(resolved, splits)
	for i := range resolved {
		resolved[i].Status = SplitRejected
	}
	return Resolution{Splits: resolved, TotalDays: 0, AnyApproved: false}
}
