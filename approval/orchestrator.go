/*
orchestrator.go - Entry point for approver actions

PURPOSE:
  Sequences one approver action as a single logical unit:

    load aggregate
      -> conflict gate (level 1) / prior-conflict gate (levels 2, 3)
      -> split resolution
      -> state machine transition
      -> one atomic store write (optimistic precondition on status)
      -> fire-and-forget notification

  Gate failures return structured errors before any mutation occurs;
  the caller re-presents the decision to the human approver and
  resubmits with a narrower selection or a justification.

CONCURRENCY:
  Each action is a short-lived synchronous unit of work. Two
  simultaneous actions at the same level race on the store's status
  precondition; the loser gets ErrInvalidTransition on re-validation.
  Replaying an already-applied action is therefore safe and yields
  ErrInvalidTransition, never a duplicate transition.

SEE ALSO:
  - machine.go: Transition table
  - conflict.go: Detection over the department snapshot
  - resolver.go: Split status resolution
*/
package approval

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator wires the core workflow to its collaborators.
type Orchestrator struct {
	Store     Store
	Directory Directory
	Notifier  Notifier
	Logger    *zap.Logger

	// MaxSplits bounds splits per plan; 0 means DefaultMaxSplits.
	MaxSplits int

	// IncludeSiblings widens the conflict scan to sibling departments.
	IncludeSiblings bool

	// now is swappable for tests.
	now func() time.Time
}

// NewOrchestrator builds an orchestrator with sane defaults.
func NewOrchestrator(store Store, dir Directory, notifier Notifier, logger *zap.Logger) *Orchestrator {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Store:     store,
		Directory: dir,
		Notifier:  notifier,
		Logger:    logger,
		MaxSplits: DefaultMaxSplits,
		now:       time.Now,
	}
}

// ActionRequest is one approver decision, as submitted by the caller.
// Level and scope are explicit inputs resolved by the identity layer;
// the core holds no ambient role state.
type ActionRequest struct {
	PlanID     PlanID
	Level      Level
	Action     Action
	ApproverID StaffID

	// SplitIDs marks the splits to approve; the rest are rejected.
	// Ignored for reject actions.
	SplitIDs []SplitID

	// Comment is required for reject actions.
	Comment string

	// Justification overrides a detected (or inherited) conflict.
	Justification string
}

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitPlan moves a draft plan into the approval pipeline. TotalDays
// is fixed to the sum over all splits until the first resolution.
func (o *Orchestrator) SubmitPlan(ctx context.Context, planID PlanID, actorID StaffID) (*Aggregate, error) {
	agg, err := o.Store.LoadAggregate(ctx, planID)
	if err != nil {
		return nil, err
	}

	next, err := Submit(agg.Plan.Status)
	if err != nil {
		var terr *TransitionError
		if errors.As(err, &terr) {
			terr.PlanID = planID
		}
		return nil, err
	}

	now := o.now()
	write := ActionWrite{
		PlanID:       planID,
		ExpectStatus: StatusDraft,
		NewStatus:    next,
		TotalDays:    SumDays(agg.Splits, SplitPending),
		SubmittedAt:  &now,
	}
	if err := o.Store.ApplyAction(ctx, write); err != nil {
		return nil, err
	}

	o.Logger.Info("plan submitted",
		zap.String("plan_id", string(planID)),
		zap.String("actor_id", string(actorID)),
		zap.String("status", string(next)))

	agg.Plan.Status = next
	agg.Plan.TotalDays = write.TotalDays
	agg.Plan.SubmittedAt = &now
	return agg, nil
}

// =============================================================================
// ACT - approve or reject at a level
// =============================================================================

// Act applies one approver action. Returns the updated aggregate, or a
// structured gate/validation/transition error with nothing applied.
func (o *Orchestrator) Act(ctx context.Context, req ActionRequest) (*Aggregate, error) {
	if !req.Level.Valid() {
		return nil, &ValidationError{Field: "level", Message: "level must be 1, 2, or 3"}
	}
	if !req.Action.Valid() {
		return nil, &ValidationError{Field: "action", Message: "action must be approve or reject"}
	}
	if req.ApproverID == "" {
		return nil, &ValidationError{Field: "approver_id", Message: "required"}
	}

	agg, err := o.Store.LoadAggregate(ctx, req.PlanID)
	if err != nil {
		return nil, err
	}

	// Early staleness check; the store re-validates under the write lock.
	if agg.Plan.Status != req.Level.ExpectedStatus() {
		return nil, &TransitionError{
			PlanID:  req.PlanID,
			Current: agg.Plan.Status,
			Level:   req.Level,
			Action:  req.Action,
		}
	}

	switch req.Action {
	case ActionReject:
		return o.reject(ctx, agg, req)
	default:
		return o.approve(ctx, agg, req)
	}
}

func (o *Orchestrator) approve(ctx context.Context, agg *Aggregate, req ActionRequest) (*Aggregate, error) {
	justification := strings.TrimSpace(req.Justification)

	var (
		hasConflict bool
		snapshot    []ConflictingPlan
	)

	if req.Level == LevelDepartment {
		// Level 1: fresh overlap scan against the department snapshot.
		scope := ConflictScope{
			DepartmentID:    agg.Plan.DepartmentID,
			IncludeSiblings: o.IncludeSiblings,
		}
		candidates, err := o.Store.ListActiveSplits(ctx, scope)
		if err != nil {
			return nil, err
		}
		o.resolveNames(ctx, candidates)

		report := DetectConflictsFor(agg, req.SplitIDs, candidates)
		if !report.Empty() {
			if justification == "" {
				return nil, &ConflictError{PlanID: req.PlanID, Conflicts: report.BySplit}
			}
			hasConflict = true
			snapshot = report.All()
		}
	} else {
		// Levels 2 and 3: acknowledge the level-1 determination, don't
		// recompute it.
		flagged := agg.FlaggedApprovals(req.Level)
		if len(flagged) > 0 {
			if justification == "" {
				return nil, &PriorConflictError{PlanID: req.PlanID, Approvals: flagged}
			}
			hasConflict = true
			for _, rec := range flagged {
				snapshot = append(snapshot, rec.ConflictingPlans...)
			}
		}
	}

	res, err := ResolveSplits(agg.Splits, req.SplitIDs)
	if err != nil {
		return nil, err
	}

	next, err := NextStatus(agg.Plan.Status, req.Level, ActionApprove, res.AnyApproved)
	if err != nil {
		return nil, err
	}

	rec := Approval{
		PlanID:           req.PlanID,
		Level:            req.Level,
		ApproverID:       req.ApproverID,
		Status:           SplitApproved,
		Comments:         req.Comment,
		HasConflict:      hasConflict,
		ConflictReason:   justification,
		ConflictingPlans: snapshot,
		DecidedAt:        o.now(),
	}
	if !hasConflict {
		rec.ConflictReason = ""
	}

	return o.commit(ctx, agg, req, res, next, rec)
}

func (o *Orchestrator) reject(ctx context.Context, agg *Aggregate, req ActionRequest) (*Aggregate, error) {
	if strings.TrimSpace(req.Comment) == "" {
		return nil, &ValidationError{Field: "comment", Message: "rejection requires a comment"}
	}

	res := RejectAllSplits(agg.Splits)
	next, err := NextStatus(agg.Plan.Status, req.Level, ActionReject, false)
	if err != nil {
		return nil, err
	}

	rec := Approval{
		PlanID:     req.PlanID,
		Level:      req.Level,
		ApproverID: req.ApproverID,
		Status:     SplitRejected,
		Comments:   req.Comment,
		DecidedAt:  o.now(),
	}

	return o.commit(ctx, agg, req, res, next, rec)
}

// commit performs the single atomic write and the post-commit
// notification, then returns the updated aggregate.
func (o *Orchestrator) commit(ctx context.Context, agg *Aggregate, req ActionRequest, res Resolution, next PlanStatus, rec Approval) (*Aggregate, error) {
	write := ActionWrite{
		PlanID:       req.PlanID,
		ExpectStatus: req.Level.ExpectedStatus(),
		NewStatus:    next,
		TotalDays:    res.TotalDays,
		Splits:       res.Splits,
		Approval:     &rec,
	}
	if err := o.Store.ApplyAction(ctx, write); err != nil {
		return nil, err
	}

	o.Logger.Info("plan transitioned",
		zap.String("plan_id", string(req.PlanID)),
		zap.Int("level", int(req.Level)),
		zap.String("action", string(req.Action)),
		zap.String("status", string(next)),
		zap.Bool("has_conflict", rec.HasConflict))

	// Fire-and-forget: a notification failure never rolls anything back.
	ev := Event{
		ID:          uuid.NewString(),
		PlanID:      req.PlanID,
		NewStatus:   next,
		RecipientID: agg.Plan.StaffID,
		OccurredAt:  o.now(),
	}
	if err := o.Notifier.PlanTransitioned(ctx, ev); err != nil {
		o.Logger.Warn("notification failed",
			zap.String("plan_id", string(req.PlanID)),
			zap.Error(err))
	}

	agg.Plan.Status = next
	agg.Plan.TotalDays = res.TotalDays
	agg.Splits = res.Splits
	agg.Approvals = upsertApproval(agg.Approvals, rec)
	return agg, nil
}

// resolveNames decorates candidate splits with display names from the
// directory. Unresolvable ids keep an empty name rather than failing
// the scan.
func (o *Orchestrator) resolveNames(ctx context.Context, candidates []CandidateSplit) {
	if o.Directory == nil {
		return
	}
	names := make(map[StaffID]string)
	for i := range candidates {
		id := candidates[i].StaffID
		name, ok := names[id]
		if !ok {
			resolved, err := o.Directory.StaffName(ctx, id)
			if err != nil {
				o.Logger.Warn("staff name lookup failed", zap.String("staff_id", string(id)), zap.Error(err))
			}
			name = resolved
			names[id] = name
		}
		candidates[i].StaffName = name
	}
}

func upsertApproval(records []Approval, rec Approval) []Approval {
	for i := range records {
		if records[i].Level == rec.Level {
			records[i] = rec
			return records
		}
	}
	return append(records, rec)
}
