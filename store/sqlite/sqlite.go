/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements the persistence collaborator (approval.Store), the identity
  collaborator (approval.Directory), and the notification outbox using
  SQLite. In production, the same patterns apply to PostgreSQL - only
  minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  approval.Store:     Plan aggregates, active-split scans, atomic action writes
  approval.Directory: Staff id -> display name
  notify.Sink:        Notification outbox rows

ATOMIC ACTION WRITES:
  ApplyAction runs inside one SQL transaction: the plan status update,
  every split status update, and the approval upsert commit together or
  not at all. The plan status update carries the optimistic
  precondition in its WHERE clause (status = expected); zero rows
  affected means a concurrent actor won the race and the caller gets a
  TransitionError instead of a silent double-apply.

KEY TABLES:
  departments:    Org scoping (facility/workspace lineage)
  staff:          Identity records
  plans:          One row per vacation plan
  splits:         Plan-owned date ranges, ON DELETE CASCADE
  approvals:      One row per (plan, level), conflict snapshot as JSON
  notifications:  Fire-and-forget transition events (outbox)

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/vacations.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - approval/store.go: Interface definitions and atomicity contract
  - approval/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/vacation-engine/approval"
)

const dateFormat = "2006-01-02"

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Org scoping: departments roll up to facilities and workspaces
	CREATE TABLE IF NOT EXISTS departments (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		facility_id TEXT NOT NULL DEFAULT '',
		workspace_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_departments_facility
		ON departments(facility_id);

	-- Staff identities (weak references from plans/approvals)
	CREATE TABLE IF NOT EXISTS staff (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT,
		department_id TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_staff_department
		ON staff(department_id);

	-- Vacation plans
	CREATE TABLE IF NOT EXISTS plans (
		id TEXT PRIMARY KEY,
		staff_id TEXT NOT NULL,
		department_id TEXT NOT NULL,
		vacation_type_id TEXT NOT NULL DEFAULT '',
		total_days INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		notes TEXT,
		created_by TEXT NOT NULL,
		submitted_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_plans_department_status
		ON plans(department_id, status);
	CREATE INDEX IF NOT EXISTS idx_plans_staff
		ON plans(staff_id);

	-- Splits: plan-owned date ranges, removed with their plan
	CREATE TABLE IF NOT EXISTS splits (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		days INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending'
	);

	CREATE INDEX IF NOT EXISTS idx_splits_plan
		ON splits(plan_id);
	-- Hot path: active-split scans for conflict detection
	CREATE INDEX IF NOT EXISTS idx_splits_status_dates
		ON splits(status, start_date, end_date);

	-- Approvals: at most one record per (plan, level); never deleted
	CREATE TABLE IF NOT EXISTS approvals (
		plan_id TEXT NOT NULL REFERENCES plans(id) ON DELETE CASCADE,
		level INTEGER NOT NULL,
		approver_id TEXT NOT NULL,
		status TEXT NOT NULL,
		comments TEXT,
		has_conflict BOOLEAN NOT NULL DEFAULT FALSE,
		conflict_reason TEXT,
		conflicting_json TEXT,
		decided_at TEXT NOT NULL,
		PRIMARY KEY (plan_id, level)
	);

	-- Notification outbox (fire-and-forget transition events)
	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		plan_id TEXT NOT NULL,
		new_status TEXT NOT NULL,
		recipient_id TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PLAN STORE (approval.Store interface)
// =============================================================================

// CreatePlan persists a draft plan with its splits atomically.
func (s *Store) CreatePlan(ctx context.Context, agg *approval.Aggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence(err)
	}
	defer tx.Rollback()

	p := agg.Plan
	_, err = tx.ExecContext(ctx, `
		INSERT INTO plans
		(id, staff_id, department_id, vacation_type_id, total_days, status, notes, created_by, submitted_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.StaffID, p.DepartmentID, p.VacationTypeID, p.TotalDays, p.Status,
		p.Notes, p.CreatedBy, nullTime(p.SubmittedAt), p.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return persistence(err)
	}

	for _, split := range agg.Splits {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO splits (id, plan_id, start_date, end_date, days, status)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			split.ID, split.PlanID,
			split.Range.Start.Format(dateFormat), split.Range.End.Format(dateFormat),
			split.Days, split.Status,
		)
		if err != nil {
			return persistence(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence(err)
	}
	return nil
}

// LoadAggregate reads a plan with splits and approval history in one
// structured read (three queries, one lock).
func (s *Store) LoadAggregate(ctx context.Context, id approval.PlanID) (*approval.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plan, err := s.scanPlan(ctx, id)
	if err != nil {
		return nil, err
	}

	agg := &approval.Aggregate{Plan: *plan}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, start_date, end_date, days, status
		FROM splits WHERE plan_id = ? ORDER BY start_date ASC
	`, id)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	for rows.Next() {
		split, err := scanSplit(rows)
		if err != nil {
			return nil, err
		}
		agg.Splits = append(agg.Splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, persistence(err)
	}

	arows, err := s.db.QueryContext(ctx, `
		SELECT plan_id, level, approver_id, status, comments, has_conflict,
		       conflict_reason, conflicting_json, decided_at
		FROM approvals WHERE plan_id = ? ORDER BY level ASC
	`, id)
	if err != nil {
		return nil, persistence(err)
	}
	defer arows.Close()

	for arows.Next() {
		rec, err := scanApproval(arows)
		if err != nil {
			return nil, err
		}
		agg.Approvals = append(agg.Approvals, rec)
	}
	if err := arows.Err(); err != nil {
		return nil, persistence(err)
	}

	return agg, nil
}

// DeleteDraftPlan deletes a draft plan; splits and approvals cascade.
func (s *Store) DeleteDraftPlan(ctx context.Context, id approval.PlanID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM plans WHERE id = ? AND status = ?", id, approval.StatusDraft)
	if err != nil {
		return persistence(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var status string
		err := s.db.QueryRowContext(ctx, "SELECT status FROM plans WHERE id = ?", id).Scan(&status)
		if err == sql.ErrNoRows {
			return approval.ErrPlanNotFound
		}
		if err != nil {
			return persistence(err)
		}
		return &approval.TransitionError{PlanID: id, Current: approval.PlanStatus(status), Action: "delete"}
	}
	return nil
}

// ListActiveSplits snapshots undecided and approved splits of pending
// or approved plans in scope. Rejected splits are out of play.
func (s *Store) ListActiveSplits(ctx context.Context, scope approval.ConflictScope) ([]approval.CandidateSplit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT s.plan_id, p.staff_id, s.start_date, s.end_date, s.days
		FROM splits s
		JOIN plans p ON p.id = s.plan_id
		WHERE s.status != 'rejected'
		  AND p.status IN ('department_pending', 'facility_pending', 'workspace_pending', 'approved')
	`
	args := []any{}
	if scope.IncludeSiblings {
		// The own department is always in scope, registered or not;
		// the departments table only widens the scan to siblings.
		query += `
		  AND (p.department_id = ?
		       OR p.department_id IN (
		           SELECT d.id FROM departments d
		           WHERE d.facility_id != '' AND d.facility_id =
		               (SELECT facility_id FROM departments WHERE id = ?)
		       ))`
		args = append(args, scope.DepartmentID, scope.DepartmentID)
	} else {
		query += ` AND p.department_id = ?`
		args = append(args, scope.DepartmentID)
	}
	query += ` ORDER BY s.start_date ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	var candidates []approval.CandidateSplit
	for rows.Next() {
		var (
			c          approval.CandidateSplit
			start, end string
		)
		if err := rows.Scan(&c.PlanID, &c.StaffID, &start, &end, &c.Days); err != nil {
			return nil, persistence(err)
		}
		c.Range = parseRange(start, end)
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

// ListDepartmentPlans returns all plans in a department, newest first.
func (s *Store) ListDepartmentPlans(ctx context.Context, dept approval.DepartmentID) ([]approval.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, staff_id, department_id, vacation_type_id, total_days, status,
		       notes, created_by, submitted_at, created_at
		FROM plans WHERE department_id = ? ORDER BY created_at DESC
	`, dept)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	var plans []approval.Plan
	for rows.Next() {
		plan, err := scanPlanRow(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	return plans, rows.Err()
}

// ApplyAction commits one approval action atomically. The plan update's
// WHERE clause carries the optimistic status precondition.
func (s *Store) ApplyAction(ctx context.Context, w approval.ActionWrite) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistence(err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE plans
		SET status = ?, total_days = ?, submitted_at = COALESCE(?, submitted_at)
		WHERE id = ? AND status = ?
	`, w.NewStatus, w.TotalDays, nullTime(w.SubmittedAt), w.PlanID, w.ExpectStatus)
	if err != nil {
		return persistence(err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		var status string
		err := tx.QueryRowContext(ctx, "SELECT status FROM plans WHERE id = ?", w.PlanID).Scan(&status)
		if err == sql.ErrNoRows {
			return approval.ErrPlanNotFound
		}
		if err != nil {
			return persistence(err)
		}
		return &approval.TransitionError{PlanID: w.PlanID, Current: approval.PlanStatus(status)}
	}

	for _, split := range w.Splits {
		if _, err := tx.ExecContext(ctx,
			"UPDATE splits SET status = ? WHERE id = ? AND plan_id = ?",
			split.Status, split.ID, w.PlanID,
		); err != nil {
			return persistence(err)
		}
	}

	if w.Approval != nil {
		rec := w.Approval
		conflictingJSON, err := json.Marshal(rec.ConflictingPlans)
		if err != nil {
			return persistence(err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO approvals
			(plan_id, level, approver_id, status, comments, has_conflict, conflict_reason, conflicting_json, decided_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(plan_id, level) DO UPDATE SET
				approver_id = excluded.approver_id,
				status = excluded.status,
				comments = excluded.comments,
				has_conflict = excluded.has_conflict,
				conflict_reason = excluded.conflict_reason,
				conflicting_json = excluded.conflicting_json,
				decided_at = excluded.decided_at
		`,
			rec.PlanID, rec.Level, rec.ApproverID, rec.Status, rec.Comments,
			rec.HasConflict, rec.ConflictReason, string(conflictingJSON),
			rec.DecidedAt.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return persistence(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return persistence(err)
	}
	return nil
}

// =============================================================================
// DIRECTORY (approval.Directory interface)
// =============================================================================

// StaffName resolves a staff id to a display name.
func (s *Store) StaffName(ctx context.Context, id approval.StaffID) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var name string
	err := s.db.QueryRowContext(ctx, "SELECT name FROM staff WHERE id = ?", id).Scan(&name)
	if err == sql.ErrNoRows {
		return "", approval.ErrStaffNotFound
	}
	if err != nil {
		return "", persistence(err)
	}
	return name, nil
}

// =============================================================================
// STAFF STORE
// =============================================================================

// Staff represents a staff identity record.
type Staff struct {
	ID           string
	Name         string
	Email        string
	DepartmentID string
	CreatedAt    time.Time
}

// SaveStaff saves a staff record.
func (s *Store) SaveStaff(ctx context.Context, st Staff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO staff (id, name, email, department_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			department_id = excluded.department_id
	`,
		st.ID, st.Name, st.Email, st.DepartmentID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return persistence(err)
	}
	return nil
}

// GetStaff retrieves a staff record by ID. Returns nil when missing.
func (s *Store) GetStaff(ctx context.Context, id string) (*Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var st Staff
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, email, department_id, created_at FROM staff WHERE id = ?", id,
	).Scan(&st.ID, &st.Name, &st.Email, &st.DepartmentID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistence(err)
	}
	st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &st, nil
}

// ListStaff returns all staff, ordered by name.
func (s *Store) ListStaff(ctx context.Context) ([]Staff, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, email, department_id, created_at FROM staff ORDER BY name")
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	var all []Staff
	for rows.Next() {
		var st Staff
		var createdAt string
		if err := rows.Scan(&st.ID, &st.Name, &st.Email, &st.DepartmentID, &createdAt); err != nil {
			return nil, persistence(err)
		}
		st.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		all = append(all, st)
	}
	return all, rows.Err()
}

// =============================================================================
// DEPARTMENT STORE
// =============================================================================

// Department is an org unit; facility and workspace ids give lineage.
type Department struct {
	ID          string
	Name        string
	FacilityID  string
	WorkspaceID string
	CreatedAt   time.Time
}

// SaveDepartment saves a department record.
func (s *Store) SaveDepartment(ctx context.Context, d Department) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO departments (id, name, facility_id, workspace_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			facility_id = excluded.facility_id,
			workspace_id = excluded.workspace_id
	`,
		d.ID, d.Name, d.FacilityID, d.WorkspaceID,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return persistence(err)
	}
	return nil
}

// GetDepartment retrieves a department by ID. Returns nil when missing.
func (s *Store) GetDepartment(ctx context.Context, id string) (*Department, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d Department
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, facility_id, workspace_id, created_at FROM departments WHERE id = ?", id,
	).Scan(&d.ID, &d.Name, &d.FacilityID, &d.WorkspaceID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, persistence(err)
	}
	d.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &d, nil
}

// =============================================================================
// NOTIFICATION OUTBOX (notify.Sink)
// =============================================================================

// SaveNotification appends a transition event to the outbox.
func (s *Store) SaveNotification(ctx context.Context, ev approval.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, plan_id, new_status, recipient_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`,
		ev.ID, ev.PlanID, ev.NewStatus, ev.RecipientID,
		ev.OccurredAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return persistence(err)
	}
	return nil
}

// ListNotifications returns outbox rows for a recipient, newest first.
func (s *Store) ListNotifications(ctx context.Context, recipient approval.StaffID) ([]approval.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, new_status, recipient_id, created_at
		FROM notifications WHERE recipient_id = ? ORDER BY created_at DESC
	`, recipient)
	if err != nil {
		return nil, persistence(err)
	}
	defer rows.Close()

	var events []approval.Event
	for rows.Next() {
		var ev approval.Event
		var createdAt string
		if err := rows.Scan(&ev.ID, &ev.PlanID, &ev.NewStatus, &ev.RecipientID, &createdAt); err != nil {
			return nil, persistence(err)
		}
		ev.OccurredAt, _ = time.Parse(time.RFC3339, createdAt)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// =============================================================================
// SCANNING HELPERS
// =============================================================================

func (s *Store) scanPlan(ctx context.Context, id approval.PlanID) (*approval.Plan, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, staff_id, department_id, vacation_type_id, total_days, status,
		       notes, created_by, submitted_at, created_at
		FROM plans WHERE id = ?
	`, id)

	plan, err := scanPlanRow(row)
	if err == sql.ErrNoRows {
		return nil, approval.ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlanRow(row rowScanner) (approval.Plan, error) {
	var (
		p           approval.Plan
		notes       sql.NullString
		submittedAt sql.NullString
		createdAt   string
	)
	err := row.Scan(&p.ID, &p.StaffID, &p.DepartmentID, &p.VacationTypeID,
		&p.TotalDays, &p.Status, &notes, &p.CreatedBy, &submittedAt, &createdAt)
	if err == sql.ErrNoRows {
		return p, err
	}
	if err != nil {
		return p, persistence(err)
	}

	p.Notes = notes.String
	if submittedAt.Valid {
		t, _ := time.Parse(time.RFC3339, submittedAt.String)
		p.SubmittedAt = &t
	}
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return p, nil
}

func scanSplit(rows *sql.Rows) (approval.Split, error) {
	var (
		split      approval.Split
		start, end string
	)
	if err := rows.Scan(&split.ID, &split.PlanID, &start, &end, &split.Days, &split.Status); err != nil {
		return split, persistence(err)
	}
	split.Range = parseRange(start, end)
	return split, nil
}

func scanApproval(rows *sql.Rows) (approval.Approval, error) {
	var (
		rec             approval.Approval
		comments        sql.NullString
		conflictReason  sql.NullString
		conflictingJSON sql.NullString
		decidedAt       string
	)
	err := rows.Scan(&rec.PlanID, &rec.Level, &rec.ApproverID, &rec.Status,
		&comments, &rec.HasConflict, &conflictReason, &conflictingJSON, &decidedAt)
	if err != nil {
		return rec, persistence(err)
	}

	rec.Comments = comments.String
	rec.ConflictReason = conflictReason.String
	if conflictingJSON.Valid && conflictingJSON.String != "" {
		if err := json.Unmarshal([]byte(conflictingJSON.String), &rec.ConflictingPlans); err != nil {
			return rec, persistence(err)
		}
	}
	rec.DecidedAt, _ = time.Parse(time.RFC3339, decidedAt)
	return rec, nil
}

func parseRange(start, end string) approval.DateRange {
	s, _ := time.Parse(dateFormat, start)
	e, _ := time.Parse(dateFormat, end)
	return approval.DateRange{Start: s, End: e}
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func persistence(err error) error {
	return fmt.Errorf("%w: %v", approval.ErrPersistence, err)
}
