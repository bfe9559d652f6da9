package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/chorely/internal/model"
)

type AssignmentStore struct {
	db DBTX
}

func NewAssignmentStore(db DBTX) *AssignmentStore {
	return &AssignmentStore{db: db}
}

// AssignmentFilter narrows List. Empty fields match everything.
type AssignmentFilter struct {
	AssigneeID   string
	Status       model.AssignmentStatus
	RecurrenceID string
}

const assignmentCols = `id, tenant_id, instance_id, assignee_id, assigner_id, recurrence_id, occurrence_date, due_at, priority, status, created_at, updated_at`

func scanAssignment(sc scanner) (*model.ChoreAssignment, error) {
	var a model.ChoreAssignment
	var recurrenceID, occurrence sql.NullString
	err := sc.Scan(
		&a.ID, &a.TenantID, &a.InstanceID, &a.AssigneeID, &a.AssignerID,
		&recurrenceID, &occurrence, &a.DueAt, &a.Priority, &a.Status,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	a.RecurrenceID = stringPtr(recurrenceID)
	a.OccurrenceDate = stringPtr(occurrence)
	return &a, nil
}

// Create inserts a pending assignment.
func (s *AssignmentStore) Create(ctx context.Context, a model.ChoreAssignment) (*model.ChoreAssignment, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_assignments (id, tenant_id, instance_id, assignee_id, assigner_id, recurrence_id, occurrence_date, due_at, priority, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, a.TenantID, a.InstanceID, a.AssigneeID, a.AssignerID,
		nullString(a.RecurrenceID), nullString(a.OccurrenceDate), a.DueAt.UTC(), a.Priority, model.AssignmentPending,
	)
	if err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	return s.GetByID(ctx, a.TenantID, id)
}

// GetByID returns nil when the assignment does not exist in the tenant.
func (s *AssignmentStore) GetByID(ctx context.Context, tenantID, id string) (*model.ChoreAssignment, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentCols+` FROM chore_assignments WHERE id = ? AND tenant_id = ?`, id, tenantID)
	a, err := scanAssignment(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get assignment: %w", err)
	}
	return a, nil
}

func (s *AssignmentStore) List(ctx context.Context, tenantID string, f AssignmentFilter) ([]model.ChoreAssignment, error) {
	query := `SELECT ` + assignmentCols + ` FROM chore_assignments WHERE tenant_id = ?`
	args := []any{tenantID}
	if f.AssigneeID != "" {
		query += ` AND assignee_id = ?`
		args = append(args, f.AssigneeID)
	}
	if f.Status != "" {
		query += ` AND status = ?`
		args = append(args, f.Status)
	}
	if f.RecurrenceID != "" {
		query += ` AND recurrence_id = ?`
		args = append(args, f.RecurrenceID)
	}
	query += ` ORDER BY due_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()

	var out []model.ChoreAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// Transition moves the assignment to `to` only if its current status is one
// of `from`. It reports whether the row changed.
func (s *AssignmentStore) Transition(ctx context.Context, tenantID, id string, to model.AssignmentStatus, from ...model.AssignmentStatus) (bool, error) {
	if len(from) == 0 {
		return false, fmt.Errorf("transition assignment: no source states")
	}
	query := `UPDATE chore_assignments SET status = ? WHERE id = ? AND tenant_id = ? AND status IN (?` +
		strings.Repeat(", ?", len(from)-1) + `)`
	args := []any{to, id, tenantID}
	for _, st := range from {
		args = append(args, st)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("transition assignment: %w", err)
	}
	return affected(res)
}

// SetInstance re-points a pending or rejected assignment at a new instance.
func (s *AssignmentStore) SetInstance(ctx context.Context, tenantID, id, instanceID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chore_assignments SET instance_id = ?
		 WHERE id = ? AND tenant_id = ? AND status IN ('pending', 'rejected')`,
		instanceID, id, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("set assignment instance: %w", err)
	}
	return affected(res)
}
