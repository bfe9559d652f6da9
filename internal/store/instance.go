package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

// InstanceStore persists chore snapshots. Instances are insert-only.
type InstanceStore struct {
	db DBTX
}

func NewInstanceStore(db DBTX) *InstanceStore {
	return &InstanceStore{db: db}
}

const instanceCols = `id, tenant_id, template_id, title, description, points, difficulty, estimated_minutes, is_recurring, recurrence, created_by, created_at, updated_at`

func scanInstance(sc scanner) (*model.ChoreInstance, error) {
	var in model.ChoreInstance
	var templateID sql.NullString
	var rule string
	err := sc.Scan(
		&in.ID, &in.TenantID, &templateID, &in.Title, &in.Description, &in.Points,
		&in.Difficulty, &in.EstimatedMinutes, &in.IsRecurring, &rule, &in.CreatedBy,
		&in.CreatedAt, &in.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	in.TemplateID = stringPtr(templateID)
	if in.Recurrence, err = parseRule(rule); err != nil {
		return nil, err
	}
	return &in, nil
}

func (s *InstanceStore) Create(ctx context.Context, tenantID string, templateID *string, createdBy string, f model.ChoreFields) (*model.ChoreInstance, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_instances (id, tenant_id, template_id, title, description, points, difficulty, estimated_minutes, is_recurring, recurrence, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tenantID, nullString(templateID), f.Title, f.Description, f.Points, f.Difficulty,
		f.EstimatedMinutes, boolInt(f.IsRecurring), ruleString(f.Recurrence), createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert instance: %w", err)
	}
	return s.GetByID(ctx, tenantID, id)
}

// GetByID returns nil when the instance does not exist in the tenant.
func (s *InstanceStore) GetByID(ctx context.Context, tenantID, id string) (*model.ChoreInstance, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+instanceCols+` FROM chore_instances WHERE id = ? AND tenant_id = ?`, id, tenantID)
	in, err := scanInstance(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get instance: %w", err)
	}
	return in, nil
}

func (s *InstanceStore) ListByTemplate(ctx context.Context, tenantID, templateID string) ([]model.ChoreInstance, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+instanceCols+` FROM chore_instances WHERE tenant_id = ? AND template_id = ? ORDER BY created_at ASC`,
		tenantID, templateID,
	)
	if err != nil {
		return nil, fmt.Errorf("list instances: %w", err)
	}
	defer rows.Close()

	var instances []model.ChoreInstance
	for rows.Next() {
		in, err := scanInstance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instance: %w", err)
		}
		instances = append(instances, *in)
	}
	return instances, rows.Err()
}
