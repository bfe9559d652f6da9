package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/recurrence"
)

type TemplateStore struct {
	db DBTX
}

func NewTemplateStore(db DBTX) *TemplateStore {
	return &TemplateStore{db: db}
}

const templateCols = `id, tenant_id, title, description, points, difficulty, estimated_minutes, is_recurring, recurrence, created_by, active, created_at, updated_at`

func scanTemplate(sc scanner) (*model.ChoreTemplate, error) {
	var t model.ChoreTemplate
	var rule string
	err := sc.Scan(
		&t.ID, &t.TenantID, &t.Title, &t.Description, &t.Points, &t.Difficulty,
		&t.EstimatedMinutes, &t.IsRecurring, &rule, &t.CreatedBy, &t.Active,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.Recurrence, err = parseRule(rule); err != nil {
		return nil, err
	}
	return &t, nil
}

// ruleString returns "" for a nil pattern.
func ruleString(p *recurrence.Pattern) string {
	if p == nil {
		return ""
	}
	return p.String()
}

func parseRule(rule string) (*recurrence.Pattern, error) {
	if rule == "" {
		return nil, nil
	}
	p, err := recurrence.Parse(rule)
	if err != nil {
		return nil, fmt.Errorf("parse stored rule %q: %w", rule, err)
	}
	return &p, nil
}

func (s *TemplateStore) Create(ctx context.Context, tenantID, createdBy string, f model.ChoreFields) (*model.ChoreTemplate, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_templates (id, tenant_id, title, description, points, difficulty, estimated_minutes, is_recurring, recurrence, created_by)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, tenantID, f.Title, f.Description, f.Points, f.Difficulty, f.EstimatedMinutes,
		boolInt(f.IsRecurring), ruleString(f.Recurrence), createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert template: %w", err)
	}
	return s.GetByID(ctx, tenantID, id)
}

// GetByID returns nil when the template does not exist in the tenant.
func (s *TemplateStore) GetByID(ctx context.Context, tenantID, id string) (*model.ChoreTemplate, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+templateCols+` FROM chore_templates WHERE id = ? AND tenant_id = ?`, id, tenantID)
	t, err := scanTemplate(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (s *TemplateStore) List(ctx context.Context, tenantID string, activeOnly bool) ([]model.ChoreTemplate, error) {
	query := `SELECT ` + templateCols + ` FROM chore_templates WHERE tenant_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY active DESC, title ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []model.ChoreTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

func (s *TemplateStore) Update(ctx context.Context, tenantID, id string, f model.ChoreFields) (*model.ChoreTemplate, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chore_templates SET title = ?, description = ?, points = ?, difficulty = ?, estimated_minutes = ?, is_recurring = ?, recurrence = ?
		 WHERE id = ? AND tenant_id = ?`,
		f.Title, f.Description, f.Points, f.Difficulty, f.EstimatedMinutes,
		boolInt(f.IsRecurring), ruleString(f.Recurrence), id, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("update template: %w", err)
	}
	return s.GetByID(ctx, tenantID, id)
}

// Deactivate marks an active template inactive. It reports whether a row changed.
func (s *TemplateStore) Deactivate(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chore_templates SET active = 0 WHERE id = ? AND tenant_id = ? AND active = 1`,
		id, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate template: %w", err)
	}
	return affected(res)
}

// CountInstances returns how many instances reference the template.
func (s *TemplateStore) CountInstances(ctx context.Context, id string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chore_instances WHERE template_id = ?`, id).Scan(&n); err != nil {
		return 0, fmt.Errorf("count instances: %w", err)
	}
	return n, nil
}
