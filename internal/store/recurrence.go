package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

type RecurrenceStore struct {
	db DBTX
}

func NewRecurrenceStore(db DBTX) *RecurrenceStore {
	return &RecurrenceStore{db: db}
}

const recurrenceCols = `id, tenant_id, template_id, assignee_id, assigner_id, recurrence, priority, last_generated_date, active, needs_attention, created_at, updated_at`

func scanRecurrence(sc scanner) (*model.ChoreRecurrence, error) {
	var r model.ChoreRecurrence
	err := sc.Scan(
		&r.ID, &r.TenantID, &r.TemplateID, &r.AssigneeID, &r.AssignerID, &r.Pattern,
		&r.Priority, &r.LastGeneratedDate, &r.Active, &r.NeedsAttention,
		&r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RecurrenceStore) queryList(ctx context.Context, query string, args ...any) ([]model.ChoreRecurrence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list recurrences: %w", err)
	}
	defer rows.Close()

	var out []model.ChoreRecurrence
	for rows.Next() {
		r, err := scanRecurrence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recurrence: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// Create opens a series. r.LastGeneratedDate is the last date already covered
// by an assignment.
func (s *RecurrenceStore) Create(ctx context.Context, r model.ChoreRecurrence) (*model.ChoreRecurrence, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chore_recurrences (id, tenant_id, template_id, assignee_id, assigner_id, recurrence, priority, last_generated_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, r.TenantID, r.TemplateID, r.AssigneeID, r.AssignerID, r.Pattern.String(), r.Priority, r.LastGeneratedDate,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recurrence: %w", err)
	}
	return s.GetByID(ctx, r.TenantID, id)
}

// GetByID returns nil when the series does not exist in the tenant.
func (s *RecurrenceStore) GetByID(ctx context.Context, tenantID, id string) (*model.ChoreRecurrence, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recurrenceCols+` FROM chore_recurrences WHERE id = ? AND tenant_id = ?`, id, tenantID)
	r, err := scanRecurrence(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recurrence: %w", err)
	}
	return r, nil
}

// ListActive returns every active series across all tenants.
func (s *RecurrenceStore) ListActive(ctx context.Context) ([]model.ChoreRecurrence, error) {
	return s.queryList(ctx, `SELECT `+recurrenceCols+` FROM chore_recurrences WHERE active = 1 ORDER BY created_at ASC, id ASC`)
}

func (s *RecurrenceStore) ListByTenant(ctx context.Context, tenantID string) ([]model.ChoreRecurrence, error) {
	return s.queryList(ctx,
		`SELECT `+recurrenceCols+` FROM chore_recurrences WHERE tenant_id = ? ORDER BY active DESC, created_at ASC`,
		tenantID,
	)
}

// HasActive reports whether an active series exists for the pair.
func (s *RecurrenceStore) HasActive(ctx context.Context, templateID, assigneeID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chore_recurrences WHERE template_id = ? AND assignee_id = ? AND active = 1`,
		templateID, assigneeID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check active recurrence: %w", err)
	}
	return n > 0, nil
}

func (s *RecurrenceStore) Deactivate(ctx context.Context, tenantID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chore_recurrences SET active = 0 WHERE id = ? AND tenant_id = ? AND active = 1`,
		id, tenantID,
	)
	if err != nil {
		return false, fmt.Errorf("deactivate recurrence: %w", err)
	}
	return affected(res)
}

// AdvanceWatermark moves last_generated_date from `from` to `to` only when the
// stored value still equals `from`. A false result means another worker won.
func (s *RecurrenceStore) AdvanceWatermark(ctx context.Context, id, from, to string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE chore_recurrences SET last_generated_date = ?, needs_attention = 0
		 WHERE id = ? AND last_generated_date = ? AND active = 1`,
		to, id, from,
	)
	if err != nil {
		return false, fmt.Errorf("advance watermark: %w", err)
	}
	return affected(res)
}

func (s *RecurrenceStore) FlagAttention(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE chore_recurrences SET needs_attention = 1 WHERE id = ? AND needs_attention = 0`, id,
	)
	if err != nil {
		return fmt.Errorf("flag recurrence: %w", err)
	}
	return nil
}
