package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

type MemberStore struct {
	db DBTX
}

func NewMemberStore(db DBTX) *MemberStore {
	return &MemberStore{db: db}
}

const memberCols = `id, tenant_id, name, role, pin_hash IS NOT NULL AND pin_hash != '', created_at, updated_at`

func scanMember(sc scanner) (*model.Member, error) {
	var m model.Member
	err := sc.Scan(&m.ID, &m.TenantID, &m.Name, &m.Role, &m.HasPIN, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MemberStore) Create(ctx context.Context, tenantID, name string, role model.Role) (*model.Member, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO members (id, tenant_id, name, role) VALUES (?, ?, ?, ?)`,
		id, tenantID, name, role,
	)
	if err != nil {
		return nil, fmt.Errorf("insert member: %w", err)
	}
	return s.GetByID(ctx, tenantID, id)
}

// GetByID returns nil when the member does not exist in the tenant.
func (s *MemberStore) GetByID(ctx context.Context, tenantID, id string) (*model.Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberCols+` FROM members WHERE id = ? AND tenant_id = ?`, id, tenantID)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *MemberStore) List(ctx context.Context, tenantID string) ([]model.Member, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+memberCols+` FROM members WHERE tenant_id = ? ORDER BY created_at ASC, name ASC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

func (s *MemberStore) ListByRoles(ctx context.Context, tenantID string, roles ...model.Role) ([]model.Member, error) {
	all, err := s.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	var out []model.Member
	for _, m := range all {
		for _, r := range roles {
			if m.Role == r {
				out = append(out, m)
				break
			}
		}
	}
	return out, nil
}

func (s *MemberStore) Update(ctx context.Context, tenantID, id, name string, role model.Role) (*model.Member, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE members SET name = ?, role = ? WHERE id = ? AND tenant_id = ?`,
		name, role, id, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("update member: %w", err)
	}
	return s.GetByID(ctx, tenantID, id)
}

func (s *MemberStore) SetPIN(ctx context.Context, tenantID, id, hashedPIN string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE members SET pin_hash = ? WHERE id = ? AND tenant_id = ?`, hashedPIN, id, tenantID)
	if err != nil {
		return fmt.Errorf("set pin: %w", err)
	}
	return nil
}

func (s *MemberStore) ClearPIN(ctx context.Context, tenantID, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE members SET pin_hash = NULL WHERE id = ? AND tenant_id = ?`, id, tenantID)
	if err != nil {
		return fmt.Errorf("clear pin: %w", err)
	}
	return nil
}

// GetPINHash returns "" when the member has no PIN.
func (s *MemberStore) GetPINHash(ctx context.Context, tenantID, id string) (string, error) {
	var hash sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT pin_hash FROM members WHERE id = ? AND tenant_id = ?`, id, tenantID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get pin hash: %w", err)
	}
	return hash.String, nil
}
