package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

type TenantStore struct {
	db DBTX
}

func NewTenantStore(db DBTX) *TenantStore {
	return &TenantStore{db: db}
}

const tenantCols = `id, name, created_at, updated_at`

func (s *TenantStore) Create(ctx context.Context, name string) (*model.Tenant, error) {
	id := newID()
	if _, err := s.db.ExecContext(ctx, `INSERT INTO tenants (id, name) VALUES (?, ?)`, id, name); err != nil {
		return nil, fmt.Errorf("insert tenant: %w", err)
	}
	return s.GetByID(ctx, id)
}

func (s *TenantStore) GetByID(ctx context.Context, id string) (*model.Tenant, error) {
	var t model.Tenant
	err := s.db.QueryRowContext(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id = ?`, id).
		Scan(&t.ID, &t.Name, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	return &t, nil
}
