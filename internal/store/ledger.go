package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

// LedgerStore is the append-only points ledger. Balances are sums of deltas.
type LedgerStore struct {
	db DBTX
}

func NewLedgerStore(db DBTX) *LedgerStore {
	return &LedgerStore{db: db}
}

const ledgerCols = `id, tenant_id, member_id, delta, reason, ref_id, created_at`

// Add appends one entry. Credits are positive, debits negative.
func (s *LedgerStore) Add(ctx context.Context, tenantID, memberID string, delta int, reason, refID string) (*model.PointsEntry, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO points_ledger (id, tenant_id, member_id, delta, reason, ref_id) VALUES (?, ?, ?, ?, ?, ?)`,
		id, tenantID, memberID, delta, reason, refID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}
	var e model.PointsEntry
	err = s.db.QueryRowContext(ctx, `SELECT `+ledgerCols+` FROM points_ledger WHERE id = ?`, id).
		Scan(&e.ID, &e.TenantID, &e.MemberID, &e.Delta, &e.Reason, &e.RefID, &e.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get ledger entry: %w", err)
	}
	return &e, nil
}

func (s *LedgerStore) ListByMember(ctx context.Context, tenantID, memberID string) ([]model.PointsEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+ledgerCols+` FROM points_ledger WHERE tenant_id = ? AND member_id = ? ORDER BY created_at DESC, rowid DESC`,
		tenantID, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer rows.Close()

	var out []model.PointsEntry
	for rows.Next() {
		var e model.PointsEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.MemberID, &e.Delta, &e.Reason, &e.RefID, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ledger entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

const balanceQuery = `
SELECT m.id, m.name,
       COALESCE(SUM(CASE WHEN l.delta > 0 THEN l.delta ELSE 0 END), 0),
       COALESCE(SUM(CASE WHEN l.delta < 0 THEN -l.delta ELSE 0 END), 0),
       COALESCE(SUM(l.delta), 0)
FROM members m
LEFT JOIN points_ledger l ON l.member_id = m.id AND l.tenant_id = m.tenant_id
WHERE m.tenant_id = ?`

// Balance returns nil when the member does not exist in the tenant.
func (s *LedgerStore) Balance(ctx context.Context, tenantID, memberID string) (*model.PointBalance, error) {
	rows, err := s.db.QueryContext(ctx, balanceQuery+` AND m.id = ? GROUP BY m.id, m.name`, tenantID, memberID)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var b model.PointBalance
	if err := rows.Scan(&b.MemberID, &b.MemberName, &b.TotalEarned, &b.TotalSpent, &b.Balance); err != nil {
		return nil, fmt.Errorf("scan balance: %w", err)
	}
	return &b, nil
}

// Leaderboard returns every member's balance, highest earner first.
func (s *LedgerStore) Leaderboard(ctx context.Context, tenantID string) ([]model.PointBalance, error) {
	rows, err := s.db.QueryContext(ctx,
		balanceQuery+` GROUP BY m.id, m.name ORDER BY 3 DESC, m.name ASC`, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}
	defer rows.Close()

	var out []model.PointBalance
	for rows.Next() {
		var b model.PointBalance
		if err := rows.Scan(&b.MemberID, &b.MemberName, &b.TotalEarned, &b.TotalSpent, &b.Balance); err != nil {
			return nil, fmt.Errorf("scan balance: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
