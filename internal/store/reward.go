package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

type RewardStore struct {
	db DBTX
}

func NewRewardStore(db DBTX) *RewardStore {
	return &RewardStore{db: db}
}

const rewardCols = `id, tenant_id, title, description, point_cost, active, created_at`

func scanReward(sc scanner) (*model.Reward, error) {
	var r model.Reward
	if err := sc.Scan(&r.ID, &r.TenantID, &r.Title, &r.Description, &r.PointCost, &r.Active, &r.CreatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RewardStore) Create(ctx context.Context, tenantID, title, description string, pointCost int) (*model.Reward, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO rewards (id, tenant_id, title, description, point_cost) VALUES (?, ?, ?, ?, ?)`,
		id, tenantID, title, description, pointCost,
	)
	if err != nil {
		return nil, fmt.Errorf("insert reward: %w", err)
	}
	return s.GetByID(ctx, tenantID, id)
}

// GetByID returns nil when the reward does not exist in the tenant.
func (s *RewardStore) GetByID(ctx context.Context, tenantID, id string) (*model.Reward, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+rewardCols+` FROM rewards WHERE id = ? AND tenant_id = ?`, id, tenantID)
	r, err := scanReward(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get reward: %w", err)
	}
	return r, nil
}

func (s *RewardStore) List(ctx context.Context, tenantID string, activeOnly bool) ([]model.Reward, error) {
	query := `SELECT ` + rewardCols + ` FROM rewards WHERE tenant_id = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY active DESC, title ASC`

	rows, err := s.db.QueryContext(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list rewards: %w", err)
	}
	defer rows.Close()

	var out []model.Reward
	for rows.Next() {
		r, err := scanReward(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reward: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *RewardStore) Update(ctx context.Context, tenantID, id, title, description string, pointCost int, active bool) (*model.Reward, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE rewards SET title = ?, description = ?, point_cost = ?, active = ? WHERE id = ? AND tenant_id = ?`,
		title, description, pointCost, boolInt(active), id, tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("update reward: %w", err)
	}
	return s.GetByID(ctx, tenantID, id)
}

const redemptionCols = `id, tenant_id, reward_id, redeemed_by, points_spent, redeemed_at`

func scanRedemption(sc scanner) (*model.RewardRedemption, error) {
	var r model.RewardRedemption
	if err := sc.Scan(&r.ID, &r.TenantID, &r.RewardID, &r.RedeemedBy, &r.PointsSpent, &r.RedeemedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// Redeem records a redemption. The caller debits the ledger in the same
// transaction.
func (s *RewardStore) Redeem(ctx context.Context, tenantID, rewardID, memberID string, pointsSpent int) (*model.RewardRedemption, error) {
	id := newID()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reward_redemptions (id, tenant_id, reward_id, redeemed_by, points_spent) VALUES (?, ?, ?, ?, ?)`,
		id, tenantID, rewardID, memberID, pointsSpent,
	)
	if err != nil {
		return nil, fmt.Errorf("insert redemption: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+redemptionCols+` FROM reward_redemptions WHERE id = ?`, id)
	r, err := scanRedemption(row)
	if err != nil {
		return nil, fmt.Errorf("get redemption: %w", err)
	}
	return r, nil
}

func (s *RewardStore) ListRedemptionsByMember(ctx context.Context, tenantID, memberID string) ([]model.RewardRedemption, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+redemptionCols+` FROM reward_redemptions WHERE tenant_id = ? AND redeemed_by = ? ORDER BY redeemed_at DESC`,
		tenantID, memberID,
	)
	if err != nil {
		return nil, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	var out []model.RewardRedemption
	for rows.Next() {
		r, err := scanRedemption(rows)
		if err != nil {
			return nil, fmt.Errorf("scan redemption: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}
