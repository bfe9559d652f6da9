package store

import (
	"context"
	"fmt"

	"github.com/dukerupert/chorely/internal/model"
)

type PushStore struct {
	db DBTX
}

func NewPushStore(db DBTX) *PushStore {
	return &PushStore{db: db}
}

const pushCols = `id, tenant_id, member_id, endpoint, p256dh_key, auth_key, device_name, created_at`

// CreateSubscription upserts by endpoint so a re-subscribing browser keeps
// a single row.
func (s *PushStore) CreateSubscription(ctx context.Context, tenantID, memberID, endpoint, p256dh, auth, deviceName string) (*model.PushSubscription, error) {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO push_subscriptions (id, tenant_id, member_id, endpoint, p256dh_key, auth_key, device_name)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(endpoint) DO UPDATE SET tenant_id = excluded.tenant_id, member_id = excluded.member_id,
		   p256dh_key = excluded.p256dh_key, auth_key = excluded.auth_key, device_name = excluded.device_name`,
		newID(), tenantID, memberID, endpoint, p256dh, auth, deviceName,
	)
	if err != nil {
		return nil, fmt.Errorf("create push subscription: %w", err)
	}

	var sub model.PushSubscription
	err = s.db.QueryRowContext(ctx, `SELECT `+pushCols+` FROM push_subscriptions WHERE endpoint = ?`, endpoint).
		Scan(&sub.ID, &sub.TenantID, &sub.MemberID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get push subscription: %w", err)
	}
	return &sub, nil
}

func (s *PushStore) ListByMember(ctx context.Context, tenantID, memberID string) ([]model.PushSubscription, error) {
	return s.list(ctx,
		`SELECT `+pushCols+` FROM push_subscriptions WHERE tenant_id = ? AND member_id = ? ORDER BY created_at DESC`,
		tenantID, memberID,
	)
}

// ListByMembers returns the subscriptions of every listed member in the tenant.
func (s *PushStore) ListByMembers(ctx context.Context, tenantID string, memberIDs []string) ([]model.PushSubscription, error) {
	var out []model.PushSubscription
	for _, id := range memberIDs {
		subs, err := s.ListByMember(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}
		out = append(out, subs...)
	}
	return out, nil
}

func (s *PushStore) list(ctx context.Context, query string, args ...any) ([]model.PushSubscription, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list push subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PushSubscription
	for rows.Next() {
		var sub model.PushSubscription
		if err := rows.Scan(&sub.ID, &sub.TenantID, &sub.MemberID, &sub.Endpoint, &sub.P256dhKey, &sub.AuthKey, &sub.DeviceName, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteByEndpoint removes a subscription. Used when the push service reports
// the endpoint expired.
func (s *PushStore) DeleteByEndpoint(ctx context.Context, endpoint string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM push_subscriptions WHERE endpoint = ?`, endpoint)
	if err != nil {
		return fmt.Errorf("delete push subscription: %w", err)
	}
	return nil
}

// Delete removes a member's own subscription. It reports false when nothing
// matched.
func (s *PushStore) Delete(ctx context.Context, tenantID, memberID, endpoint string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM push_subscriptions WHERE tenant_id = ? AND member_id = ? AND endpoint = ?`,
		tenantID, memberID, endpoint,
	)
	if err != nil {
		return false, fmt.Errorf("delete push subscription: %w", err)
	}
	return affected(res)
}

