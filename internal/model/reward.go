package model

import "time"

// Ledger reasons
const (
	LedgerChoreApproved  = "chore_approved"
	LedgerRewardRedeemed = "reward_redeemed"
)

type PointsEntry struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	MemberID  string    `json:"member_id"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	RefID     string    `json:"ref_id"`
	CreatedAt time.Time `json:"created_at"`
}

type Reward struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	PointCost   int       `json:"point_cost"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

type RewardRedemption struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	RewardID    string    `json:"reward_id"`
	RedeemedBy  string    `json:"redeemed_by"`
	PointsSpent int       `json:"points_spent"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}

type PointBalance struct {
	MemberID    string `json:"member_id"`
	MemberName  string `json:"member_name"`
	TotalEarned int    `json:"total_earned"`
	TotalSpent  int    `json:"total_spent"`
	Balance     int    `json:"balance"`
}
