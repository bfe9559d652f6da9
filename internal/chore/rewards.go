package chore

import (
	"context"
	"strings"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/store"
	"github.com/dukerupert/chorely/internal/validation"
)

type RewardInput struct {
	Title       string `json:"title" validate:"notblank,min=2,max=100"`
	Description string `json:"description" validate:"max=500"`
	PointCost   int    `json:"point_cost" validate:"min=0,max=100000"`
	Active      *bool  `json:"active"`
}

func (in *RewardInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	return fromValidation(validation.Struct(in))
}

func (s *Service) CreateReward(ctx context.Context, tenantID string, in RewardInput) (*model.Reward, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	return s.read().Rewards.Create(ctx, tenantID, in.Title, in.Description, in.PointCost)
}

func (s *Service) ListRewards(ctx context.Context, tenantID string, activeOnly bool) ([]model.Reward, error) {
	return s.read().Rewards.List(ctx, tenantID, activeOnly)
}

// UpdateReward replaces a reward's fields. A nil Active keeps the current flag.
func (s *Service) UpdateReward(ctx context.Context, tenantID, id string, in RewardInput) (*model.Reward, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var out *model.Reward
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		current, err := st.Rewards.GetByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("reward")
		}
		active := current.Active
		if in.Active != nil {
			active = *in.Active
		}
		out, err = st.Rewards.Update(ctx, tenantID, id, in.Title, in.Description, in.PointCost, active)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Redeem spends a member's points on an active reward. The redemption and the
// ledger debit commit together.
func (s *Service) Redeem(ctx context.Context, tenantID, rewardID, memberID string) (*model.RewardRedemption, error) {
	var red *model.RewardRedemption
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		reward, err := st.Rewards.GetByID(ctx, tenantID, rewardID)
		if err != nil {
			return err
		}
		if reward == nil {
			return notFound("reward")
		}
		if !reward.Active {
			return invalidState("reward is not available")
		}
		bal, err := st.Ledger.Balance(ctx, tenantID, memberID)
		if err != nil {
			return err
		}
		if bal == nil {
			return notFound("member")
		}
		if bal.Balance < reward.PointCost {
			return invalidState("insufficient points: have %d, need %d", bal.Balance, reward.PointCost)
		}

		if red, err = st.Rewards.Redeem(ctx, tenantID, reward.ID, memberID, reward.PointCost); err != nil {
			return err
		}
		if reward.PointCost > 0 {
			if _, err := st.Ledger.Add(ctx, tenantID, memberID, -reward.PointCost, model.LedgerRewardRedeemed, red.ID); err != nil {
				return err
			}
		}
		q.add(notify.RewardRedeemed, tenantID, memberID, red.ID, map[string]any{
			"reward_id": reward.ID, "title": reward.Title, "points_spent": red.PointsSpent,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("reward redeemed", "tenant_id", tenantID, "reward_id", rewardID, "member_id", memberID)
	return red, nil
}

func (s *Service) Balance(ctx context.Context, tenantID, memberID string) (*model.PointBalance, error) {
	bal, err := s.read().Ledger.Balance(ctx, tenantID, memberID)
	if err != nil {
		return nil, err
	}
	if bal == nil {
		return nil, notFound("member")
	}
	return bal, nil
}

func (s *Service) Leaderboard(ctx context.Context, tenantID string) ([]model.PointBalance, error) {
	return s.read().Ledger.Leaderboard(ctx, tenantID)
}

func (s *Service) PointsHistory(ctx context.Context, tenantID, memberID string) ([]model.PointsEntry, error) {
	if _, err := requireMember(ctx, s.read(), tenantID, memberID); err != nil {
		return nil, err
	}
	return s.read().Ledger.ListByMember(ctx, tenantID, memberID)
}

func (s *Service) ListRedemptions(ctx context.Context, tenantID, memberID string) ([]model.RewardRedemption, error) {
	if _, err := requireMember(ctx, s.read(), tenantID, memberID); err != nil {
		return nil, err
	}
	return s.read().Rewards.ListRedemptionsByMember(ctx, tenantID, memberID)
}
