package chore

import (
	"context"
	"testing"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/notify"
)

func (e *env) earn(t *testing.T, points int) {
	t.Helper()
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())
	a := e.assign(t, tmpl.ID)
	sub, err := e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{
		Decision: model.ReviewApproved, PointsAwarded: &points,
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}
}

func TestRedeem(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.earn(t, 30)

	reward, err := e.svc.CreateReward(ctx, e.tenant.ID, RewardInput{Title: "Ice cream", PointCost: 20})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}

	red, err := e.svc.Redeem(ctx, e.tenant.ID, reward.ID, e.child.ID)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if red.PointsSpent != 20 {
		t.Errorf("points_spent = %d, want 20", red.PointsSpent)
	}
	if got := balance(t, e, e.child.ID); got != 10 {
		t.Errorf("balance = %d, want 10", got)
	}

	_, err = e.svc.Redeem(ctx, e.tenant.ID, reward.ID, e.child.ID)
	assertKind(t, err, ErrInvalidState)
	if got := balance(t, e, e.child.ID); got != 10 {
		t.Errorf("balance after failed redeem = %d, want 10", got)
	}

	names := e.events.Names()
	if names[len(names)-1] != notify.RewardRedeemed {
		t.Errorf("last event = %q, want reward.redeemed", names[len(names)-1])
	}

	list, err := e.svc.ListRedemptions(ctx, e.tenant.ID, e.child.ID)
	if err != nil {
		t.Fatalf("list redemptions: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("redemptions = %d, want 1", len(list))
	}
}

func TestRedeemInactiveReward(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	e.earn(t, 100)

	reward, err := e.svc.CreateReward(ctx, e.tenant.ID, RewardInput{Title: "Movie night", PointCost: 50})
	if err != nil {
		t.Fatalf("create reward: %v", err)
	}
	inactive := false
	if _, err := e.svc.UpdateReward(ctx, e.tenant.ID, reward.ID, RewardInput{Title: "Movie night", PointCost: 50, Active: &inactive}); err != nil {
		t.Fatalf("update reward: %v", err)
	}

	_, err = e.svc.Redeem(ctx, e.tenant.ID, reward.ID, e.child.ID)
	assertKind(t, err, ErrInvalidState)

	_, err = e.svc.Redeem(ctx, e.tenant.ID, "missing", e.child.ID)
	assertKind(t, err, ErrNotFound)
}

func TestCreateRewardValidation(t *testing.T) {
	e := setup(t)
	_, err := e.svc.CreateReward(context.Background(), e.tenant.ID, RewardInput{Title: " ", PointCost: -1})
	assertKind(t, err, ErrValidation)
}

func TestLeaderboard(t *testing.T) {
	e := setup(t)
	e.earn(t, 40)

	board, err := e.svc.Leaderboard(context.Background(), e.tenant.ID)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 3 {
		t.Fatalf("leaderboard = %d rows, want 3", len(board))
	}
	if board[0].MemberID != e.child.ID || board[0].TotalEarned != 40 {
		t.Errorf("leader = %+v, want child with 40", board[0])
	}
}

func TestApprovalWithZeroPointsWritesNoLedgerRow(t *testing.T) {
	e := setup(t)
	e.earn(t, 0)
	if n := countRows(t, e.db, "points_ledger"); n != 0 {
		t.Errorf("ledger rows = %d, want 0", n)
	}
}
