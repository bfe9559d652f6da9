package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
)

type RewardHandler struct {
	svc    *chore.Service
	logger *slog.Logger
}

func NewRewardHandler(svc *chore.Service, logger *slog.Logger) *RewardHandler {
	return &RewardHandler{svc: svc, logger: logger}
}

func (h *RewardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in chore.RewardInput
	if !decodeJSON(w, r, &in) {
		return
	}

	reward, err := h.svc.CreateReward(r.Context(), auth.TenantID(r.Context()), in)
	if err != nil {
		respondErr(w, h.logger, err, "create reward")
		return
	}
	writeData(w, http.StatusCreated, reward)
}

func (h *RewardHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := !queryBool(r, "include_inactive", false)
	rewards, err := h.svc.ListRewards(r.Context(), auth.TenantID(r.Context()), activeOnly)
	if err != nil {
		respondErr(w, h.logger, err, "list rewards")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(rewards))
}

func (h *RewardHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in chore.RewardInput
	if !decodeJSON(w, r, &in) {
		return
	}

	reward, err := h.svc.UpdateReward(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		respondErr(w, h.logger, err, "update reward")
		return
	}
	writeData(w, http.StatusOK, reward)
}

// Redeem handles POST /api/rewards/{id}/redeem. Members redeem for
// themselves; managers may redeem on behalf of member_id.
func (h *RewardHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MemberID string `json:"member_id"`
	}
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	memberID := auth.UserID(r.Context())
	if req.MemberID != "" && req.MemberID != memberID {
		if !auth.CanManage(r.Context()) {
			writeError(w, http.StatusForbidden, "cannot redeem for another member")
			return
		}
		memberID = req.MemberID
	}

	red, err := h.svc.Redeem(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"), memberID)
	if err != nil {
		respondErr(w, h.logger, err, "redeem reward")
		return
	}
	writeData(w, http.StatusCreated, red)
}

// memberParam resolves {id}, where "me" names the caller.
func memberParam(r *http.Request) string {
	id := r.PathValue("id")
	if id == "me" {
		return auth.UserID(r.Context())
	}
	return id
}

// Balance handles GET /api/members/{id}/points.
func (h *RewardHandler) Balance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.svc.Balance(r.Context(), auth.TenantID(r.Context()), memberParam(r))
	if err != nil {
		respondErr(w, h.logger, err, "get balance")
		return
	}
	writeData(w, http.StatusOK, bal)
}

// History handles GET /api/members/{id}/points/history, newest first.
func (h *RewardHandler) History(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.PointsHistory(r.Context(), auth.TenantID(r.Context()), memberParam(r))
	if err != nil {
		respondErr(w, h.logger, err, "get points history")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(entries))
}

func (h *RewardHandler) Redemptions(w http.ResponseWriter, r *http.Request) {
	reds, err := h.svc.ListRedemptions(r.Context(), auth.TenantID(r.Context()), memberParam(r))
	if err != nil {
		respondErr(w, h.logger, err, "list redemptions")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(reds))
}

func (h *RewardHandler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Leaderboard(r.Context(), auth.TenantID(r.Context()))
	if err != nil {
		respondErr(w, h.logger, err, "get leaderboard")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(board))
}
