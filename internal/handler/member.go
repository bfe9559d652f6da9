package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/model"
)

type MemberHandler struct {
	svc    *chore.Service
	logger *slog.Logger
}

func NewMemberHandler(svc *chore.Service, logger *slog.Logger) *MemberHandler {
	return &MemberHandler{svc: svc, logger: logger}
}

type bootstrapRequest struct {
	Name      string `json:"name"`
	AdminName string `json:"admin_name"`
}

// Bootstrap handles POST /api/tenants. It is the only unauthenticated write.
func (h *MemberHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	var req bootstrapRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tenant, admin, err := h.svc.CreateTenant(r.Context(), req.Name, req.AdminName)
	if err != nil {
		respondErr(w, h.logger, err, "create tenant")
		return
	}
	writeData(w, http.StatusCreated, map[string]any{"tenant": tenant, "admin": admin})
}

func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.svc.ListMembers(r.Context(), auth.TenantID(r.Context()))
	if err != nil {
		respondErr(w, h.logger, err, "list members")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(members))
}

func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.GetMember(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondErr(w, h.logger, err, "get member")
		return
	}
	writeData(w, http.StatusOK, m)
}

func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in chore.MemberInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Role == model.RoleAdmin && !auth.IsAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "only admins can add admins")
		return
	}

	m, err := h.svc.CreateMember(r.Context(), auth.TenantID(r.Context()), in)
	if err != nil {
		respondErr(w, h.logger, err, "create member")
		return
	}
	writeData(w, http.StatusCreated, m)
}

func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in chore.MemberInput
	if !decodeJSON(w, r, &in) {
		return
	}
	if in.Role == model.RoleAdmin && !auth.IsAdmin(r.Context()) {
		writeError(w, http.StatusForbidden, "only admins can grant admin")
		return
	}

	m, err := h.svc.UpdateMember(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"), in)
	if err != nil {
		respondErr(w, h.logger, err, "update member")
		return
	}
	writeData(w, http.StatusOK, m)
}

type pinRequest struct {
	PIN string `json:"pin"`
}

// canChangePIN allows members to manage their own PIN and admins to manage
// anyone's.
func canChangePIN(r *http.Request, memberID string) bool {
	return auth.UserID(r.Context()) == memberID || auth.IsAdmin(r.Context())
}

func (h *MemberHandler) SetPIN(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !canChangePIN(r, id) {
		writeError(w, http.StatusForbidden, "cannot change another member's PIN")
		return
	}

	var req pinRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.SetPIN(r.Context(), auth.TenantID(r.Context()), id, strings.TrimSpace(req.PIN)); err != nil {
		respondErr(w, h.logger, err, "set PIN")
		return
	}
	writeMessage(w, http.StatusOK, "pin set")
}

func (h *MemberHandler) ClearPIN(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !canChangePIN(r, id) {
		writeError(w, http.StatusForbidden, "cannot change another member's PIN")
		return
	}

	if err := h.svc.ClearPIN(r.Context(), auth.TenantID(r.Context()), id); err != nil {
		respondErr(w, h.logger, err, "clear PIN")
		return
	}
	writeMessage(w, http.StatusOK, "pin cleared")
}

// VerifyPIN handles POST /api/members/{id}/pin/verify. The route is rate
// limited.
func (h *MemberHandler) VerifyPIN(w http.ResponseWriter, r *http.Request) {
	var req pinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ok, err := h.svc.VerifyPIN(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"), req.PIN)
	if err != nil {
		respondErr(w, h.logger, err, "verify PIN")
		return
	}
	if !ok {
		writeError(w, http.StatusUnauthorized, "incorrect PIN")
		return
	}
	writeData(w, http.StatusOK, map[string]bool{"valid": true})
}
