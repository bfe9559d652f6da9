package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/model"
)

type TemplateHandler struct {
	svc    *chore.Service
	logger *slog.Logger
}

func NewTemplateHandler(svc *chore.Service, logger *slog.Logger) *TemplateHandler {
	return &TemplateHandler{svc: svc, logger: logger}
}

func (h *TemplateHandler) Create(w http.ResponseWriter, r *http.Request) {
	var fields model.ChoreFields
	if !decodeJSON(w, r, &fields) {
		return
	}

	tmpl, err := h.svc.CreateTemplate(r.Context(), auth.TenantID(r.Context()), auth.UserID(r.Context()), fields)
	if err != nil {
		respondErr(w, h.logger, err, "create template")
		return
	}
	writeData(w, http.StatusCreated, tmpl)
}

// List handles GET /api/templates. Inactive templates are included only with
// ?include_inactive=true.
func (h *TemplateHandler) List(w http.ResponseWriter, r *http.Request) {
	activeOnly := !queryBool(r, "include_inactive", false)
	templates, err := h.svc.ListTemplates(r.Context(), auth.TenantID(r.Context()), activeOnly)
	if err != nil {
		respondErr(w, h.logger, err, "list templates")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(templates))
}

func (h *TemplateHandler) Get(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.svc.GetTemplate(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondErr(w, h.logger, err, "get template")
		return
	}
	writeData(w, http.StatusOK, tmpl)
}

func (h *TemplateHandler) Update(w http.ResponseWriter, r *http.Request) {
	var fields model.ChoreFields
	if !decodeJSON(w, r, &fields) {
		return
	}

	tmpl, err := h.svc.UpdateTemplate(r.Context(), auth.TenantID(r.Context()), auth.UserID(r.Context()), r.PathValue("id"), fields)
	if err != nil {
		respondErr(w, h.logger, err, "update template")
		return
	}
	writeData(w, http.StatusOK, tmpl)
}

// Deactivate handles DELETE /api/templates/{id}. Templates are never removed.
func (h *TemplateHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	tmpl, err := h.svc.DeactivateTemplate(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondErr(w, h.logger, err, "deactivate template")
		return
	}
	writeData(w, http.StatusOK, tmpl)
}
