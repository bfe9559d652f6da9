package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/recurrence"
)

type AssignmentHandler struct {
	svc    *chore.Service
	logger *slog.Logger
}

func NewAssignmentHandler(svc *chore.Service, logger *slog.Logger) *AssignmentHandler {
	return &AssignmentHandler{svc: svc, logger: logger}
}

type assignmentRequest struct {
	TemplateID *string            `json:"template_id"`
	Chore      *model.ChoreFields `json:"chore"`
	AssigneeID string             `json:"assignee_id"`
	DueAt      string             `json:"due_at"`
	Priority   model.Priority     `json:"priority"`
	Recurring  bool               `json:"recurring"`
}

// parseDue accepts an RFC 3339 timestamp or a bare date, which means the end
// of that day in UTC.
func parseDue(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), true
	}
	if d, err := recurrence.ParseDate(s); err == nil {
		return d.Add(24*time.Hour - time.Second), true
	}
	return time.Time{}, false
}

func (h *AssignmentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req assignmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	due, ok := parseDue(req.DueAt)
	if !ok {
		respondErr(w, h.logger, &chore.ValidationError{Fields: map[string]string{
			"due_at": "due_at must be an RFC 3339 timestamp or YYYY-MM-DD date",
		}}, "create assignment")
		return
	}
	if req.Priority == "" {
		req.Priority = model.PriorityMedium
	}

	view, err := h.svc.CreateAssignment(r.Context(), auth.TenantID(r.Context()), auth.UserID(r.Context()), chore.AssignmentInput{
		TemplateID: req.TemplateID,
		Chore:      req.Chore,
		AssigneeID: req.AssigneeID,
		DueAt:      due,
		Priority:   req.Priority,
		Recurring:  req.Recurring,
	})
	if err != nil {
		respondErr(w, h.logger, err, "create assignment")
		return
	}
	writeData(w, http.StatusCreated, view)
}

// List handles GET /api/assignments?assignee_id=&status=. Children only ever
// see their own assignments.
func (h *AssignmentHandler) List(w http.ResponseWriter, r *http.Request) {
	filter := chore.AssignmentFilter{
		AssigneeID: r.URL.Query().Get("assignee_id"),
		Status:     model.AssignmentStatus(r.URL.Query().Get("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		respondErr(w, h.logger, &chore.ValidationError{Fields: map[string]string{
			"status": "status must be one of [pending submitted approved rejected overdue]",
		}}, "list assignments")
		return
	}
	if !auth.CanManage(r.Context()) {
		filter.AssigneeID = auth.UserID(r.Context())
	}

	views, err := h.svc.ListAssignments(r.Context(), auth.TenantID(r.Context()), filter)
	if err != nil {
		respondErr(w, h.logger, err, "list assignments")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(views))
}

// visibleTo reports whether the caller may read an assignee's work. Children
// only see their own; another member's assignment reads as not found.
func visibleTo(r *http.Request, assigneeID string) bool {
	return auth.CanManage(r.Context()) || auth.UserID(r.Context()) == assigneeID
}

var errAssignmentNotFound = fmt.Errorf("assignment %w", chore.ErrNotFound)

func (h *AssignmentHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.GetAssignment(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"))
	if err == nil && !visibleTo(r, view.AssigneeID) {
		err = errAssignmentNotFound
	}
	if err != nil {
		respondErr(w, h.logger, err, "get assignment")
		return
	}
	writeData(w, http.StatusOK, view)
}

// EditChore handles PUT /api/assignments/{id}/chore.
func (h *AssignmentHandler) EditChore(w http.ResponseWriter, r *http.Request) {
	var fields model.ChoreFields
	if !decodeJSON(w, r, &fields) {
		return
	}

	view, err := h.svc.EditAssignmentChore(r.Context(), auth.TenantID(r.Context()), auth.UserID(r.Context()), r.PathValue("id"), fields)
	if err != nil {
		respondErr(w, h.logger, err, "edit assignment chore")
		return
	}
	writeData(w, http.StatusOK, view)
}

// Submit handles POST /api/assignments/{id}/submit by the assignee.
func (h *AssignmentHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var in chore.SubmitInput
	if !decodeJSON(w, r, &in) {
		return
	}

	sub, err := h.svc.Submit(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"), auth.UserID(r.Context()), in)
	if err != nil {
		respondErr(w, h.logger, err, "submit assignment")
		return
	}
	writeData(w, http.StatusCreated, sub)
}

// Submissions handles GET /api/assignments/{id}/submissions, oldest first.
func (h *AssignmentHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	tenantID := auth.TenantID(r.Context())
	view, err := h.svc.GetAssignment(r.Context(), tenantID, r.PathValue("id"))
	if err == nil && !visibleTo(r, view.AssigneeID) {
		err = errAssignmentNotFound
	}
	if err != nil {
		respondErr(w, h.logger, err, "list submissions")
		return
	}

	subs, err := h.svc.ListSubmissions(r.Context(), tenantID, view.ID)
	if err != nil {
		respondErr(w, h.logger, err, "list submissions")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(subs))
}

func (h *AssignmentHandler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.GetSubmission(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"))
	if err == nil && !visibleTo(r, sub.SubmittedBy) {
		err = fmt.Errorf("submission %w", chore.ErrNotFound)
	}
	if err != nil {
		respondErr(w, h.logger, err, "get submission")
		return
	}
	writeData(w, http.StatusOK, sub)
}

// Review handles POST /api/submissions/{id}/review. The reviewer's role is
// checked by the core.
func (h *AssignmentHandler) Review(w http.ResponseWriter, r *http.Request) {
	var in chore.ReviewInput
	if !decodeJSON(w, r, &in) {
		return
	}

	sub, err := h.svc.Review(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"), auth.UserID(r.Context()), in)
	if err != nil {
		respondErr(w, h.logger, err, "review submission")
		return
	}
	writeData(w, http.StatusOK, sub)
}
