package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/chore"
	"github.com/dukerupert/chorely/internal/recurrence"
)

const maxPreviewDays = 366

type RecurrenceHandler struct {
	svc    *chore.Service
	runner *chore.Runner
	logger *slog.Logger
}

func NewRecurrenceHandler(svc *chore.Service, runner *chore.Runner, logger *slog.Logger) *RecurrenceHandler {
	return &RecurrenceHandler{svc: svc, runner: runner, logger: logger}
}

func (h *RecurrenceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in chore.RecurrenceInput
	if !decodeJSON(w, r, &in) {
		return
	}

	series, err := h.svc.CreateRecurrence(r.Context(), auth.TenantID(r.Context()), auth.UserID(r.Context()), in)
	if err != nil {
		respondErr(w, h.logger, err, "create recurrence")
		return
	}
	writeData(w, http.StatusCreated, series)
}

func (h *RecurrenceHandler) List(w http.ResponseWriter, r *http.Request) {
	series, err := h.svc.ListRecurrences(r.Context(), auth.TenantID(r.Context()))
	if err != nil {
		respondErr(w, h.logger, err, "list recurrences")
		return
	}
	writeData(w, http.StatusOK, emptyIfNil(series))
}

func (h *RecurrenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	series, err := h.svc.GetRecurrence(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondErr(w, h.logger, err, "get recurrence")
		return
	}
	writeData(w, http.StatusOK, series)
}

func (h *RecurrenceHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	series, err := h.svc.DeactivateRecurrence(r.Context(), auth.TenantID(r.Context()), r.PathValue("id"))
	if err != nil {
		respondErr(w, h.logger, err, "deactivate recurrence")
		return
	}
	writeData(w, http.StatusOK, series)
}

// Run handles POST /api/recurrences/run: an immediate generation pass over
// every active series.
func (h *RecurrenceHandler) Run(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.RunOnce(r.Context(), time.Now().UTC())
	if err != nil {
		respondErr(w, h.logger, err, "run recurrences")
		return
	}
	writeData(w, http.StatusOK, res)
}

type previewResponse struct {
	Rule        string   `json:"rule"`
	Description string   `json:"description"`
	Dates       []string `json:"dates"`
}

// Preview handles GET /api/recurrences/preview?rule=&from=&days=. It lists
// the dates a rule produces without storing anything.
func (h *RecurrenceHandler) Preview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	fields := map[string]string{}

	pattern, err := recurrence.Parse(q.Get("rule"))
	if err != nil {
		fields["rule"] = err.Error()
	}

	from := recurrence.Day(time.Now().UTC())
	if v := q.Get("from"); v != "" {
		if from, err = recurrence.ParseDate(v); err != nil {
			fields["from"] = "from must be a YYYY-MM-DD date"
		}
	}

	days := 14
	if v := q.Get("days"); v != "" {
		if days, err = strconv.Atoi(v); err != nil || days < 1 || days > maxPreviewDays {
			fields["days"] = "days must be between 1 and 366"
		}
	}
	if len(fields) > 0 {
		respondErr(w, h.logger, &chore.ValidationError{Fields: fields}, "preview recurrence")
		return
	}

	dates, err := recurrence.Dates(pattern, from, from.AddDate(0, 0, days-1))
	if err != nil {
		respondErr(w, h.logger, &chore.ValidationError{Fields: map[string]string{"rule": err.Error()}}, "preview recurrence")
		return
	}

	out := previewResponse{Rule: pattern.String(), Description: pattern.Describe(), Dates: make([]string, len(dates))}
	for i, d := range dates {
		out.Dates[i] = d.Format(recurrence.DateLayout)
	}
	writeData(w, http.StatusOK, out)
}
