// Package handler exposes the chore core over JSON HTTP endpoints.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dukerupert/chorely/internal/chore"
)

const maxBodyBytes = 1 << 20

// envelope is the body of every API response.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Error   any    `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: true, Message: msg})
}

func writeError(w http.ResponseWriter, status int, errVal any) {
	writeJSON(w, status, envelope{Success: false, Error: errVal})
}

// respondErr maps a core error onto a status code. Anything unrecognized is
// logged and reported as "failed to <action>".
func respondErr(w http.ResponseWriter, logger *slog.Logger, err error, action string) {
	var verr *chore.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, envelope{Success: false, Message: "validation failed", Error: verr.Fields})
	case errors.Is(err, chore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, chore.ErrInvalidState):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, chore.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		logger.Error(action, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to "+action)
	}
}

// decodeJSON reads a size-limited JSON body into dst, writing a 400 on
// failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}

// queryBool reads a boolean query parameter, falling back to def when absent
// or malformed.
func queryBool(r *http.Request, name string, def bool) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	if err != nil {
		return def
	}
	return v
}

// emptyIfNil keeps list responses as [] rather than null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
