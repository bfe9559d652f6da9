package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/media"
)

type MediaHandler struct {
	store  *media.Store
	logger *slog.Logger
}

// NewMediaHandler serves uploads. A nil store answers every request with 503.
func NewMediaHandler(store *media.Store, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{store: store, logger: logger}
}

// Upload handles POST /api/media as multipart form field "file". The returned
// URL goes into a submission's media_urls.
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "media storage is not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.store.MaxSize()+(1<<20))
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "multipart field \"file\" is required")
		return
	}
	defer file.Close()

	obj, err := h.store.Upload(r.Context(), auth.TenantID(r.Context()), file)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, media.ErrUnsupported):
		writeError(w, http.StatusUnsupportedMediaType, err.Error())
	case errors.Is(err, media.ErrEmpty):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		h.logger.Error("upload media", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to upload media")
	default:
		writeData(w, http.StatusCreated, obj)
	}
}

// Download handles GET /api/media/{key...} for objects of the caller's tenant.
func (h *MediaHandler) Download(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "media storage is not configured")
		return
	}

	body, contentType, err := h.store.Open(r.Context(), auth.TenantID(r.Context()), r.PathValue("key"))
	if errors.Is(err, media.ErrNotFound) {
		writeError(w, http.StatusNotFound, "media not found")
		return
	}
	if err != nil {
		h.logger.Error("download media", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load media")
		return
	}
	defer body.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "private, max-age=86400")
	io.Copy(w, body)
}
