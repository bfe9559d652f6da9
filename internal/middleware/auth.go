package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/store"
)

// Identity headers set by the upstream identity provider. Browsers opening a
// websocket cannot set headers, so the query parameters are accepted too.
const (
	TenantHeader = "X-Tenant-ID"
	UserHeader   = "X-User-ID"
)

func identityParams(r *http.Request) (tenantID, userID string) {
	tenantID = r.Header.Get(TenantHeader)
	userID = r.Header.Get(UserHeader)
	if tenantID == "" {
		tenantID = r.URL.Query().Get("tenant_id")
	}
	if userID == "" {
		userID = r.URL.Query().Get("user_id")
	}
	return tenantID, userID
}

// RequireIdentity resolves the calling member and stores its Identity in the
// request context. The role always comes from the database.
func RequireIdentity(members *store.MemberStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID, userID := identityParams(r)
			if tenantID == "" || userID == "" {
				writeError(w, http.StatusUnauthorized, "missing identity")
				return
			}

			member, err := members.GetByID(r.Context(), tenantID, userID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to resolve identity")
				return
			}
			if member == nil {
				writeError(w, http.StatusUnauthorized, "unknown member")
				return
			}

			ctx := auth.WithIdentity(r.Context(), auth.Identity{
				UserID:   member.ID,
				TenantID: member.TenantID,
				Role:     member.Role,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireManager lets only admins and parents through.
func RequireManager(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.CanManage(r.Context()) {
			writeError(w, http.StatusForbidden, "admin or parent role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
