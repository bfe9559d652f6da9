package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dukerupert/chorely/internal/auth"
	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
)

func setupMembers(t *testing.T) (*store.Stores, *model.Tenant, *model.Member, *model.Member) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	ctx := context.Background()
	tenant, err := st.Tenants.Create(ctx, "Smiths")
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	parent, err := st.Members.Create(ctx, tenant.ID, "Mom", model.RoleParent)
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := st.Members.Create(ctx, tenant.ID, "Alice", model.RoleChild)
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return st, tenant, parent, child
}

func TestRequireIdentityMissing(t *testing.T) {
	st, _, _, _ := setupMembers(t)

	handler := RequireIdentity(st.Members)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/api/assignments", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if !strings.Contains(rec.Body.String(), `"success":false`) {
		t.Errorf("body = %s, want error envelope", rec.Body.String())
	}
}

func TestRequireIdentityUnknownMember(t *testing.T) {
	st, tenant, _, _ := setupMembers(t)

	handler := RequireIdentity(st.Members)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TenantHeader, tenant.ID)
	req.Header.Set(UserHeader, "nobody")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireIdentityOtherTenant(t *testing.T) {
	st, _, parent, _ := setupMembers(t)
	other, err := st.Tenants.Create(context.Background(), "Joneses")
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	handler := RequireIdentity(st.Members)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not reach handler")
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TenantHeader, other.ID)
	req.Header.Set(UserHeader, parent.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestRequireIdentityLoadsRole(t *testing.T) {
	st, tenant, parent, _ := setupMembers(t)

	var got auth.Identity
	handler := RequireIdentity(st.Members)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = auth.FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set(TenantHeader, tenant.ID)
	req.Header.Set(UserHeader, parent.ID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if got.UserID != parent.ID || got.TenantID != tenant.ID || got.Role != model.RoleParent {
		t.Errorf("identity = %+v", got)
	}
}

func TestRequireIdentityQueryParams(t *testing.T) {
	st, tenant, _, child := setupMembers(t)

	handler := RequireIdentity(st.Members)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.UserID(r.Context()) != child.ID {
			t.Errorf("user = %q, want child", auth.UserID(r.Context()))
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/ws?tenant_id="+tenant.ID+"&user_id="+child.ID, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRequireManager(t *testing.T) {
	handler := RequireManager(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		role model.Role
		want int
	}{
		{model.RoleAdmin, http.StatusOK},
		{model.RoleParent, http.StatusOK},
		{model.RoleChild, http.StatusForbidden},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("POST", "/", nil)
		req = req.WithContext(auth.WithIdentity(req.Context(), auth.Identity{Role: tt.role}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.role, rec.Code, tt.want)
		}
	}
}

func TestRequestLoggerAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest("GET", "/api/templates/x", nil)
	req.Header.Set(TenantHeader, "t1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	id := rec.Header().Get(RequestIDHeader)
	if id == "" {
		t.Fatal("expected a request id header")
	}
	line := buf.String()
	for _, want := range []string{"level=WARN", "status=404", "request_id=" + id, "tenant_id=t1"} {
		if !strings.Contains(line, want) {
			t.Errorf("log line %q missing %q", line, want)
		}
	}

	req = httptest.NewRequest("GET", "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	rec = httptest.NewRecorder()
	RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.NotFoundHandler()).ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "abc" {
		t.Errorf("request id = %q, want echoed %q", got, "abc")
	}
}
