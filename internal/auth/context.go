package auth

import (
	"context"

	"github.com/dukerupert/chorely/internal/model"
)

type contextKey struct{}

// Identity is the caller of a request: a member of one tenant.
type Identity struct {
	UserID   string
	TenantID string
	Role     model.Role
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func TenantID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.TenantID
}

func UserID(ctx context.Context) string {
	id, _ := FromContext(ctx)
	return id.UserID
}

// CanManage reports whether the caller is an admin or parent.
func CanManage(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && id.Role.CanReview()
}

func IsAdmin(ctx context.Context) bool {
	id, ok := FromContext(ctx)
	return ok && id.Role == model.RoleAdmin
}
