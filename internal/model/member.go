package model

import "time"

type Role string

const (
	RoleAdmin  Role = "admin"
	RoleParent Role = "parent"
	RoleChild  Role = "child"
)

// CanReview reports whether the role may review submissions and manage chores.
func (r Role) CanReview() bool {
	return r == RoleAdmin || r == RoleParent
}

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleParent, RoleChild:
		return true
	}
	return false
}

type Tenant struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Member struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	HasPIN    bool      `json:"has_pin"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
