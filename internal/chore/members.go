package chore

import (
	"context"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
	"github.com/dukerupert/chorely/internal/validation"
)

type MemberInput struct {
	Name string     `json:"name" validate:"notblank,max=50"`
	Role model.Role `json:"role" validate:"oneof=admin parent child"`
}

func (in *MemberInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	return fromValidation(validation.Struct(in))
}

// CreateTenant bootstraps a family with its first admin.
func (s *Service) CreateTenant(ctx context.Context, tenantName, adminName string) (*model.Tenant, *model.Member, error) {
	fields := map[string]string{}
	if strings.TrimSpace(tenantName) == "" {
		fields["name"] = "name cannot be blank"
	}
	if strings.TrimSpace(adminName) == "" {
		fields["admin_name"] = "admin_name cannot be blank"
	}
	if len(fields) > 0 {
		return nil, nil, &ValidationError{Fields: fields}
	}

	var tenant *model.Tenant
	var admin *model.Member
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		var err error
		if tenant, err = st.Tenants.Create(ctx, strings.TrimSpace(tenantName)); err != nil {
			return err
		}
		admin, err = st.Members.Create(ctx, tenant.ID, strings.TrimSpace(adminName), model.RoleAdmin)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("tenant created", "tenant_id", tenant.ID)
	return tenant, admin, nil
}

func (s *Service) CreateMember(ctx context.Context, tenantID string, in MemberInput) (*model.Member, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	return s.read().Members.Create(ctx, tenantID, in.Name, in.Role)
}

// GetMember returns the member or ErrNotFound, including for members of
// other tenants.
func (s *Service) GetMember(ctx context.Context, tenantID, id string) (*model.Member, error) {
	return requireMember(ctx, s.read(), tenantID, id)
}

func (s *Service) ListMembers(ctx context.Context, tenantID string) ([]model.Member, error) {
	return s.read().Members.List(ctx, tenantID)
}

func (s *Service) UpdateMember(ctx context.Context, tenantID, id string, in MemberInput) (*model.Member, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	var m *model.Member
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		if _, err := requireMember(ctx, st, tenantID, id); err != nil {
			return err
		}
		var err error
		m, err = st.Members.Update(ctx, tenantID, id, in.Name, in.Role)
		return err
	})
	return m, err
}

func validPIN(pin string) bool {
	if len(pin) != 4 {
		return false
	}
	for _, c := range pin {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// SetPIN stores a bcrypt hash of a 4-digit PIN.
func (s *Service) SetPIN(ctx context.Context, tenantID, memberID, pin string) error {
	if !validPIN(pin) {
		return invalidField("pin", "PIN must be exactly 4 digits")
	}
	st := s.read()
	if _, err := requireMember(ctx, st, tenantID, memberID); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	return st.Members.SetPIN(ctx, tenantID, memberID, string(hash))
}

func (s *Service) ClearPIN(ctx context.Context, tenantID, memberID string) error {
	st := s.read()
	if _, err := requireMember(ctx, st, tenantID, memberID); err != nil {
		return err
	}
	return st.Members.ClearPIN(ctx, tenantID, memberID)
}

// VerifyPIN reports whether pin matches. A member without a PIN is an
// invalid state rather than a mismatch.
func (s *Service) VerifyPIN(ctx context.Context, tenantID, memberID, pin string) (bool, error) {
	st := s.read()
	if _, err := requireMember(ctx, st, tenantID, memberID); err != nil {
		return false, err
	}
	hash, err := st.Members.GetPINHash(ctx, tenantID, memberID)
	if err != nil {
		return false, err
	}
	if hash == "" {
		return false, invalidState("no PIN set for this member")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil, nil
}
