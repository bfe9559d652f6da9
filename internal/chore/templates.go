package chore

import (
	"context"
	"strings"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/store"
	"github.com/dukerupert/chorely/internal/validation"
)

// normalizeFields trims text fields and checks every constraint shared by
// templates and ad-hoc instances.
func normalizeFields(f *model.ChoreFields) error {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)

	fields := map[string]string{}
	if err := validation.Struct(f); err != nil {
		verr, ok := fromValidation(err).(*ValidationError)
		if !ok {
			return err
		}
		fields = verr.Fields
	}

	switch {
	case f.IsRecurring && f.Recurrence == nil:
		fields["recurrence"] = "recurrence is required for a recurring chore"
	case !f.IsRecurring && f.Recurrence != nil:
		fields["recurrence"] = "recurrence is only allowed on a recurring chore"
	case f.Recurrence != nil:
		if err := f.Recurrence.Validate(); err != nil {
			fields["recurrence"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) CreateTemplate(ctx context.Context, tenantID, actorID string, fields model.ChoreFields) (*model.ChoreTemplate, error) {
	if err := normalizeFields(&fields); err != nil {
		return nil, err
	}

	var tmpl *model.ChoreTemplate
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		if _, err := requireMember(ctx, st, tenantID, actorID); err != nil {
			return err
		}
		var err error
		if tmpl, err = st.Templates.Create(ctx, tenantID, actorID, fields); err != nil {
			return err
		}
		q.add(notify.TemplateCreated, tenantID, "", tmpl.ID, tmpl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("template created", "tenant_id", tenantID, "template_id", tmpl.ID)
	return tmpl, nil
}

func (s *Service) GetTemplate(ctx context.Context, tenantID, id string) (*model.ChoreTemplate, error) {
	tmpl, err := s.read().Templates.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if tmpl == nil {
		return nil, notFound("template")
	}
	if tmpl.Instances, err = s.read().Templates.CountInstances(ctx, tmpl.ID); err != nil {
		return nil, err
	}
	return tmpl, nil
}

func (s *Service) ListTemplates(ctx context.Context, tenantID string, activeOnly bool) ([]model.ChoreTemplate, error) {
	return s.read().Templates.List(ctx, tenantID, activeOnly)
}

// UpdateTemplate edits a template in place. Only its creator or a tenant admin
// may do so. Instances already snapshotted from it are untouched.
func (s *Service) UpdateTemplate(ctx context.Context, tenantID, actorID, id string, fields model.ChoreFields) (*model.ChoreTemplate, error) {
	if err := normalizeFields(&fields); err != nil {
		return nil, err
	}

	var tmpl *model.ChoreTemplate
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		current, err := st.Templates.GetByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("template")
		}
		actor, err := st.Members.GetByID(ctx, tenantID, actorID)
		if err != nil {
			return err
		}
		if actor == nil || (actor.ID != current.CreatedBy && actor.Role != model.RoleAdmin) {
			return forbidden("only the creator or an admin may edit this template")
		}
		if tmpl, err = st.Templates.Update(ctx, tenantID, id, fields); err != nil {
			return err
		}
		q.add(notify.TemplateUpdated, tenantID, "", tmpl.ID, tmpl)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tmpl, nil
}

// DeactivateTemplate marks a template inactive. Deactivating an inactive
// template of the same tenant is a no-op.
func (s *Service) DeactivateTemplate(ctx context.Context, tenantID, id string) (*model.ChoreTemplate, error) {
	var tmpl *model.ChoreTemplate
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		current, err := st.Templates.GetByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("template")
		}
		changed, err := st.Templates.Deactivate(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if tmpl, err = st.Templates.GetByID(ctx, tenantID, id); err != nil {
			return err
		}
		if tmpl.Instances, err = st.Templates.CountInstances(ctx, id); err != nil {
			return err
		}
		if changed {
			q.add(notify.TemplateDeactivated, tenantID, "", id, tmpl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("template deactivated", "tenant_id", tenantID, "template_id", id, "instances", tmpl.Instances)
	return tmpl, nil
}

// requireMember loads a member of the tenant. Members of other tenants are
// reported as not found.
func requireMember(ctx context.Context, st *store.Stores, tenantID, memberID string) (*model.Member, error) {
	m, err := st.Members.GetByID(ctx, tenantID, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, notFound("member")
	}
	return m, nil
}
