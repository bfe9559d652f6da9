package chore

import (
	"context"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/store"
)

// Factory snapshots chore definitions into instances. It never updates an
// instance; replacing a chore means creating a new one.
type Factory struct {
	st *store.Stores
}

// NewFactory binds a factory to db, usually a transaction.
func NewFactory(db store.DBTX) *Factory {
	return &Factory{st: store.New(db)}
}

// FromTemplate copies an active template of the tenant into a new instance
// that keeps the template back-reference.
func (f *Factory) FromTemplate(ctx context.Context, tenantID, templateID, creatorID string) (*model.ChoreInstance, error) {
	tmpl, err := f.st.Templates.GetByID(ctx, tenantID, templateID)
	if err != nil {
		return nil, err
	}
	if tmpl == nil || !tmpl.Active {
		return nil, notFound("template")
	}
	return f.st.Instances.Create(ctx, tenantID, &tmpl.ID, creatorID, copyFields(tmpl.ChoreFields))
}

// AdHoc validates an inline definition and stores it without a template.
func (f *Factory) AdHoc(ctx context.Context, tenantID string, fields model.ChoreFields, creatorID string) (*model.ChoreInstance, error) {
	if err := normalizeFields(&fields); err != nil {
		return nil, err
	}
	return f.st.Instances.Create(ctx, tenantID, nil, creatorID, fields)
}

// revise creates a replacement instance from edited fields, keeping the
// template back-reference of the instance it replaces.
func (f *Factory) revise(ctx context.Context, prev *model.ChoreInstance, fields model.ChoreFields, creatorID string) (*model.ChoreInstance, error) {
	if err := normalizeFields(&fields); err != nil {
		return nil, err
	}
	return f.st.Instances.Create(ctx, prev.TenantID, prev.TemplateID, creatorID, fields)
}

// copyFields deep-copies the pattern so the snapshot shares no memory with
// its source.
func copyFields(src model.ChoreFields) model.ChoreFields {
	dst := src
	if src.Recurrence != nil {
		p := *src.Recurrence
		p.Weekdays = append([]int(nil), src.Recurrence.Weekdays...)
		dst.Recurrence = &p
	}
	return dst
}
