package chore

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/recurrence"
	"github.com/dukerupert/chorely/internal/store"
)

// maxBackfillDays is how many past days a new series may generate.
const maxBackfillDays = 7

// RecurrenceInput opens a series. Pattern defaults to the template's pattern.
// LastGeneratedDate defaults to yesterday so today's occurrence is generated
// on the next run.
type RecurrenceInput struct {
	TemplateID        string              `json:"template_id"`
	AssigneeID        string              `json:"assignee_id"`
	Pattern           *recurrence.Pattern `json:"pattern"`
	Priority          model.Priority      `json:"priority"`
	LastGeneratedDate string              `json:"last_generated_date"`
}

func (s *Service) CreateRecurrence(ctx context.Context, tenantID, assignerID string, in RecurrenceInput) (*model.ChoreRecurrence, error) {
	fields := map[string]string{}
	if in.TemplateID == "" {
		fields["template_id"] = "template_id is required"
	}
	if in.AssigneeID == "" {
		fields["assignee_id"] = "assignee_id is required"
	}
	if !in.Priority.Valid() {
		fields["priority"] = "priority must be one of [low medium high]"
	}
	if in.Pattern != nil {
		if err := in.Pattern.Validate(); err != nil {
			fields["pattern"] = err.Error()
		}
	}
	watermark := recurrence.Day(s.now()).AddDate(0, 0, -1)
	if in.LastGeneratedDate != "" {
		d, err := recurrence.ParseDate(in.LastGeneratedDate)
		switch {
		case err != nil:
			fields["last_generated_date"] = "last_generated_date must be YYYY-MM-DD"
		case d.Before(backfillFloor(s.now())):
			fields["last_generated_date"] = fmt.Sprintf("last_generated_date must be at most %d days before today", maxBackfillDays+1)
		}
		watermark = d
	}
	if len(fields) > 0 {
		return nil, &ValidationError{Fields: fields}
	}

	var series *model.ChoreRecurrence
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		tmpl, err := st.Templates.GetByID(ctx, tenantID, in.TemplateID)
		if err != nil {
			return err
		}
		if tmpl == nil || !tmpl.Active {
			return notFound("template")
		}
		if _, err := requireMember(ctx, st, tenantID, in.AssigneeID); err != nil {
			return err
		}

		pattern := in.Pattern
		if pattern == nil {
			pattern = copyFields(tmpl.ChoreFields).Recurrence
		}
		if pattern == nil {
			return invalidField("pattern", "template has no recurrence pattern")
		}

		exists, err := st.Recurrences.HasActive(ctx, tmpl.ID, in.AssigneeID)
		if err != nil {
			return err
		}
		if exists {
			return invalidState("an active series already exists for this template and assignee")
		}

		series, err = st.Recurrences.Create(ctx, model.ChoreRecurrence{
			TenantID:          tenantID,
			TemplateID:        tmpl.ID,
			AssigneeID:        in.AssigneeID,
			AssignerID:        assignerID,
			Pattern:           *pattern,
			Priority:          in.Priority,
			LastGeneratedDate: watermark.Format(recurrence.DateLayout),
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("recurrence created", "tenant_id", tenantID, "recurrence_id", series.ID, "rule", series.Pattern.String())
	return series, nil
}

// backfillFloor is the earliest watermark a series may be opened with.
func backfillFloor(now time.Time) time.Time {
	return recurrence.Day(now).AddDate(0, 0, -(maxBackfillDays + 1))
}

func (s *Service) GetRecurrence(ctx context.Context, tenantID, id string) (*model.ChoreRecurrence, error) {
	r, err := s.read().Recurrences.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if r == nil {
		return nil, notFound("recurrence")
	}
	return r, nil
}

func (s *Service) ListRecurrences(ctx context.Context, tenantID string) ([]model.ChoreRecurrence, error) {
	return s.read().Recurrences.ListByTenant(ctx, tenantID)
}

// DeactivateRecurrence stops generation. Assignments already generated stay.
func (s *Service) DeactivateRecurrence(ctx context.Context, tenantID, id string) (*model.ChoreRecurrence, error) {
	var series *model.ChoreRecurrence
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		current, err := st.Recurrences.GetByID(ctx, tenantID, id)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("recurrence")
		}
		if _, err := st.Recurrences.Deactivate(ctx, tenantID, id); err != nil {
			return err
		}
		series, err = st.Recurrences.GetByID(ctx, tenantID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return series, nil
}
