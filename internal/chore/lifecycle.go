package chore

import (
	"context"
	"strings"
	"time"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/recurrence"
	"github.com/dukerupert/chorely/internal/store"
	"github.com/dukerupert/chorely/internal/validation"
)

// AssignmentInput names either a template or an inline chore, never both.
// Recurring opens a generation series from a recurring template whose first
// occurrence is this assignment.
type AssignmentInput struct {
	TemplateID *string            `json:"template_id"`
	Chore      *model.ChoreFields `json:"chore"`
	AssigneeID string             `json:"assignee_id"`
	DueAt      time.Time          `json:"due_at"`
	Priority   model.Priority     `json:"priority"`
	Recurring  bool               `json:"recurring"`
}

func (in AssignmentInput) validate() error {
	fields := map[string]string{}
	if (in.TemplateID == nil) == (in.Chore == nil) {
		fields["template_id"] = "exactly one of template_id or chore is required"
	}
	if in.Recurring && in.TemplateID == nil {
		fields["recurring"] = "recurring assignments need a template"
	}
	if strings.TrimSpace(in.AssigneeID) == "" {
		fields["assignee_id"] = "assignee_id is required"
	}
	if in.DueAt.IsZero() {
		fields["due_at"] = "due_at must be a valid timestamp"
	}
	if !in.Priority.Valid() {
		fields["priority"] = "priority must be one of [low medium high]"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func (s *Service) CreateAssignment(ctx context.Context, tenantID, assignerID string, in AssignmentInput) (*AssignmentView, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var view *AssignmentView
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		if _, err := requireMember(ctx, st, tenantID, in.AssigneeID); err != nil {
			return err
		}

		f := &Factory{st: st}
		var inst *model.ChoreInstance
		var err error
		if in.TemplateID != nil {
			inst, err = f.FromTemplate(ctx, tenantID, *in.TemplateID, assignerID)
		} else {
			inst, err = f.AdHoc(ctx, tenantID, *in.Chore, assignerID)
		}
		if err != nil {
			return err
		}

		a := model.ChoreAssignment{
			TenantID:   tenantID,
			InstanceID: inst.ID,
			AssigneeID: in.AssigneeID,
			AssignerID: assignerID,
			DueAt:      in.DueAt.UTC(),
			Priority:   in.Priority,
		}

		if in.Recurring {
			series, err := s.openSeries(ctx, st, tenantID, assignerID, inst, in)
			if err != nil {
				return err
			}
			a.RecurrenceID = &series.ID
			a.OccurrenceDate = &series.LastGeneratedDate
		}

		created, err := st.Assignments.Create(ctx, a)
		if err != nil {
			return err
		}
		view = &AssignmentView{ChoreAssignment: *created, Chore: inst, EffectiveStatus: EffectiveStatus(*created, s.now())}
		q.add(notify.AssignmentCreated, tenantID, created.AssigneeID, created.ID, view)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("assignment created", "tenant_id", tenantID, "assignment_id", view.ID, "assignee_id", view.AssigneeID)
	return view, nil
}

// openSeries starts a recurrence series whose watermark is the first
// assignment's due date, so the runner continues after it.
func (s *Service) openSeries(ctx context.Context, st *store.Stores, tenantID, assignerID string, inst *model.ChoreInstance, in AssignmentInput) (*model.ChoreRecurrence, error) {
	if !inst.IsRecurring || inst.Recurrence == nil {
		return nil, invalidField("recurring", "template has no recurrence pattern")
	}
	exists, err := st.Recurrences.HasActive(ctx, *inst.TemplateID, in.AssigneeID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, invalidState("an active series already exists for this template and assignee")
	}
	watermark := recurrence.Day(in.DueAt)
	if floor := backfillFloor(s.now()); watermark.Before(floor) {
		watermark = floor
	}
	return st.Recurrences.Create(ctx, model.ChoreRecurrence{
		TenantID:          tenantID,
		TemplateID:        *inst.TemplateID,
		AssigneeID:        in.AssigneeID,
		AssignerID:        assignerID,
		Pattern:           *copyFields(inst.ChoreFields).Recurrence,
		Priority:          in.Priority,
		LastGeneratedDate: watermark.Format(recurrence.DateLayout),
	})
}

func (s *Service) GetAssignment(ctx context.Context, tenantID, id string) (*AssignmentView, error) {
	st := s.read()
	a, err := st.Assignments.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("assignment")
	}
	return s.view(ctx, st, *a)
}

func (s *Service) view(ctx context.Context, st *store.Stores, a model.ChoreAssignment) (*AssignmentView, error) {
	inst, err := st.Instances.GetByID(ctx, a.TenantID, a.InstanceID)
	if err != nil {
		return nil, err
	}
	return &AssignmentView{ChoreAssignment: a, Chore: inst, EffectiveStatus: EffectiveStatus(a, s.now())}, nil
}

// AssignmentFilter selects assignments. Status may be the derived overdue.
type AssignmentFilter struct {
	AssigneeID string
	Status     model.AssignmentStatus
}

func (s *Service) ListAssignments(ctx context.Context, tenantID string, filter AssignmentFilter) ([]AssignmentView, error) {
	st := s.read()
	sf := store.AssignmentFilter{AssigneeID: filter.AssigneeID, Status: filter.Status}
	if filter.Status == model.AssignmentOverdue {
		sf.Status = model.AssignmentPending
	}
	list, err := st.Assignments.List(ctx, tenantID, sf)
	if err != nil {
		return nil, err
	}

	views := make([]AssignmentView, 0, len(list))
	for _, a := range list {
		v, err := s.view(ctx, st, a)
		if err != nil {
			return nil, err
		}
		if filter.Status == model.AssignmentOverdue && v.EffectiveStatus != model.AssignmentOverdue {
			continue
		}
		views = append(views, *v)
	}
	return views, nil
}

// EditAssignmentChore replaces the chore of a pending or rejected assignment
// with a fresh instance. The previous instance is left as it was.
func (s *Service) EditAssignmentChore(ctx context.Context, tenantID, actorID, assignmentID string, fields model.ChoreFields) (*AssignmentView, error) {
	var view *AssignmentView
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		a, err := st.Assignments.GetByID(ctx, tenantID, assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return notFound("assignment")
		}
		if a.Status != model.AssignmentPending && a.Status != model.AssignmentRejected {
			return invalidState("assignment is %s", a.Status)
		}
		prev, err := st.Instances.GetByID(ctx, tenantID, a.InstanceID)
		if err != nil {
			return err
		}
		if prev == nil {
			return notFound("chore instance")
		}

		f := &Factory{st: st}
		inst, err := f.revise(ctx, prev, fields, actorID)
		if err != nil {
			return err
		}
		ok, err := st.Assignments.SetInstance(ctx, tenantID, a.ID, inst.ID)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("assignment changed concurrently")
		}
		a.InstanceID = inst.ID
		view = &AssignmentView{ChoreAssignment: *a, Chore: inst, EffectiveStatus: EffectiveStatus(*a, s.now())}
		q.add(notify.AssignmentUpdated, tenantID, a.AssigneeID, a.ID, view)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

// SubmitInput is a completion claim.
type SubmitInput struct {
	Notes     string   `json:"notes" validate:"max=2000"`
	MediaURLs []string `json:"media_urls" validate:"max=10,dive,url"`
}

// Submit records a completion claim by the assignee and moves the assignment
// to submitted. Only pending and rejected assignments accept submissions.
func (s *Service) Submit(ctx context.Context, tenantID, assignmentID, submitterID string, in SubmitInput) (*model.ChoreSubmission, error) {
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validation.Struct(in); err != nil {
		return nil, fromValidation(err)
	}

	var sub *model.ChoreSubmission
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		a, err := st.Assignments.GetByID(ctx, tenantID, assignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return notFound("assignment")
		}
		if a.AssigneeID != submitterID {
			return invalidState("only the assignee may submit")
		}
		if a.Status != model.AssignmentPending && a.Status != model.AssignmentRejected {
			return invalidState("assignment is %s", a.Status)
		}
		ok, err := st.Assignments.Transition(ctx, tenantID, a.ID, model.AssignmentSubmitted, model.AssignmentPending, model.AssignmentRejected)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("assignment changed concurrently")
		}
		if sub, err = st.Submissions.Create(ctx, tenantID, a.ID, submitterID, in.Notes, in.MediaURLs); err != nil {
			return err
		}
		q.add(notify.SubmissionCreated, tenantID, a.AssigneeID, sub.ID, sub)
		q.add(notify.AssignmentUpdated, tenantID, a.AssigneeID, a.ID, map[string]any{"status": model.AssignmentSubmitted})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("submission created", "tenant_id", tenantID, "assignment_id", assignmentID, "submission_id", sub.ID)
	return sub, nil
}

// ReviewInput is a reviewer's decision. PointsAwarded defaults to the chore's
// points when an approval omits it.
type ReviewInput struct {
	Decision      model.ReviewStatus `json:"decision"`
	Feedback      string             `json:"feedback"`
	PointsAwarded *int               `json:"points_awarded"`
}

const maxPointsAwarded = 1000

func (in *ReviewInput) validate() error {
	in.Feedback = strings.TrimSpace(in.Feedback)
	switch in.Decision {
	case model.ReviewApproved:
		if in.PointsAwarded != nil && (*in.PointsAwarded < 0 || *in.PointsAwarded > maxPointsAwarded) {
			return invalidField("points_awarded", "points_awarded must be between 0 and 1000")
		}
	case model.ReviewRejected:
		if in.Feedback == "" {
			return invalidField("feedback", "feedback is required when rejecting")
		}
		in.PointsAwarded = nil
	default:
		return invalidField("decision", "decision must be one of [approved rejected]")
	}
	return nil
}

// Review decides a pending submission. Approval is terminal and credits the
// assignee's points in the same transaction; rejection reopens the assignment.
func (s *Service) Review(ctx context.Context, tenantID, submissionID, reviewerID string, in ReviewInput) (*model.ChoreSubmission, error) {
	var sub *model.ChoreSubmission
	err := s.tx(ctx, func(st *store.Stores, q *queue) error {
		reviewer, err := st.Members.GetByID(ctx, tenantID, reviewerID)
		if err != nil {
			return err
		}
		if reviewer == nil || !reviewer.Role.CanReview() {
			return forbidden("only an admin or parent may review")
		}
		if err := in.validate(); err != nil {
			return err
		}

		current, err := st.Submissions.GetByID(ctx, tenantID, submissionID)
		if err != nil {
			return err
		}
		if current == nil {
			return notFound("submission")
		}
		if current.ReviewStatus != model.ReviewPending {
			return invalidState("submission is already %s", current.ReviewStatus)
		}
		a, err := st.Assignments.GetByID(ctx, tenantID, current.AssignmentID)
		if err != nil {
			return err
		}
		if a == nil {
			return notFound("assignment")
		}

		if in.Decision == model.ReviewApproved && in.PointsAwarded == nil {
			inst, err := st.Instances.GetByID(ctx, tenantID, a.InstanceID)
			if err != nil {
				return err
			}
			if inst == nil {
				return notFound("chore instance")
			}
			pts := inst.Points
			in.PointsAwarded = &pts
		}

		ok, err := st.Submissions.Review(ctx, tenantID, current.ID, reviewerID, in.Decision, in.Feedback, in.PointsAwarded)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("submission was reviewed concurrently")
		}

		to := model.AssignmentApproved
		if in.Decision == model.ReviewRejected {
			to = model.AssignmentRejected
		}
		ok, err = st.Assignments.Transition(ctx, tenantID, a.ID, to, model.AssignmentSubmitted)
		if err != nil {
			return err
		}
		if !ok {
			return invalidState("assignment is not awaiting review")
		}

		if to == model.AssignmentApproved && *in.PointsAwarded > 0 {
			if _, err := st.Ledger.Add(ctx, tenantID, a.AssigneeID, *in.PointsAwarded, model.LedgerChoreApproved, a.ID); err != nil {
				return err
			}
		}

		if sub, err = st.Submissions.GetByID(ctx, tenantID, current.ID); err != nil {
			return err
		}
		q.add(notify.SubmissionReviewed, tenantID, a.AssigneeID, sub.ID, sub)
		q.add(notify.AssignmentUpdated, tenantID, a.AssigneeID, a.ID, map[string]any{"status": to})
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("submission reviewed", "tenant_id", tenantID, "submission_id", submissionID, "decision", in.Decision)
	return sub, nil
}

func (s *Service) ListSubmissions(ctx context.Context, tenantID, assignmentID string) ([]model.ChoreSubmission, error) {
	st := s.read()
	a, err := st.Assignments.GetByID(ctx, tenantID, assignmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, notFound("assignment")
	}
	return st.Submissions.ListByAssignment(ctx, tenantID, assignmentID)
}

func (s *Service) GetSubmission(ctx context.Context, tenantID, id string) (*model.ChoreSubmission, error) {
	sub, err := s.read().Submissions.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, notFound("submission")
	}
	return sub, nil
}
