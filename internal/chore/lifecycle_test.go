package chore

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/notify"
)

func TestCreateAssignmentValidation(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())

	base := func() AssignmentInput {
		return AssignmentInput{
			TemplateID: &tmpl.ID,
			AssigneeID: e.child.ID,
			DueAt:      fixedNow.Add(time.Hour),
			Priority:   model.PriorityHigh,
		}
	}

	in := base()
	in.DueAt = time.Time{}
	_, err := e.svc.CreateAssignment(ctx, e.tenant.ID, e.parent.ID, in)
	assertKind(t, err, ErrValidation)

	in = base()
	in.Priority = "urgent"
	_, err = e.svc.CreateAssignment(ctx, e.tenant.ID, e.parent.ID, in)
	assertKind(t, err, ErrValidation)

	in = base()
	chore := cleanRoom()
	in.Chore = &chore
	_, err = e.svc.CreateAssignment(ctx, e.tenant.ID, e.parent.ID, in)
	assertKind(t, err, ErrValidation)

	in = base()
	in.AssigneeID = "stranger"
	_, err = e.svc.CreateAssignment(ctx, e.tenant.ID, e.parent.ID, in)
	assertKind(t, err, ErrNotFound)

	if n := countRows(t, e.db, "chore_instances"); n != 0 {
		t.Errorf("instances = %d, want 0 after failed creates", n)
	}
}

func TestCreateAdHocAssignment(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	chore := cleanRoom()
	a, err := e.svc.CreateAssignment(ctx, e.tenant.ID, e.parent.ID, AssignmentInput{
		Chore:      &chore,
		AssigneeID: e.child.ID,
		DueAt:      fixedNow.Add(time.Hour),
		Priority:   model.PriorityLow,
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if a.Status != model.AssignmentPending {
		t.Errorf("status = %q, want pending", a.Status)
	}
	if a.Chore == nil || a.Chore.TemplateID != nil {
		t.Errorf("chore = %+v, want ad hoc instance", a.Chore)
	}
	if got := e.events.Names(); got[len(got)-1] != notify.AssignmentCreated {
		t.Errorf("events = %v, want assignment.created last", got)
	}
}

func TestOverdueIsDerived(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())

	a, err := e.svc.CreateAssignment(ctx, e.tenant.ID, e.parent.ID, AssignmentInput{
		TemplateID: &tmpl.ID,
		AssigneeID: e.child.ID,
		DueAt:      fixedNow.Add(-time.Hour),
		Priority:   model.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	if a.Status != model.AssignmentPending {
		t.Errorf("stored status = %q, want pending", a.Status)
	}
	if a.EffectiveStatus != model.AssignmentOverdue {
		t.Errorf("effective status = %q, want overdue", a.EffectiveStatus)
	}

	e.assign(t, tmpl.ID)
	overdue, err := e.svc.ListAssignments(ctx, e.tenant.ID, AssignmentFilter{Status: model.AssignmentOverdue})
	if err != nil {
		t.Fatalf("list overdue: %v", err)
	}
	if len(overdue) != 1 || overdue[0].ID != a.ID {
		t.Errorf("overdue = %d items, want only %s", len(overdue), a.ID)
	}

	var stored string
	if err := e.db.QueryRow(`SELECT status FROM chore_assignments WHERE id = ?`, a.ID).Scan(&stored); err != nil {
		t.Fatalf("query status: %v", err)
	}
	if stored != "pending" {
		t.Errorf("stored status = %q, want pending", stored)
	}
}

func TestSubmitStateMachine(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())
	a := e.assign(t, tmpl.ID)

	_, err := e.svc.Submit(ctx, e.tenant.ID, a.ID, e.parent.ID, SubmitInput{})
	assertKind(t, err, ErrInvalidState)

	sub, err := e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{Notes: "done"})
	if err != nil {
		t.Fatalf("submit from pending: %v", err)
	}

	_, err = e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{})
	assertKind(t, err, ErrInvalidState)

	if _, err := e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{
		Decision: model.ReviewRejected, Feedback: "missed the closet",
	}); err != nil {
		t.Fatalf("reject: %v", err)
	}

	got, err := e.svc.GetAssignment(ctx, e.tenant.ID, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.AssignmentRejected {
		t.Fatalf("status = %q, want rejected", got.Status)
	}

	sub2, err := e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{Notes: "closet too"})
	if err != nil {
		t.Fatalf("submit from rejected: %v", err)
	}
	if _, err := e.svc.Review(ctx, e.tenant.ID, sub2.ID, e.parent.ID, ReviewInput{
		Decision: model.ReviewApproved, PointsAwarded: intPtr(20),
	}); err != nil {
		t.Fatalf("approve: %v", err)
	}

	_, err = e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{})
	assertKind(t, err, ErrInvalidState)

	history, err := e.svc.ListSubmissions(ctx, e.tenant.ID, a.ID)
	if err != nil {
		t.Fatalf("list submissions: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d, want 2", len(history))
	}
	if history[0].ReviewStatus != model.ReviewRejected || history[0].Feedback != "missed the closet" {
		t.Errorf("first submission = %+v, want rejected with feedback kept", history[0])
	}
	if history[1].ReviewStatus != model.ReviewApproved {
		t.Errorf("second submission = %q, want approved", history[1].ReviewStatus)
	}
}

func TestSubmitValidatesMedia(t *testing.T) {
	e := setup(t)
	tmpl := e.createTemplate(t, cleanRoom())
	a := e.assign(t, tmpl.ID)

	_, err := e.svc.Submit(context.Background(), e.tenant.ID, a.ID, e.child.ID, SubmitInput{MediaURLs: []string{"not a url"}})
	assertKind(t, err, ErrValidation)
}

func TestReviewRules(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())
	a := e.assign(t, tmpl.ID)
	sub, err := e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	_, err = e.svc.Review(ctx, e.tenant.ID, sub.ID, e.child.ID, ReviewInput{Decision: model.ReviewApproved, PointsAwarded: intPtr(5)})
	assertKind(t, err, ErrForbidden)

	_, err = e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{Decision: model.ReviewApproved, PointsAwarded: intPtr(-5)})
	assertKind(t, err, ErrValidation)

	_, err = e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{Decision: model.ReviewApproved, PointsAwarded: intPtr(1001)})
	assertKind(t, err, ErrValidation)

	_, err = e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{Decision: model.ReviewRejected, Feedback: "   "})
	assertKind(t, err, ErrValidation)

	_, err = e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{Decision: "maybe"})
	assertKind(t, err, ErrValidation)

	// defaults to the chore's points
	reviewed, err := e.svc.Review(ctx, e.tenant.ID, sub.ID, e.admin.ID, ReviewInput{Decision: model.ReviewApproved})
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if reviewed.PointsAwarded == nil || *reviewed.PointsAwarded != 25 {
		t.Errorf("points_awarded = %v, want 25", reviewed.PointsAwarded)
	}
	if reviewed.ReviewedBy == nil || *reviewed.ReviewedBy != e.admin.ID {
		t.Errorf("reviewed_by = %v, want admin", reviewed.ReviewedBy)
	}

	_, err = e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{Decision: model.ReviewRejected, Feedback: "changed my mind"})
	assertKind(t, err, ErrInvalidState)

	if got := balance(t, e, e.child.ID); got != 25 {
		t.Errorf("balance = %d, want 25", got)
	}
}

func TestReviewFailureLeavesStateUnchanged(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())
	a := e.assign(t, tmpl.ID)
	sub, err := e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	before := len(e.events.Events)

	_, err = e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{Decision: model.ReviewApproved, PointsAwarded: intPtr(-5)})
	assertKind(t, err, ErrValidation)

	got, err := e.svc.GetSubmission(ctx, e.tenant.ID, sub.ID)
	if err != nil {
		t.Fatalf("get submission: %v", err)
	}
	if got.ReviewStatus != model.ReviewPending {
		t.Errorf("review status = %q, want pending", got.ReviewStatus)
	}
	if n := countRows(t, e.db, "points_ledger"); n != 0 {
		t.Errorf("ledger rows = %d, want 0", n)
	}
	if len(e.events.Events) != before {
		t.Errorf("events emitted on failure: %v", e.events.Names()[before:])
	}
}

func TestCleanRoomScenario(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	tmpl := e.createTemplate(t, model.ChoreFields{
		Title:            "Clean room",
		Points:           25,
		Difficulty:       model.DifficultyMedium,
		EstimatedMinutes: 45,
		IsRecurring:      false,
	})

	a, err := e.svc.CreateAssignment(ctx, e.tenant.ID, e.parent.ID, AssignmentInput{
		TemplateID: &tmpl.ID,
		AssigneeID: e.child.ID,
		DueAt:      fixedNow.AddDate(0, 0, 1),
		Priority:   model.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}

	sub, err := e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{Notes: "done"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if sub.Notes != "done" {
		t.Errorf("notes = %q, want done", sub.Notes)
	}

	reviewed, err := e.svc.Review(ctx, e.tenant.ID, sub.ID, e.parent.ID, ReviewInput{
		Decision:      model.ReviewApproved,
		PointsAwarded: intPtr(25),
	})
	if err != nil {
		t.Fatalf("review: %v", err)
	}

	got, err := e.svc.GetAssignment(ctx, e.tenant.ID, a.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if got.Status != model.AssignmentApproved {
		t.Errorf("assignment status = %q, want approved", got.Status)
	}
	if reviewed.ReviewStatus != model.ReviewApproved {
		t.Errorf("review status = %q, want approved", reviewed.ReviewStatus)
	}

	entries, err := e.svc.PointsHistory(ctx, e.tenant.ID, e.child.ID)
	if err != nil {
		t.Fatalf("points history: %v", err)
	}
	if len(entries) != 1 || entries[0].Delta != 25 || entries[0].Reason != model.LedgerChoreApproved {
		t.Errorf("ledger = %+v, want one credit of 25", entries)
	}
	if got := balance(t, e, e.child.ID); got != 25 {
		t.Errorf("balance = %d, want 25", got)
	}

	want := []string{
		notify.TemplateCreated,
		notify.AssignmentCreated,
		notify.SubmissionCreated,
		notify.AssignmentUpdated,
		notify.SubmissionReviewed,
		notify.AssignmentUpdated,
	}
	names := e.events.Names()
	if len(names) != len(want) {
		t.Fatalf("events = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}
