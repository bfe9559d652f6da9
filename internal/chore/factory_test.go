package chore

import (
	"context"
	"testing"

	"github.com/dukerupert/chorely/internal/model"
)

func TestFromTemplateCopiesFields(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	f := cleanRoom()
	f.Description = "Bed, floor, desk"
	f.IsRecurring = true
	f.Recurrence = weeklyMWF()
	tmpl := e.createTemplate(t, f)

	inst, err := NewFactory(e.db).FromTemplate(ctx, e.tenant.ID, tmpl.ID, e.parent.ID)
	if err != nil {
		t.Fatalf("from template: %v", err)
	}
	if inst.TemplateID == nil || *inst.TemplateID != tmpl.ID {
		t.Errorf("template_id = %v, want %s", inst.TemplateID, tmpl.ID)
	}
	if inst.Title != f.Title || inst.Description != f.Description || inst.Points != f.Points ||
		inst.Difficulty != f.Difficulty || inst.EstimatedMinutes != f.EstimatedMinutes {
		t.Errorf("instance fields = %+v, want %+v", inst.ChoreFields, f)
	}
	if inst.Recurrence == nil || inst.Recurrence.String() != "FREQ=WEEKLY;BYDAY=MO,WE,FR" {
		t.Errorf("recurrence = %v", inst.Recurrence)
	}
}

func TestFromTemplateInactiveOrMissing(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())

	if _, err := e.svc.DeactivateTemplate(ctx, e.tenant.ID, tmpl.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	_, err := NewFactory(e.db).FromTemplate(ctx, e.tenant.ID, tmpl.ID, e.parent.ID)
	assertKind(t, err, ErrNotFound)

	_, err = NewFactory(e.db).FromTemplate(ctx, e.tenant.ID, "missing", e.parent.ID)
	assertKind(t, err, ErrNotFound)
}

func TestAdHocValidatesAndHasNoTemplate(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	f := NewFactory(e.db)

	bad := cleanRoom()
	bad.EstimatedMinutes = 600
	_, err := f.AdHoc(ctx, e.tenant.ID, bad, e.parent.ID)
	assertKind(t, err, ErrValidation)

	inst, err := f.AdHoc(ctx, e.tenant.ID, cleanRoom(), e.parent.ID)
	if err != nil {
		t.Fatalf("ad hoc: %v", err)
	}
	if inst.TemplateID != nil {
		t.Errorf("template_id = %v, want nil", *inst.TemplateID)
	}
}

func TestInstanceImmutableAfterTemplateEdit(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())
	a := e.assign(t, tmpl.ID)
	before := *a.Chore

	edited := model.ChoreFields{
		Title:            "Clean the whole house",
		Description:      "Everything",
		Points:           99,
		Difficulty:       model.DifficultyHard,
		EstimatedMinutes: 240,
		IsRecurring:      true,
		Recurrence:       weeklyMWF(),
	}
	if _, err := e.svc.UpdateTemplate(ctx, e.tenant.ID, e.parent.ID, tmpl.ID, edited); err != nil {
		t.Fatalf("update template: %v", err)
	}

	got, err := e.svc.GetAssignment(ctx, e.tenant.ID, a.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	after := got.Chore
	if after.Title != before.Title || after.Description != before.Description ||
		after.Points != before.Points || after.Difficulty != before.Difficulty ||
		after.EstimatedMinutes != before.EstimatedMinutes || after.IsRecurring != before.IsRecurring ||
		after.Recurrence != nil {
		t.Errorf("instance changed after template edit: before %+v, after %+v", before.ChoreFields, after.ChoreFields)
	}
}

func TestEditAssignmentChoreCreatesNewInstance(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	tmpl := e.createTemplate(t, cleanRoom())
	a := e.assign(t, tmpl.ID)
	oldInstance := a.InstanceID

	f := cleanRoom()
	f.Title = "Clean room and closet"
	f.Points = 35
	edited, err := e.svc.EditAssignmentChore(ctx, e.tenant.ID, e.parent.ID, a.ID, f)
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if edited.InstanceID == oldInstance {
		t.Fatal("expected a new instance")
	}
	if edited.Chore.TemplateID == nil || *edited.Chore.TemplateID != tmpl.ID {
		t.Errorf("template back-reference lost: %v", edited.Chore.TemplateID)
	}

	prev, err := NewFactory(e.db).st.Instances.GetByID(ctx, e.tenant.ID, oldInstance)
	if err != nil {
		t.Fatalf("get old instance: %v", err)
	}
	if prev.Title != "Clean room" || prev.Points != 25 {
		t.Errorf("old instance mutated: %+v", prev.ChoreFields)
	}

	if _, err := e.svc.Submit(ctx, e.tenant.ID, a.ID, e.child.ID, SubmitInput{}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	_, err = e.svc.EditAssignmentChore(ctx, e.tenant.ID, e.parent.ID, a.ID, f)
	assertKind(t, err, ErrInvalidState)
}
