package chore

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/recurrence"
)

// fixedNow is Sunday 1 February 2026, noon UTC.
var fixedNow = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

type env struct {
	db     *sql.DB
	svc    *Service
	events *notify.Recorder
	tenant *model.Tenant
	admin  *model.Member
	parent *model.Member
	child  *model.Member
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setup(t *testing.T) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	rec := &notify.Recorder{}
	svc := NewService(db, rec, testLogger())
	svc.now = func() time.Time { return fixedNow }

	ctx := context.Background()
	tenant, admin, err := svc.CreateTenant(ctx, "Smiths", "Dad")
	if err != nil {
		t.Fatalf("create tenant: %v", err)
	}
	parent, err := svc.CreateMember(ctx, tenant.ID, MemberInput{Name: "Mom", Role: model.RoleParent})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := svc.CreateMember(ctx, tenant.ID, MemberInput{Name: "Alice", Role: model.RoleChild})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	return &env{db: db, svc: svc, events: rec, tenant: tenant, admin: admin, parent: parent, child: child}
}

func cleanRoom() model.ChoreFields {
	return model.ChoreFields{
		Title:            "Clean room",
		Points:           25,
		Difficulty:       model.DifficultyMedium,
		EstimatedMinutes: 45,
	}
}

func weeklyMWF() *recurrence.Pattern {
	return &recurrence.Pattern{Type: recurrence.Weekly, Weekdays: []int{1, 3, 5}}
}

func assertKind(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("err = %v, want %v", err, want)
	}
}

func (e *env) createTemplate(t *testing.T, fields model.ChoreFields) *model.ChoreTemplate {
	t.Helper()
	tmpl, err := e.svc.CreateTemplate(context.Background(), e.tenant.ID, e.parent.ID, fields)
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tmpl
}

func (e *env) assign(t *testing.T, templateID string) *AssignmentView {
	t.Helper()
	a, err := e.svc.CreateAssignment(context.Background(), e.tenant.ID, e.parent.ID, AssignmentInput{
		TemplateID: &templateID,
		AssigneeID: e.child.ID,
		DueAt:      fixedNow.Add(24 * time.Hour),
		Priority:   model.PriorityMedium,
	})
	if err != nil {
		t.Fatalf("create assignment: %v", err)
	}
	return a
}

func intPtr(n int) *int { return &n }

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM ` + table).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func balance(t *testing.T, e *env, memberID string) int {
	t.Helper()
	b, err := e.svc.Balance(context.Background(), e.tenant.ID, memberID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return b.Balance
}

