package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx so every store can run inside
// a caller-owned transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Stores groups every store bound to the same handle.
type Stores struct {
	Tenants     *TenantStore
	Members     *MemberStore
	Templates   *TemplateStore
	Instances   *InstanceStore
	Recurrences *RecurrenceStore
	Assignments *AssignmentStore
	Submissions *SubmissionStore
	Ledger      *LedgerStore
	Rewards     *RewardStore
	Push        *PushStore
}

func New(db DBTX) *Stores {
	return &Stores{
		Tenants:     NewTenantStore(db),
		Members:     NewMemberStore(db),
		Templates:   NewTemplateStore(db),
		Instances:   NewInstanceStore(db),
		Recurrences: NewRecurrenceStore(db),
		Assignments: NewAssignmentStore(db),
		Submissions: NewSubmissionStore(db),
		Ledger:      NewLedgerStore(db),
		Rewards:     NewRewardStore(db),
		Push:        NewPushStore(db),
	}
}

type scanner interface{ Scan(...any) error }

func newID() string {
	return uuid.NewString()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
