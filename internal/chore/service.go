// Package chore implements the chore template, instance, assignment and
// recurrence lifecycle. Every operation takes the tenant and acting member
// explicitly and runs as one transaction.
package chore

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/dukerupert/chorely/internal/database"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/store"
)

type Service struct {
	db     *sql.DB
	events notify.Emitter
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db *sql.DB, events notify.Emitter, logger *slog.Logger) *Service {
	if events == nil {
		events = notify.Nop
	}
	return &Service{
		db:     db,
		events: events,
		logger: logger.With("component", "chore"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// read returns stores bound to the pool for single-statement reads.
func (s *Service) read() *store.Stores {
	return store.New(s.db)
}

// tx runs fn with stores bound to one transaction. Events queued by fn are
// emitted only after a successful commit.
func (s *Service) tx(ctx context.Context, fn func(st *store.Stores, q *queue) error) error {
	q := &queue{}
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(store.New(tx), q)
	})
	if err != nil {
		return err
	}
	q.flush(ctx, s.events, s.now())
	return nil
}

type queue struct {
	events []notify.Event
}

func (q *queue) add(name, tenantID, memberID, entityID string, payload any) {
	q.events = append(q.events, notify.Event{
		Name:     name,
		TenantID: tenantID,
		MemberID: memberID,
		EntityID: entityID,
		Payload:  payload,
	})
}

func (q *queue) flush(ctx context.Context, em notify.Emitter, now time.Time) {
	for _, e := range q.events {
		e.OccurredAt = now.UTC()
		em.Emit(ctx, e)
	}
}
