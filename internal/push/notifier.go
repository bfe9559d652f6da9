package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/chorely/internal/model"
	"github.com/dukerupert/chorely/internal/notify"
	"github.com/dukerupert/chorely/internal/store"
)

const queueSize = 64

// Notifier turns lifecycle events into push notifications. Emit only queues
// the event; a background worker started with Start does the delivery.
type Notifier struct {
	mu      sync.RWMutex
	sender  Sender
	members *store.MemberStore
	subs    *store.PushStore
	logger  *slog.Logger
	queue   chan notify.Event
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewNotifier(sender Sender, members *store.MemberStore, subs *store.PushStore, logger *slog.Logger) *Notifier {
	return &Notifier{
		sender:  sender,
		members: members,
		subs:    subs,
		logger:  logger.With("component", "push"),
		queue:   make(chan notify.Event, queueSize),
	}
}

// Emit implements notify.Emitter. Events are dropped when the queue is full.
func (n *Notifier) Emit(_ context.Context, e notify.Event) {
	if _, ok := render(e); !ok {
		return
	}
	select {
	case n.queue <- e:
	default:
		n.logger.Warn("push queue full, dropping event", "event", e.Name, "tenant_id", e.TenantID)
	}
}

func (n *Notifier) Start(ctx context.Context) {
	n.mu.Lock()
	ctx, n.cancel = context.WithCancel(ctx)
	n.done = make(chan struct{})
	n.mu.Unlock()

	go func() {
		defer close(n.done)
		for {
			select {
			case <-ctx.Done():
				return
			case e := <-n.queue:
				n.deliver(ctx, e)
			}
		}
	}()
}

// Stop waits for the worker to exit. Queued events are discarded.
func (n *Notifier) Stop() {
	n.mu.RLock()
	cancel := n.cancel
	done := n.done
	n.mu.RUnlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

// deliver sends e to every subscription of its recipients and prunes
// subscriptions the push service no longer accepts.
func (n *Notifier) deliver(ctx context.Context, e notify.Event) {
	payload, ok := render(e)
	if !ok {
		return
	}

	recipients, err := n.recipients(ctx, e)
	if err != nil {
		n.logger.Error("resolve recipients", "event", e.Name, "error", err)
		return
	}
	if len(recipients) == 0 {
		return
	}

	subs, err := n.subs.ListByMembers(ctx, e.TenantID, recipients)
	if err != nil {
		n.logger.Error("list subscriptions", "event", e.Name, "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(sub, payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				n.logger.Error("delete expired subscription", "error", err)
			}
		default:
			n.logger.Warn("send push", "event", e.Name, "member_id", sub.MemberID, "error", err)
		}
	}
}

// recipients returns the members an event is meant for. Submissions go to
// the people who can review them; everything else goes to the member the
// event is about.
func (n *Notifier) recipients(ctx context.Context, e notify.Event) ([]string, error) {
	if e.Name != notify.SubmissionCreated {
		if e.MemberID == "" {
			return nil, nil
		}
		return []string{e.MemberID}, nil
	}

	reviewers, err := n.members.ListByRoles(ctx, e.TenantID, model.RoleAdmin, model.RoleParent)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(reviewers))
	for _, m := range reviewers {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func render(e notify.Event) (Payload, bool) {
	switch e.Name {
	case notify.AssignmentCreated:
		return Payload{
			Title: "New chore",
			Body:  "You have a new chore to do",
			URL:   "/assignments/" + e.EntityID,
			Tag:   "assignment-" + e.EntityID,
		}, true
	case notify.SubmissionCreated:
		return Payload{
			Title: "Chore submitted",
			Body:  "A chore is waiting for your review",
			URL:   "/submissions/" + e.EntityID,
			Tag:   "submission-" + e.EntityID,
		}, true
	case notify.SubmissionReviewed:
		p := Payload{
			Title: "Chore reviewed",
			Body:  "Your chore was reviewed",
			URL:   "/submissions/" + e.EntityID,
			Tag:   "submission-" + e.EntityID,
		}
		if sub, ok := e.Payload.(*model.ChoreSubmission); ok {
			switch sub.ReviewStatus {
			case model.ReviewApproved:
				p.Body = "Your chore was approved"
				if sub.PointsAwarded != nil && *sub.PointsAwarded > 0 {
					p.Body = fmt.Sprintf("Your chore was approved: +%d points", *sub.PointsAwarded)
				}
			case model.ReviewRejected:
				p.Body = "Your chore needs another try: " + sub.Feedback
			}
		}
		return p, true
	case notify.RewardRedeemed:
		body := "Reward redeemed"
		if m, ok := e.Payload.(map[string]any); ok {
			if title, ok := m["title"].(string); ok {
				body = "You redeemed " + title
			}
		}
		return Payload{Title: "Reward redeemed", Body: body, URL: "/rewards", Tag: "reward-" + e.EntityID}, true
	}
	return Payload{}, false
}
