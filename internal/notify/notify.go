// Package notify fans chore lifecycle events out to live clients, message
// brokers and push services.
package notify

import (
	"context"
	"time"
)

// Event names
const (
	AssignmentCreated   = "assignment.created"
	AssignmentUpdated   = "assignment.updated"
	SubmissionCreated   = "submission.created"
	SubmissionReviewed  = "submission.reviewed"
	RecurrenceGenerated = "recurrence.generated"
	TemplateCreated     = "template.created"
	TemplateUpdated     = "template.updated"
	TemplateDeactivated = "template.deactivated"
	RewardRedeemed      = "reward.redeemed"
)

// Event is one lifecycle notification. MemberID names the member the event is
// about (the assignee, or the redeeming member) and may be empty.
type Event struct {
	Name       string    `json:"name"`
	TenantID   string    `json:"tenant_id"`
	MemberID   string    `json:"member_id,omitempty"`
	EntityID   string    `json:"entity_id"`
	Payload    any       `json:"payload,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Emitter delivers events. Delivery is best effort; implementations log their
// own failures instead of returning them.
type Emitter interface {
	Emit(ctx context.Context, e Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, e Event)

func (f EmitterFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// Multi delivers each event to every non-nil emitter in order.
func Multi(emitters ...Emitter) Emitter {
	var out multi
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return out
}

type multi []Emitter

func (m multi) Emit(ctx context.Context, e Event) {
	for _, em := range m {
		em.Emit(ctx, e)
	}
}

// Nop discards every event.
var Nop Emitter = EmitterFunc(func(context.Context, Event) {})

// Recorder keeps emitted events in memory. Tests use it to assert on
// notifications.
type Recorder struct {
	Events []Event
}

func (r *Recorder) Emit(_ context.Context, e Event) {
	r.Events = append(r.Events, e)
}

// Names returns the names of the recorded events in order.
func (r *Recorder) Names() []string {
	names := make([]string, len(r.Events))
	for i, e := range r.Events {
		names[i] = e.Name
	}
	return names
}
