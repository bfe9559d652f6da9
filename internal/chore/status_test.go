package chore

import (
	"testing"
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

func TestEffectiveStatus(t *testing.T) {
	due := time.Date(2026, 2, 5, 23, 59, 59, 0, time.UTC)
	before := due.Add(-time.Hour)
	after := due.Add(time.Minute)

	tests := []struct {
		name   string
		status model.AssignmentStatus
		now    time.Time
		want   model.AssignmentStatus
	}{
		{"pending before due", model.AssignmentPending, before, model.AssignmentPending},
		{"pending at due", model.AssignmentPending, due, model.AssignmentPending},
		{"pending past due", model.AssignmentPending, after, model.AssignmentOverdue},
		{"submitted past due", model.AssignmentSubmitted, after, model.AssignmentSubmitted},
		{"rejected past due", model.AssignmentRejected, after, model.AssignmentRejected},
		{"approved past due", model.AssignmentApproved, after, model.AssignmentApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := model.ChoreAssignment{Status: tt.status, DueAt: due}
			if got := EffectiveStatus(a, tt.now); got != tt.want {
				t.Errorf("EffectiveStatus = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEffectiveStatusNeverStored(t *testing.T) {
	a := model.ChoreAssignment{Status: model.AssignmentPending, DueAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	_ = EffectiveStatus(a, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	if a.Status != model.AssignmentPending {
		t.Errorf("status = %q, want pending", a.Status)
	}
}

func TestEndOfDay(t *testing.T) {
	got := endOfDay(time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC))
	want := time.Date(2026, 2, 6, 23, 59, 59, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("endOfDay = %v, want %v", got, want)
	}
}
