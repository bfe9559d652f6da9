package chore

import (
	"time"

	"github.com/dukerupert/chorely/internal/model"
)

// EffectiveStatus returns the stored status, or overdue when the assignment is
// still pending past its due time.
func EffectiveStatus(a model.ChoreAssignment, now time.Time) model.AssignmentStatus {
	if a.Status == model.AssignmentPending && now.After(a.DueAt) {
		return model.AssignmentOverdue
	}
	return a.Status
}

// AssignmentView is an assignment with its chore snapshot and derived status.
type AssignmentView struct {
	model.ChoreAssignment
	Chore           *model.ChoreInstance   `json:"chore,omitempty"`
	EffectiveStatus model.AssignmentStatus `json:"effective_status"`
}

// endOfDay returns the last second of the UTC calendar date of t.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 23, 59, 59, 0, time.UTC)
}
