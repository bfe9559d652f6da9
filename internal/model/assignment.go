package model

import "time"

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type AssignmentStatus string

const (
	AssignmentPending   AssignmentStatus = "pending"
	AssignmentSubmitted AssignmentStatus = "submitted"
	AssignmentApproved  AssignmentStatus = "approved"
	AssignmentRejected  AssignmentStatus = "rejected"
	// AssignmentOverdue is derived at read time and never stored.
	AssignmentOverdue AssignmentStatus = "overdue"
)

func (s AssignmentStatus) Valid() bool {
	switch s {
	case AssignmentPending, AssignmentSubmitted, AssignmentApproved, AssignmentRejected, AssignmentOverdue:
		return true
	}
	return false
}

type ChoreAssignment struct {
	ID             string           `json:"id"`
	TenantID       string           `json:"tenant_id"`
	InstanceID     string           `json:"instance_id"`
	AssigneeID     string           `json:"assignee_id"`
	AssignerID     string           `json:"assigner_id"`
	RecurrenceID   *string          `json:"recurrence_id,omitempty"`
	OccurrenceDate *string          `json:"occurrence_date,omitempty"`
	DueAt          time.Time        `json:"due_at"`
	Priority       Priority         `json:"priority"`
	Status         AssignmentStatus `json:"status"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

type ChoreSubmission struct {
	ID            string       `json:"id"`
	TenantID      string       `json:"tenant_id"`
	AssignmentID  string       `json:"assignment_id"`
	SubmittedBy   string       `json:"submitted_by"`
	Notes         string       `json:"notes"`
	MediaURLs     []string     `json:"media_urls"`
	SubmittedAt   time.Time    `json:"submitted_at"`
	ReviewedAt    *time.Time   `json:"reviewed_at,omitempty"`
	ReviewedBy    *string      `json:"reviewed_by,omitempty"`
	ReviewStatus  ReviewStatus `json:"review_status"`
	Feedback      string       `json:"feedback"`
	PointsAwarded *int         `json:"points_awarded,omitempty"`
}
