package model

import (
	"time"

	"github.com/dukerupert/chorely/internal/recurrence"
)

// ChoreRecurrence is an active generation series. LastGeneratedDate is the
// watermark up to which assignments exist, formatted as recurrence.DateLayout.
type ChoreRecurrence struct {
	ID                string             `json:"id"`
	TenantID          string             `json:"tenant_id"`
	TemplateID        string             `json:"template_id"`
	AssigneeID        string             `json:"assignee_id"`
	AssignerID        string             `json:"assigner_id"`
	Pattern           recurrence.Pattern `json:"pattern"`
	Priority          Priority           `json:"priority"`
	LastGeneratedDate string             `json:"last_generated_date"`
	Active            bool               `json:"active"`
	NeedsAttention    bool               `json:"needs_attention"`
	CreatedAt         time.Time          `json:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at"`
}
