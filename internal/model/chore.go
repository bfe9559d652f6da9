package model

import (
	"time"

	"github.com/dukerupert/chorely/internal/recurrence"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ChoreFields are the definitional fields shared by templates and instances.
type ChoreFields struct {
	Title            string              `json:"title" validate:"notblank,min=2,max=100"`
	Description      string              `json:"description" validate:"max=2000"`
	Points           int                 `json:"points" validate:"min=1,max=1000"`
	Difficulty       Difficulty          `json:"difficulty" validate:"oneof=easy medium hard"`
	EstimatedMinutes int                 `json:"estimated_minutes" validate:"min=5,max=480"`
	IsRecurring      bool                `json:"is_recurring"`
	Recurrence       *recurrence.Pattern `json:"recurrence,omitempty"`
}

// ChoreTemplate is a reusable, editable chore definition.
type ChoreTemplate struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	ChoreFields
	CreatedBy string    `json:"created_by"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// Instances counts the chore instances snapshotted from this template.
	// Only single-template reads fill it in.
	Instances int       `json:"instances"`
}

// ChoreInstance is the snapshot of a chore definition taken when an
// assignment is created. It is never updated after insert.
type ChoreInstance struct {
	ID         string  `json:"id"`
	TenantID   string  `json:"tenant_id"`
	TemplateID *string `json:"template_id"`
	ChoreFields
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
