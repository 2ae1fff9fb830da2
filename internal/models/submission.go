package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Submission is the durable copy of an accepted submission. Rows are
// append-only; only the verdict changes, through an administrative override.
type Submission struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EvaluationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"evaluation_id"`
	TaskRunID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"task_run_id"`
	TeamID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"team_id"`
	MemberID     uuid.UUID      `gorm:"type:uuid;not null" json:"member_id"`
	SubmittedAt  time.Time      `gorm:"not null;index" json:"submitted_at"`
	Answers      datatypes.JSON `gorm:"type:json" json:"answers"`
	Verdict      string         `gorm:"size:16;not null" json:"verdict"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}
