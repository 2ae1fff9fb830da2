package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Evaluation is the persisted record of one competition run. The live state
// machine is held in memory by the engine; rows here are the durable
// write-behind snapshot.
type Evaluation struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID  uuid.UUID         `gorm:"type:uuid;not null;index" json:"template_id"`
	Name        string            `gorm:"size:255;not null" json:"name"`
	Synchronous bool              `gorm:"not null" json:"synchronous"`
	Status      string            `gorm:"size:32;not null" json:"status"`
	Properties  datatypes.JSONMap `gorm:"type:json" json:"properties"`
	Teams       []EvaluationTeam  `gorm:"constraint:OnDelete:CASCADE" json:"teams"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Run status values mirrored from the engine.
const (
	EvaluationStatusCreated    = "CREATED"
	EvaluationStatusActive     = "ACTIVE"
	EvaluationStatusTerminated = "TERMINATED"
)

// EvaluationTeam is a participating team, immutable for the run's duration.
type EvaluationTeam struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	EvaluationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"evaluation_id"`
	Name         string         `gorm:"size:128;not null" json:"name"`
	Members      datatypes.JSON `gorm:"type:json" json:"members"`
	CreatedAt    time.Time      `json:"created_at"`
}

// TaskRun records one task execution attempt within an evaluation. TeamID is
// set for asynchronous runs, where every team executes its own attempt.
type TaskRun struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	EvaluationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"evaluation_id"`
	TeamID       *uuid.UUID `gorm:"type:uuid;index" json:"team_id,omitempty"`
	Name         string     `gorm:"size:255;not null" json:"name"`
	Position     int        `gorm:"not null" json:"position"`
	Status       string     `gorm:"size:32;not null" json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
