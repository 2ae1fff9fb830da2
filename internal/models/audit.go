package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEntry captures one auditable engine event: a state transition, a
// submission acceptance or rejection, a verdict override.
type AuditEntry struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	EvaluationID uuid.UUID         `gorm:"type:uuid;not null;index" json:"evaluation_id"`
	ActorID      uuid.UUID         `gorm:"type:uuid" json:"actor_id"`
	Action       string            `gorm:"size:64;not null;index" json:"action"`
	Metadata     datatypes.JSONMap `gorm:"type:json" json:"metadata"`
	CreatedAt    time.Time         `json:"created_at"`
}
