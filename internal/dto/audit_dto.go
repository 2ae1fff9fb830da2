package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/openvbs/arbiter/internal/models"
)

// AuditEntryResponse is the public view of one audit log entry.
type AuditEntryResponse struct {
	ID           uint           `json:"id"`
	EvaluationID uuid.UUID      `json:"evaluation_id"`
	ActorID      uuid.UUID      `json:"actor_id"`
	Action       string         `json:"action"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewAuditEntryResponse builds the view from the stored row.
func NewAuditEntryResponse(entry models.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:           entry.ID,
		EvaluationID: entry.EvaluationID,
		ActorID:      entry.ActorID,
		Action:       entry.Action,
		Metadata:     entry.Metadata,
		CreatedAt:    entry.CreatedAt,
	}
}
