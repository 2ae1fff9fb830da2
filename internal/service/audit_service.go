package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/models"
	"github.com/openvbs/arbiter/internal/repository"
)

// Audit action names. One per auditable engine event.
const (
	AuditRunCreated        = "run.created"
	AuditRunStarted        = "run.started"
	AuditRunEnded          = "run.ended"
	AuditTaskStarted       = "task.started"
	AuditTaskAborted       = "task.aborted"
	AuditTaskNavigated     = "task.navigated"
	AuditDurationAdjusted  = "task.duration_adjusted"
	AuditSubmissionPosted  = "submission.posted"
	AuditVerdictOverridden = "submission.verdict_overridden"
)

// AuditService records engine events durably and fans them out over NATS so
// external observers can follow a run live.
type AuditService interface {
	Record(ctx context.Context, evaluationID, actorID uuid.UUID, action string, metadata map[string]any)
	List(ctx context.Context, evaluationID *uuid.UUID, action string, limit int) ([]dto.AuditEntryResponse, error)
}

type auditService struct {
	repo        repository.AuditRepository
	nats        *nats.Conn
	natsSubject string
	logger      zerolog.Logger
	now         func() time.Time
}

type auditEvent struct {
	EvaluationID uuid.UUID      `json:"evaluation_id"`
	ActorID      uuid.UUID      `json:"actor_id"`
	Action       string         `json:"action"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	At           time.Time      `json:"at"`
}

// NewAuditService constructs an AuditService instance. The NATS connection
// may be nil, in which case events are only persisted.
func NewAuditService(repo repository.AuditRepository, natsConn *nats.Conn, subject string, logger zerolog.Logger) AuditService {
	return &auditService{
		repo:        repo,
		nats:        natsConn,
		natsSubject: subject,
		logger:      logger.With().Str("component", "audit_service").Logger(),
		now:         time.Now,
	}
}

// Record is best effort: a failed audit write is logged, never surfaced to
// the caller, so it cannot undo an already-applied engine mutation.
func (s *auditService) Record(ctx context.Context, evaluationID, actorID uuid.UUID, action string, metadata map[string]any) {
	entry := models.AuditEntry{
		EvaluationID: evaluationID,
		ActorID:      actorID,
		Action:       action,
		Metadata:     datatypes.JSONMap(metadata),
	}
	if err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.Error().Err(err).Str("action", action).Msg("failed to persist audit entry")
	}

	if s.nats == nil || s.natsSubject == "" {
		return
	}
	payload, err := json.Marshal(auditEvent{
		EvaluationID: evaluationID,
		ActorID:      actorID,
		Action:       action,
		Metadata:     metadata,
		At:           s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode audit event")
		return
	}
	if err := s.nats.Publish(s.natsSubject, payload); err != nil {
		s.logger.Warn().Err(err).Str("action", action).Msg("failed to publish audit event")
	}
}

func (s *auditService) List(ctx context.Context, evaluationID *uuid.UUID, action string, limit int) ([]dto.AuditEntryResponse, error) {
	entries, err := s.repo.List(ctx, repository.AuditQuery{
		EvaluationID: evaluationID,
		Action:       action,
		Limit:        limit,
	})
	if err != nil {
		return nil, err
	}
	responses := make([]dto.AuditEntryResponse, len(entries))
	for i, entry := range entries {
		responses[i] = dto.NewAuditEntryResponse(entry)
	}
	return responses, nil
}
