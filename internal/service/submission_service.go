package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/engine"
	"github.com/openvbs/arbiter/internal/models"
	"github.com/openvbs/arbiter/internal/observability"
	"github.com/openvbs/arbiter/internal/repository"
)

// SubmissionService accepts submissions against the current task of a run
// and handles verdict overrides. The engine decides admission and judging
// synchronously; the durable copy is written behind the response.
type SubmissionService interface {
	Post(ctx context.Context, ac engine.ActionContext, runID uuid.UUID, payload dto.SubmissionRequest) (dto.SubmissionResponse, error)
	OverrideVerdict(ctx context.Context, ac engine.ActionContext, runID, taskID, submissionID uuid.UUID, payload dto.VerdictOverrideRequest) error
	ListByTask(ctx context.Context, ac engine.ActionContext, runID, taskID uuid.UUID) ([]dto.SubmissionResponse, error)
}

type submissionService struct {
	executor    *engine.Executor
	submissions repository.SubmissionRepository
	audit       AuditService
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService instance.
func NewSubmissionService(executor *engine.Executor, subRepo repository.SubmissionRepository, audit AuditService, validate *validator.Validate, logger zerolog.Logger) SubmissionService {
	return &submissionService{
		executor:    executor,
		submissions: subRepo,
		audit:       audit,
		validator:   validate,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		tracer:      otel.Tracer("github.com/openvbs/arbiter/internal/service/submission"),
		now:         time.Now,
	}
}

func (s *submissionService) Post(ctx context.Context, ac engine.ActionContext, runID uuid.UUID, payload dto.SubmissionRequest) (dto.SubmissionResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.SubmissionResponse{}, err
	}

	manager, ok := s.executor.ByID(runID)
	if !ok {
		return dto.SubmissionResponse{}, ErrRunNotFound
	}

	spanCtx, span := s.tracer.Start(ctx, "submissions.post", trace.WithAttributes(
		attribute.String("run.id", runID.String()),
		attribute.String("submission.member_id", ac.UserID.String()),
	))
	defer span.End()

	submission := engine.Submission{
		ID:       uuid.New(),
		MemberID: ac.UserID,
		Answers:  payload.ToEngine(),
	}

	verdict, err := manager.PostSubmission(ac, submission)
	if err != nil {
		span.RecordError(err)
		var rejected *engine.SubmissionRejectedError
		var state *engine.IllegalStateError
		switch {
		case errors.As(err, &rejected):
			observability.SubmissionsRejectedTotal().WithLabelValues("filtered").Inc()
		case errors.As(err, &state):
			observability.SubmissionsRejectedTotal().WithLabelValues("illegal_state").Inc()
		}
		return dto.SubmissionResponse{}, err
	}

	accepted, findErr := s.findAccepted(ac, manager, submission.ID)
	if findErr != nil {
		// The engine accepted it; fall back to what we sent.
		accepted = submission
		accepted.At = s.now()
	}

	s.persist(spanCtx, runID, manager, ac, accepted)
	s.audit.Record(spanCtx, runID, ac.UserID, AuditSubmissionPosted, map[string]any{
		"submission_id": submission.ID.String(),
		"verdict":       string(verdict),
	})
	observability.SubmissionsTotal().WithLabelValues(string(verdict)).Inc()
	s.logger.Info().Str("run_id", runID.String()).Str("submission_id", submission.ID.String()).Str("verdict", string(verdict)).Msg("submission accepted")

	return dto.NewSubmissionResponse(accepted), nil
}

// findAccepted reads back the engine's copy, which carries the assigned
// timestamp and per-answer verdicts.
func (s *submissionService) findAccepted(ac engine.ActionContext, manager engine.RunManager, submissionID uuid.UUID) (engine.Submission, error) {
	snapshot, err := manager.CurrentTask(ac)
	if err != nil {
		return engine.Submission{}, err
	}
	subs, err := manager.Submissions(engine.ActionContext{UserID: ac.UserID, TeamID: ac.TeamID, IsAdmin: true}, snapshot.ID)
	if err != nil {
		return engine.Submission{}, err
	}
	for _, sub := range subs {
		if sub.ID == submissionID {
			return sub, nil
		}
	}
	return engine.Submission{}, errors.New("submission not in task history")
}

// persist writes the durable copy. Best effort: the submission is already
// part of the live run, a storage failure must not reject it retroactively.
func (s *submissionService) persist(ctx context.Context, runID uuid.UUID, manager engine.RunManager, ac engine.ActionContext, sub engine.Submission) {
	snapshot, err := manager.CurrentTask(ac)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to resolve task for submission persistence")
		return
	}
	answers, err := json.Marshal(sub.Answers)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to encode submission answers")
		return
	}
	row := models.Submission{
		ID:           sub.ID,
		EvaluationID: runID,
		TaskRunID:    snapshot.ID,
		TeamID:       sub.TeamID,
		MemberID:     sub.MemberID,
		SubmittedAt:  sub.At,
		Answers:      datatypes.JSON(answers),
		Verdict:      string(sub.Verdict()),
	}
	if err := s.submissions.Create(ctx, &row); err != nil {
		s.logger.Error().Err(err).Str("submission_id", sub.ID.String()).Msg("failed to persist submission")
	}
}

func (s *submissionService) OverrideVerdict(ctx context.Context, ac engine.ActionContext, runID, taskID, submissionID uuid.UUID, payload dto.VerdictOverrideRequest) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	manager, ok := s.executor.ByID(runID)
	if !ok {
		return ErrRunNotFound
	}

	verdict := engine.Verdict(payload.Verdict)
	if err := manager.OverrideVerdict(ac, taskID, submissionID, verdict); err != nil {
		return err
	}

	if err := s.submissions.UpdateVerdict(ctx, submissionID, payload.Verdict); err != nil {
		s.logger.Error().Err(err).Str("submission_id", submissionID.String()).Msg("failed to persist verdict override")
	}
	s.audit.Record(ctx, runID, ac.UserID, AuditVerdictOverridden, map[string]any{
		"task_id":       taskID.String(),
		"submission_id": submissionID.String(),
		"verdict":       payload.Verdict,
	})
	s.logger.Info().Str("run_id", runID.String()).Str("submission_id", submissionID.String()).Str("verdict", payload.Verdict).Msg("verdict overridden")
	return nil
}

func (s *submissionService) ListByTask(_ context.Context, ac engine.ActionContext, runID, taskID uuid.UUID) ([]dto.SubmissionResponse, error) {
	manager, ok := s.executor.ByID(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	subs, err := manager.Submissions(ac, taskID)
	if err != nil {
		return nil, err
	}
	responses := make([]dto.SubmissionResponse, len(subs))
	for i, sub := range subs {
		responses[i] = dto.NewSubmissionResponse(sub)
	}
	return responses, nil
}
