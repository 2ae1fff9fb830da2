package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
	"github.com/openvbs/arbiter/internal/scoring"
)

// ErrRunNotFound indicates no registered run matches the given id.
var ErrRunNotFound = errors.New("run not found")

// RunService orchestrates run lifecycle operations: creation from a template
// document, state transitions, task navigation and timing. The live state
// machine lives in the engine; this layer adds validation, persistence,
// auditing and metrics around it.
type RunService interface {
	Create(ctx context.Context, ac engine.ActionContext, payload dto.CreateRunRequest) (dto.RunResponse, error)
	Get(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) (dto.RunResponse, error)
	List(ctx context.Context, ac engine.ActionContext) []dto.RunResponse
	Start(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) error
	End(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) error
	Next(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) (bool, error)
	Previous(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) (bool, error)
	GoTo(ctx context.Context, ac engine.ActionContext, runID uuid.UUID, index int) error
	StartTask(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) error
	AbortTask(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) error
	AdjustDuration(ctx context.Context, ac engine.ActionContext, runID uuid.UUID, delta time.Duration) (time.Duration, error)
	CurrentTask(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) (dto.TaskResponse, error)
	Tasks(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) ([]dto.TaskResponse, error)
	OverrideReady(ctx context.Context, ac engine.ActionContext, runID uuid.UUID, viewerID string) error
	Viewers(runID uuid.UUID) (map[string]bool, error)
}

type runService struct {
	executor    *engine.Executor
	evaluations repository.EvaluationRepository
	audit       AuditService
	boards      *ScoreboardRegistry
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

// NewRunService constructs a RunService instance.
func NewRunService(executor *engine.Executor, evalRepo repository.EvaluationRepository, audit AuditService, boards *ScoreboardRegistry, validate *validator.Validate, logger zerolog.Logger) RunService {
	return &runService{
		executor:    executor,
		evaluations: evalRepo,
		audit:       audit,
		boards:      boards,
		validator:   validate,
		logger:      logger.With().Str("component", "run_service").Logger(),
		tracer:      otel.Tracer("github.com/openvbs/arbiter/internal/service/run"),
		now:         time.Now,
	}
}

func (s *runService) Create(ctx context.Context, ac engine.ActionContext, payload dto.CreateRunRequest) (dto.RunResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.RunResponse{}, err
	}
	if !ac.IsAdmin {
		return dto.RunResponse{}, &engine.AccessDeniedError{Op: "create run"}
	}

	spanCtx, span := s.tracer.Start(ctx, "runs.create", trace.WithAttributes(
		attribute.String("run.template_id", payload.TemplateID.String()),
		attribute.Bool("run.synchronous", payload.Synchronous),
	))
	defer span.End()

	teams := make([]engine.Team, len(payload.Teams))
	for i, team := range payload.Teams {
		teams[i] = engine.Team{ID: uuid.New(), Name: team.Name, Members: team.Members}
	}

	templates := make([]engine.TaskTemplate, len(payload.Tasks))
	for i, task := range payload.Tasks {
		scorer, err := buildScorer(task)
		if err != nil {
			return dto.RunResponse{}, err
		}
		templates[i] = engine.TaskTemplate{
			ID:         uuid.New(),
			Name:       task.Name,
			Collection: task.Collection,
			Duration:   time.Duration(task.DurationSeconds) * time.Second,
			Scorer:     scorer,
			Filter:     buildFilter(task),
			Validator:  newTargetValidator(task.Targets),
		}
	}

	properties := engine.RunProperties{
		ParticipantsCanView:    payload.Properties.ParticipantsCanView,
		ShuffleTasks:           payload.Properties.ShuffleTasks,
		SubmissionPreviewLimit: payload.Properties.SubmissionPreviewLimit,
		AllowRepeatedTasks:     payload.Properties.AllowRepeatedTasks,
	}

	run := engine.NewRun(payload.TemplateID, payload.Name, properties, teams, templates)
	board := s.boards.Create(run.ID)

	var manager engine.RunManager
	if payload.Synchronous {
		manager = engine.NewSynchronousManager(run, []engine.ScoreSink{board}, s.logger)
	} else {
		manager = engine.NewAsynchronousManager(run, []engine.ScoreSink{board}, s.logger)
	}

	if err := s.executor.Register(manager); err != nil {
		span.RecordError(err)
		return dto.RunResponse{}, err
	}

	if err := s.persistEvaluation(spanCtx, run, payload.Synchronous); err != nil {
		span.RecordError(err)
		s.executor.Unregister(run.ID)
		return dto.RunResponse{}, err
	}

	s.audit.Record(spanCtx, run.ID, ac.UserID, AuditRunCreated, map[string]any{
		"name":        payload.Name,
		"synchronous": payload.Synchronous,
		"teams":       len(teams),
		"tasks":       len(templates),
	})
	observability.ActiveRuns().Inc()
	s.logger.Info().Str("run_id", run.ID.String()).Str("run", payload.Name).Bool("synchronous", payload.Synchronous).Msg("run created")

	return dto.NewRunResponse(manager, len(templates)), nil
}

func (s *runService) persistEvaluation(ctx context.Context, run *engine.Run, synchronous bool) error {
	teams := make([]models.EvaluationTeam, len(run.Teams))
	for i, team := range run.Teams {
		members, err := json.Marshal(team.Members)
		if err != nil {
			return fmt.Errorf("failed to encode team members: %w", err)
		}
		teams[i] = models.EvaluationTeam{
			ID:           team.ID,
			EvaluationID: run.ID,
			Name:         team.Name,
			Members:      datatypes.JSON(members),
		}
	}
	evaluation := models.Evaluation{
		ID:          run.ID,
		TemplateID:  run.TemplateID,
		Name:        run.Name,
		Synchronous: synchronous,
		Status:      models.EvaluationStatusCreated,
		Properties: datatypes.JSONMap{
			"participants_can_view":    run.Properties.ParticipantsCanView,
			"shuffle_tasks":            run.Properties.ShuffleTasks,
			"submission_preview_limit": run.Properties.SubmissionPreviewLimit,
			"allow_repeated_tasks":     run.Properties.AllowRepeatedTasks,
		},
		Teams: teams,
	}
	return s.evaluations.Create(ctx, &evaluation)
}

func buildScorer(task dto.TaskTemplateRequest) (engine.TaskScorer, error) {
	switch task.ScorerType {
	case "KIS":
		return scoring.NewKISScorer(task.MaxPointsPerTask, task.MaxPointsAtTaskEnd, task.PenaltyPerWrong), nil
	case "AVS":
		return scoring.NewAVSScorer(), nil
	default:
		return nil, fmt.Errorf("unknown scorer type %q", task.ScorerType)
	}
}

func buildFilter(task dto.TaskTemplateRequest) engine.SubmissionFilter {
	filters := []engine.SubmissionFilter{
		engine.DuplicateAnswerFilter{Cooldown: time.Duration(task.DuplicateCooldownSeconds) * time.Second},
	}
	if task.RestrictToCollection {
		filters = append(filters, engine.CollectionFilter{Collection: task.Collection})
	}
	return engine.Combine(filters...)
}

func (s *runService) Get(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) (dto.RunResponse, error) {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return dto.RunResponse{}, err
	}
	return dto.NewRunResponse(manager, len(manager.Tasks(ac))), nil
}

func (s *runService) List(_ context.Context, ac engine.ActionContext) []dto.RunResponse {
	var managers []engine.RunManager
	if ac.IsAdmin {
		managers = s.executor.All()
	} else {
		managers = s.executor.ByUser(ac.UserID)
	}
	responses := make([]dto.RunResponse, len(managers))
	for i, manager := range managers {
		responses[i] = dto.NewRunResponse(manager, len(manager.Tasks(ac)))
	}
	return responses
}

func (s *runService) Start(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) error {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return err
	}
	if err := manager.Start(ac); err != nil {
		return err
	}
	s.transition(ctx, manager, ac, models.EvaluationStatusActive, AuditRunStarted)
	return nil
}

func (s *runService) End(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) error {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return err
	}
	if err := manager.End(ac); err != nil {
		return err
	}
	s.transition(ctx, manager, ac, models.EvaluationStatusTerminated, AuditRunEnded)
	observability.ActiveRuns().Dec()
	return nil
}

// transition persists the new run status write-behind and records the audit
// trail. Persistence failures are logged, not surfaced: the in-memory state
// machine has already moved.
func (s *runService) transition(ctx context.Context, manager engine.RunManager, ac engine.ActionContext, status, action string) {
	if err := s.evaluations.UpdateStatus(ctx, manager.ID(), status); err != nil {
		s.logger.Error().Err(err).Str("run_id", manager.ID().String()).Str("status", status).Msg("failed to persist run status")
	}
	s.audit.Record(ctx, manager.ID(), ac.UserID, action, nil)
	observability.RunTransitionsTotal().WithLabelValues(status).Inc()
	s.logger.Info().Str("run_id", manager.ID().String()).Str("status", status).Msg("run transitioned")
}

func (s *runService) Next(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) (bool, error) {
	return s.navigate(ctx, ac, runID, "next")
}

func (s *runService) Previous(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) (bool, error) {
	return s.navigate(ctx, ac, runID, "previous")
}

func (s *runService) navigate(ctx context.Context, ac engine.ActionContext, runID uuid.UUID, direction string) (bool, error) {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return false, err
	}
	var moved bool
	if direction == "next" {
		moved, err = manager.Next(ac)
	} else {
		moved, err = manager.Previous(ac)
	}
	if err != nil {
		return false, err
	}
	if moved {
		s.audit.Record(ctx, runID, ac.UserID, AuditTaskNavigated, map[string]any{"direction": direction})
	}
	return moved, nil
}

func (s *runService) GoTo(ctx context.Context, ac engine.ActionContext, runID uuid.UUID, index int) error {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return err
	}
	if err := manager.GoTo(ac, index); err != nil {
		return err
	}
	s.audit.Record(ctx, runID, ac.UserID, AuditTaskNavigated, map[string]any{"index": index})
	return nil
}

func (s *runService) StartTask(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) error {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return err
	}
	if err := manager.StartTask(ac); err != nil {
		return err
	}
	s.persistTaskRun(ctx, manager, ac)
	s.audit.Record(ctx, runID, ac.UserID, AuditTaskStarted, nil)
	return nil
}

func (s *runService) AbortTask(ctx context.Context, ac engine.ActionContext, runID uuid.UUID) error {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return err
	}
	if err := manager.AbortTask(ac); err != nil {
		return err
	}
	s.persistTaskRun(ctx, manager, ac)
	s.audit.Record(ctx, runID, ac.UserID, AuditTaskAborted, nil)
	return nil
}

// persistTaskRun snapshots the currently selected task to storage. Best
// effort, same contract as transition.
func (s *runService) persistTaskRun(ctx context.Context, manager engine.RunManager, ac engine.ActionContext) {
	snapshot, err := manager.CurrentTask(ac)
	if err != nil {
		return
	}
	taskRun := models.TaskRun{
		ID:           snapshot.ID,
		EvaluationID: manager.ID(),
		Name:         snapshot.Name,
		Position:     snapshot.Position,
		Status:       string(snapshot.Status),
	}
	if snapshot.TeamID != uuid.Nil {
		teamID := snapshot.TeamID
		taskRun.TeamID = &teamID
	}
	if !snapshot.Started.IsZero() {
		started := snapshot.Started
		taskRun.StartedAt = &started
	}
	if !snapshot.Ended.IsZero() {
		ended := snapshot.Ended
		taskRun.EndedAt = &ended
	}
	if err := s.evaluations.SaveTaskRun(ctx, &taskRun); err != nil {
		s.logger.Error().Err(err).Str("task_id", snapshot.ID.String()).Msg("failed to persist task run")
	}
}

func (s *runService) AdjustDuration(ctx context.Context, ac engine.ActionContext, runID uuid.UUID, delta time.Duration) (time.Duration, error) {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return 0, err
	}
	remaining, err := manager.AdjustDuration(ac, delta)
	if err != nil {
		return 0, err
	}
	s.audit.Record(ctx, runID, ac.UserID, AuditDurationAdjusted, map[string]any{
		"delta_seconds":     delta.Seconds(),
		"remaining_seconds": remaining.Seconds(),
	})
	return remaining, nil
}

func (s *runService) CurrentTask(_ context.Context, ac engine.ActionContext, runID uuid.UUID) (dto.TaskResponse, error) {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	snapshot, err := manager.CurrentTask(ac)
	if err != nil {
		return dto.TaskResponse{}, err
	}
	return dto.NewTaskResponse(snapshot), nil
}

func (s *runService) Tasks(_ context.Context, ac engine.ActionContext, runID uuid.UUID) ([]dto.TaskResponse, error) {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return nil, err
	}
	snapshots := manager.Tasks(ac)
	responses := make([]dto.TaskResponse, len(snapshots))
	for i, snapshot := range snapshots {
		responses[i] = dto.NewTaskResponse(snapshot)
	}
	return responses, nil
}

func (s *runService) OverrideReady(_ context.Context, ac engine.ActionContext, runID uuid.UUID, viewerID string) error {
	manager, err := s.resolve(ac, runID)
	if err != nil {
		return err
	}
	return manager.OverrideReadyState(ac, viewerID)
}

func (s *runService) Viewers(runID uuid.UUID) (map[string]bool, error) {
	manager, ok := s.executor.ByID(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	return manager.Viewers(), nil
}

// resolve finds a registered manager and checks the caller may see it.
// Admins see every run; participants only runs their team is part of.
func (s *runService) resolve(ac engine.ActionContext, runID uuid.UUID) (engine.RunManager, error) {
	manager, ok := s.executor.ByID(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	if !ac.IsAdmin && !manager.HasParticipant(ac.UserID) {
		return nil, ErrRunNotFound
	}
	return manager, nil
}
