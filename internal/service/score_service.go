package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/openvbs/arbiter/internal/dto"
	"github.com/openvbs/arbiter/internal/engine"
	"github.com/openvbs/arbiter/internal/observability"
	"github.com/openvbs/arbiter/internal/scoring"
)

// ErrUnknownBoard indicates the requested scoreboard name does not exist.
var ErrUnknownBoard = errors.New("unknown scoreboard")

// ScoreService reads scoreboard standings and histories. Overviews are
// cached in Redis with a short TTL; the scoreboard itself stays the source
// of truth and the cache is purely a read shield for spectator traffic.
type ScoreService interface {
	Overview(ctx context.Context, runID uuid.UUID, board string) (dto.ScoreOverviewResponse, error)
	Series(ctx context.Context, runID uuid.UUID, board string) (dto.ScoreSeriesResponse, error)
	Boards(runID uuid.UUID) ([]string, error)
}

type scoreService struct {
	executor *engine.Executor
	boards   *ScoreboardRegistry
	redis    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
}

// NewScoreService constructs a ScoreService instance. The Redis client may
// be nil, in which case every read hits the scoreboard directly.
func NewScoreService(executor *engine.Executor, boards *ScoreboardRegistry, redisClient *redis.Client, cacheTTL time.Duration, logger zerolog.Logger) ScoreService {
	return &scoreService{
		executor: executor,
		boards:   boards,
		redis:    redisClient,
		cacheTTL: cacheTTL,
		logger:   logger.With().Str("component", "score_service").Logger(),
	}
}

func (s *scoreService) Overview(ctx context.Context, runID uuid.UUID, board string) (dto.ScoreOverviewResponse, error) {
	scoreboard, err := s.scoreboard(runID, board)
	if err != nil {
		return dto.ScoreOverviewResponse{}, err
	}

	cacheKey := fmt.Sprintf("arbiter:scores:%s:%s", runID, board)
	if cached, ok := s.fromCache(ctx, cacheKey); ok {
		return cached, nil
	}

	response := dto.NewScoreOverviewResponse(board, scoreboard.Overview(board), s.teamNames(runID))
	s.toCache(ctx, cacheKey, response)
	return response, nil
}

func (s *scoreService) Series(_ context.Context, runID uuid.UUID, board string) (dto.ScoreSeriesResponse, error) {
	scoreboard, err := s.scoreboard(runID, board)
	if err != nil {
		return dto.ScoreSeriesResponse{}, err
	}
	return dto.NewScoreSeriesResponse(board, scoreboard.Series(board)), nil
}

func (s *scoreService) Boards(runID uuid.UUID) ([]string, error) {
	scoreboard, ok := s.boards.Get(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	return scoreboard.Boards(), nil
}

func (s *scoreService) scoreboard(runID uuid.UUID, board string) (*scoring.Scoreboard, error) {
	scoreboard, ok := s.boards.Get(runID)
	if !ok {
		return nil, ErrRunNotFound
	}
	for _, known := range scoreboard.Boards() {
		if known == board {
			return scoreboard, nil
		}
	}
	return nil, ErrUnknownBoard
}

func (s *scoreService) teamNames(runID uuid.UUID) map[string]string {
	manager, ok := s.executor.ByID(runID)
	if !ok {
		return nil
	}
	teams := manager.Teams()
	names := make(map[string]string, len(teams))
	for _, team := range teams {
		names[team.ID.String()] = team.Name
	}
	return names
}

func (s *scoreService) fromCache(ctx context.Context, key string) (dto.ScoreOverviewResponse, bool) {
	if s.redis == nil {
		return dto.ScoreOverviewResponse{}, false
	}
	payload, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("scoreboard cache read failed")
		}
		observability.ScoreboardCacheEvents().WithLabelValues("miss").Inc()
		return dto.ScoreOverviewResponse{}, false
	}
	var response dto.ScoreOverviewResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		observability.ScoreboardCacheEvents().WithLabelValues("miss").Inc()
		return dto.ScoreOverviewResponse{}, false
	}
	observability.ScoreboardCacheEvents().WithLabelValues("hit").Inc()
	return response, true
}

func (s *scoreService) toCache(ctx context.Context, key string, response dto.ScoreOverviewResponse) {
	if s.redis == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(response)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("scoreboard cache write failed")
	}
}
