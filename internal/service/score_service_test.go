package service

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/openvbs/arbiter/internal/engine"
	"github.com/openvbs/arbiter/internal/scoring"
)

func TestScoreServiceOverviewCaching(t *testing.T) {
	server, err := miniredis.Run()
	require.NoError(t, err)
	defer server.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: server.Addr()})
	defer redisClient.Close()

	boards := NewScoreboardRegistry()
	executor := engine.NewExecutor(0, zerolog.Nop())
	svc := NewScoreService(executor, boards, redisClient, time.Minute, zerolog.Nop())

	runID := uuid.New()
	board := boards.Create(runID)
	teamID := uuid.New()
	board.Record("kis-1", map[uuid.UUID]float64{teamID: 80}, time.Now())

	first, err := svc.Overview(context.Background(), runID, scoring.BoardSum)
	require.NoError(t, err)
	require.Len(t, first.Scores, 1)
	require.Equal(t, 80.0, first.Scores[0].Score)

	// the cached overview shields the scoreboard until the TTL expires
	board.Record("kis-2", map[uuid.UUID]float64{teamID: 20}, time.Now())
	cached, err := svc.Overview(context.Background(), runID, scoring.BoardSum)
	require.NoError(t, err)
	require.Equal(t, 80.0, cached.Scores[0].Score)

	server.FastForward(2 * time.Minute)
	fresh, err := svc.Overview(context.Background(), runID, scoring.BoardSum)
	require.NoError(t, err)
	require.Equal(t, 100.0, fresh.Scores[0].Score)
}

func TestScoreServiceWithoutRedis(t *testing.T) {
	boards := NewScoreboardRegistry()
	executor := engine.NewExecutor(0, zerolog.Nop())
	svc := NewScoreService(executor, boards, nil, time.Minute, zerolog.Nop())

	runID := uuid.New()
	board := boards.Create(runID)
	teamID := uuid.New()
	board.Record("kis-1", map[uuid.UUID]float64{teamID: 80}, time.Now())
	board.Record("kis-2", map[uuid.UUID]float64{teamID: 20}, time.Now())

	overview, err := svc.Overview(context.Background(), runID, scoring.BoardSum)
	require.NoError(t, err)
	require.Equal(t, 100.0, overview.Scores[0].Score)
}

func TestScoreServiceSeries(t *testing.T) {
	boards := NewScoreboardRegistry()
	executor := engine.NewExecutor(0, zerolog.Nop())
	svc := NewScoreService(executor, boards, nil, 0, zerolog.Nop())

	runID := uuid.New()
	board := boards.Create(runID)
	teamID := uuid.New()
	board.Record("kis-1", map[uuid.UUID]float64{teamID: 40}, time.Now())
	board.Record("kis-2", map[uuid.UUID]float64{teamID: 30}, time.Now())

	series, err := svc.Series(context.Background(), runID, scoring.BoardSum)
	require.NoError(t, err)
	require.Len(t, series.Samples, 2)
	require.Equal(t, 40.0, series.Samples[0].Score)
	require.Equal(t, 70.0, series.Samples[1].Score)
}

func TestScoreServiceUnknownBoard(t *testing.T) {
	boards := NewScoreboardRegistry()
	executor := engine.NewExecutor(0, zerolog.Nop())
	svc := NewScoreService(executor, boards, nil, 0, zerolog.Nop())

	runID := uuid.New()
	boards.Create(runID)

	_, err := svc.Overview(context.Background(), runID, "median")
	require.ErrorIs(t, err, ErrUnknownBoard)
}

func TestScoreServiceUnknownRun(t *testing.T) {
	boards := NewScoreboardRegistry()
	executor := engine.NewExecutor(0, zerolog.Nop())
	svc := NewScoreService(executor, boards, nil, 0, zerolog.Nop())

	_, err := svc.Overview(context.Background(), uuid.New(), scoring.BoardSum)
	require.ErrorIs(t, err, ErrRunNotFound)

	_, err = svc.Boards(uuid.New())
	require.ErrorIs(t, err, ErrRunNotFound)
}

func TestScoreServiceResolvesTeamNames(t *testing.T) {
	f := newServiceFixture(t)
	runID := startedRun(t, f)

	svc := NewScoreService(f.executor, f.boards, nil, 0, zerolog.Nop())

	_, err := f.submissions.Post(context.Background(), member(memberOne), runID, itemSubmission("v001"))
	require.NoError(t, err)
	require.NoError(t, f.runs.AbortTask(context.Background(), admin(), runID))

	overview, err := svc.Overview(context.Background(), runID, scoring.BoardSum)
	require.NoError(t, err)
	require.Len(t, overview.Scores, 2)
	require.Equal(t, "Team Alpha", overview.Scores[0].TeamName)
	require.True(t, overview.Scores[0].Score > overview.Scores[1].Score)
}