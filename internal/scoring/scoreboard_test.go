package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestScoreboardSumAndOrdering(t *testing.T) {
	teamA, teamB := uuid.New(), uuid.New()
	board := NewScoreboard()
	now := time.Now()

	board.Record("task-1", map[uuid.UUID]float64{teamA: 40, teamB: 80}, now)
	board.Record("task-2", map[uuid.UUID]float64{teamA: 100, teamB: 10}, now.Add(time.Minute))

	overview := board.Overview(BoardSum)
	require.Len(t, overview, 2)
	require.Equal(t, teamA, overview[0].TeamID)
	require.Equal(t, 140.0, overview[0].Score)
	require.Equal(t, teamB, overview[1].TeamID)
	require.Equal(t, 90.0, overview[1].Score)
}

func TestScoreboardMean(t *testing.T) {
	team := uuid.New()
	board := NewScoreboard()
	now := time.Now()

	board.Record("task-1", map[uuid.UUID]float64{team: 50}, now)
	board.Record("task-2", map[uuid.UUID]float64{team: 100}, now)

	overview := board.Overview(BoardMean)
	require.Len(t, overview, 1)
	require.Equal(t, 75.0, overview[0].Score)
}

func TestScoreboardMaxNormalized(t *testing.T) {
	teamA, teamB := uuid.New(), uuid.New()
	board := NewScoreboard()
	now := time.Now()

	// team B tops task-1, team A tops task-2
	board.Record("task-1", map[uuid.UUID]float64{teamA: 25, teamB: 50}, now)
	board.Record("task-2", map[uuid.UUID]float64{teamA: 80, teamB: 40}, now)

	overview := board.Overview(BoardNormalized)
	require.Len(t, overview, 2)
	byTeam := map[uuid.UUID]float64{}
	for _, row := range overview {
		byTeam[row.TeamID] = row.Score
	}
	require.Equal(t, 150.0, byTeam[teamA])
	require.Equal(t, 150.0, byTeam[teamB])
}

func TestScoreboardRecordReplacesTaskScores(t *testing.T) {
	team := uuid.New()
	board := NewScoreboard()
	now := time.Now()

	board.Record("task-1", map[uuid.UUID]float64{team: 10}, now)
	board.Record("task-1", map[uuid.UUID]float64{team: 60}, now.Add(time.Second))

	overview := board.Overview(BoardSum)
	require.Len(t, overview, 1)
	require.Equal(t, 60.0, overview[0].Score)
}

func TestScoreboardSeriesFilteredByBoard(t *testing.T) {
	team := uuid.New()
	board := NewScoreboard()
	now := time.Now()

	board.Record("task-1", map[uuid.UUID]float64{team: 10}, now)
	board.Record("task-1", map[uuid.UUID]float64{team: 20}, now.Add(time.Second))

	sum := board.Series(BoardSum)
	require.Len(t, sum, 2)
	require.Equal(t, 10.0, sum[0].Score)
	require.Equal(t, 20.0, sum[1].Score)
	for _, sample := range sum {
		require.Equal(t, BoardSum, sample.Board)
	}
	require.Len(t, board.Series(BoardMean), 2)
	require.Empty(t, board.Series("unknown"))
}
