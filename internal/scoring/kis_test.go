package scoring

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/openvbs/arbiter/internal/engine"
)

func kisContext(teams ...uuid.UUID) engine.TaskContext {
	return engine.TaskContext{
		TeamIDs:  teams,
		Started:  time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration: 100 * time.Second,
	}
}

func itemSubmission(team uuid.UUID, at time.Time, verdict engine.Verdict) engine.Submission {
	return engine.Submission{
		ID:     uuid.New(),
		TeamID: team,
		At:     at,
		Answers: []engine.Answer{
			{Collection: "v3c", ItemID: "item-1", Verdict: verdict},
		},
	}
}

func TestKISScorerBoundaryValues(t *testing.T) {
	team := uuid.New()
	ctx := kisContext(team)
	scorer := NewKISScorer(100, 50, 10)

	cases := []struct {
		name     string
		offset   time.Duration
		expected float64
	}{
		{name: "immediate correct scores full points", offset: 0, expected: 100},
		{name: "correct at task end scores end reward", offset: 100 * time.Second, expected: 50},
		{name: "correct halfway scores midpoint", offset: 50 * time.Second, expected: 75},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			history := []engine.Submission{itemSubmission(team, ctx.Started.Add(tc.offset), engine.VerdictCorrect)}
			scores, err := scorer.Score(ctx, history)
			require.NoError(t, err)
			require.Equal(t, tc.expected, scores[team])
		})
	}
}

func TestKISScorerWrongPenalty(t *testing.T) {
	team := uuid.New()
	ctx := kisContext(team)
	scorer := NewKISScorer(100, 50, 10)

	history := []engine.Submission{
		itemSubmission(team, ctx.Started.Add(10*time.Second), engine.VerdictWrong),
		itemSubmission(team, ctx.Started.Add(20*time.Second), engine.VerdictWrong),
		itemSubmission(team, ctx.Started.Add(30*time.Second), engine.VerdictWrong),
		itemSubmission(team, ctx.Started.Add(50*time.Second), engine.VerdictCorrect),
	}
	scores, err := scorer.Score(ctx, history)
	require.NoError(t, err)
	require.Equal(t, 45.0, scores[team])
}

func TestKISScorerPenaltyFloorsAtZero(t *testing.T) {
	team := uuid.New()
	ctx := kisContext(team)
	scorer := NewKISScorer(100, 50, 40)

	history := []engine.Submission{
		itemSubmission(team, ctx.Started.Add(10*time.Second), engine.VerdictWrong),
		itemSubmission(team, ctx.Started.Add(20*time.Second), engine.VerdictWrong),
		itemSubmission(team, ctx.Started.Add(30*time.Second), engine.VerdictWrong),
		itemSubmission(team, ctx.Started.Add(99*time.Second), engine.VerdictCorrect),
	}
	scores, err := scorer.Score(ctx, history)
	require.NoError(t, err)
	require.Equal(t, 0.0, scores[team])
}

func TestKISScorerNoSubmissions(t *testing.T) {
	teamA, teamB := uuid.New(), uuid.New()
	ctx := kisContext(teamA, teamB)
	scorer := NewKISScorer(100, 50, 10)

	scores, err := scorer.Score(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]float64{teamA: 0, teamB: 0}, scores)
}

func TestKISScorerIgnoresNonJudgedSubmissions(t *testing.T) {
	team := uuid.New()
	ctx := kisContext(team)
	scorer := NewKISScorer(100, 50, 10)

	history := []engine.Submission{
		itemSubmission(team, ctx.Started.Add(5*time.Second), engine.VerdictIndeterminate),
		itemSubmission(team, ctx.Started.Add(10*time.Second), engine.VerdictUndecidable),
		itemSubmission(team, ctx.Started.Add(50*time.Second), engine.VerdictCorrect),
	}
	scores, err := scorer.Score(ctx, history)
	require.NoError(t, err)
	require.Equal(t, 75.0, scores[team])
}

func TestKISScorerCorrectOutsideWindowScoresZero(t *testing.T) {
	team := uuid.New()
	ctx := kisContext(team)
	scorer := NewKISScorer(100, 50, 10)

	history := []engine.Submission{
		itemSubmission(team, ctx.Started.Add(101*time.Second), engine.VerdictCorrect),
	}
	scores, err := scorer.Score(ctx, history)
	require.NoError(t, err)
	require.Equal(t, 0.0, scores[team])
}

func TestKISScorerDeterministic(t *testing.T) {
	teamA, teamB := uuid.New(), uuid.New()
	ctx := kisContext(teamA, teamB)
	scorer := NewKISScorer(100, 50, 10)

	history := []engine.Submission{
		itemSubmission(teamA, ctx.Started.Add(13*time.Second), engine.VerdictWrong),
		itemSubmission(teamB, ctx.Started.Add(17*time.Second), engine.VerdictCorrect),
		itemSubmission(teamA, ctx.Started.Add(33*time.Second), engine.VerdictCorrect),
	}

	first, err := scorer.Score(ctx, history)
	require.NoError(t, err)
	second, err := scorer.Score(ctx, history)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestKISScorerRejectsForeignTeam(t *testing.T) {
	team := uuid.New()
	ctx := kisContext(team)
	scorer := NewKISScorer(100, 50, 10)

	history := []engine.Submission{itemSubmission(uuid.New(), ctx.Started, engine.VerdictCorrect)}
	_, err := scorer.Score(ctx, history)
	require.Error(t, err)
}
