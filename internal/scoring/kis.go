// Package scoring implements the task scoring strategies and the scoreboard
// aggregation for evaluation runs. Scorers are pure: the same task context
// and submission history always produce bit-identical scores.
package scoring

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/openvbs/arbiter/internal/engine"
)

// KISScorer scores known-item-search tasks: exactly one correct target, the
// reward decaying linearly over the task window, wrong submissions before
// the first correct one charged as a penalty.
type KISScorer struct {
	MaxPointsPerTask          float64
	MaxPointsAtTaskEnd        float64
	PenaltyPerWrongSubmission float64
}

// NewKISScorer builds the scorer, clamping the task-end reward to the task
// maximum.
func NewKISScorer(maxPointsPerTask, maxPointsAtTaskEnd, penaltyPerWrongSubmission float64) KISScorer {
	if maxPointsAtTaskEnd > maxPointsPerTask {
		maxPointsAtTaskEnd = maxPointsPerTask
	}
	return KISScorer{
		MaxPointsPerTask:          maxPointsPerTask,
		MaxPointsAtTaskEnd:        maxPointsAtTaskEnd,
		PenaltyPerWrongSubmission: penaltyPerWrongSubmission,
	}
}

// Score computes the per-team score for the full submission history of one
// task. Teams without a correct submission inside the task window score 0.
func (s KISScorer) Score(ctx engine.TaskContext, submissions []engine.Submission) (map[uuid.UUID]float64, error) {
	scores := make(map[uuid.UUID]float64, len(ctx.TeamIDs))
	known := make(map[uuid.UUID]bool, len(ctx.TeamIDs))
	for _, teamID := range ctx.TeamIDs {
		scores[teamID] = 0
		known[teamID] = true
	}

	sorted := sortedByTime(submissions)
	taskEnd := ctx.Ends()

	type tally struct {
		wrong int
		done  bool
	}
	state := map[uuid.UUID]*tally{}

	for _, sub := range sorted {
		if !known[sub.TeamID] {
			return nil, fmt.Errorf("submission %s from team %s outside task context", sub.ID, sub.TeamID)
		}
		entry := state[sub.TeamID]
		if entry == nil {
			entry = &tally{}
			state[sub.TeamID] = entry
		}
		if entry.done {
			continue
		}
		switch sub.Verdict() {
		case engine.VerdictWrong:
			entry.wrong++
		case engine.VerdictCorrect:
			if sub.At.Before(ctx.Started) || sub.At.After(taskEnd) {
				continue
			}
			t := elapsedFraction(ctx, sub)
			base := s.MaxPointsAtTaskEnd + (s.MaxPointsPerTask-s.MaxPointsAtTaskEnd)*(1-t)
			score := base - s.PenaltyPerWrongSubmission*float64(entry.wrong)
			if score < 0 {
				score = 0
			}
			scores[sub.TeamID] = score
			entry.done = true
		}
	}

	return scores, nil
}

func elapsedFraction(ctx engine.TaskContext, sub engine.Submission) float64 {
	if ctx.Duration <= 0 {
		return 1
	}
	t := float64(sub.At.Sub(ctx.Started)) / float64(ctx.Duration)
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}

// sortedByTime returns a copy ordered by submission timestamp. The stable
// sort keeps acceptance order for equal timestamps.
func sortedByTime(submissions []engine.Submission) []engine.Submission {
	sorted := make([]engine.Submission, len(submissions))
	copy(sorted, submissions)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].At.Before(sorted[j].At)
	})
	return sorted
}
