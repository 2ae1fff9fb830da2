package scoring

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Board names exposed by every scoreboard.
const (
	BoardSum        = "sum"
	BoardMean       = "mean"
	BoardNormalized = "max-normalized"
)

// TeamScore is one row of a scoreboard overview.
type TeamScore struct {
	TeamID uuid.UUID `json:"team_id"`
	Score  float64   `json:"score"`
}

// Sample is one point of the append-only score time series.
type Sample struct {
	Board  string    `json:"board"`
	TeamID uuid.UUID `json:"team_id"`
	Score  float64   `json:"score"`
	At     time.Time `json:"at"`
}

// Scoreboard folds per-task scores into running aggregates per board and an
// append-only time series. It implements engine.ScoreSink; managers push
// recomputed scores into it whenever a task ends or a submission rescores.
type Scoreboard struct {
	mu          sync.RWMutex
	normalizeTo float64
	taskOrder   []string
	taskScores  map[string]map[uuid.UUID]float64
	series      []Sample
}

// NewScoreboard builds a scoreboard normalising task scores to 100 points.
func NewScoreboard() *Scoreboard {
	return &Scoreboard{
		normalizeTo: 100,
		taskScores:  map[string]map[uuid.UUID]float64{},
	}
}

// Boards lists the board names the scoreboard maintains.
func (b *Scoreboard) Boards() []string {
	return []string{BoardSum, BoardMean, BoardNormalized}
}

// Record replaces the latest scores for the named task and samples every
// board's new aggregate into the time series.
func (b *Scoreboard) Record(taskName string, scores map[uuid.UUID]float64, at time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, seen := b.taskScores[taskName]; !seen {
		b.taskOrder = append(b.taskOrder, taskName)
	}
	latest := make(map[uuid.UUID]float64, len(scores))
	for teamID, score := range scores {
		latest[teamID] = score
	}
	b.taskScores[taskName] = latest

	for _, board := range b.Boards() {
		for _, row := range b.aggregate(board) {
			b.series = append(b.series, Sample{Board: board, TeamID: row.TeamID, Score: row.Score, At: at})
		}
	}
}

// Overview returns the current per-team aggregate for the board, sorted
// descending for display, ties broken by team id for a stable order.
func (b *Scoreboard) Overview(board string) []TeamScore {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.aggregate(board)
}

// Series returns the time series filtered by board name.
func (b *Scoreboard) Series(board string) []Sample {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var out []Sample
	for _, sample := range b.series {
		if sample.Board == board {
			out = append(out, sample)
		}
	}
	return out
}

func (b *Scoreboard) aggregate(board string) []TeamScore {
	totals := map[uuid.UUID]float64{}
	for _, taskName := range b.taskOrder {
		scores := b.taskScores[taskName]
		var max float64
		for _, score := range scores {
			if score > max {
				max = score
			}
		}
		for teamID, score := range scores {
			switch board {
			case BoardNormalized:
				value := 0.0
				if max > 0 {
					value = score / max * b.normalizeTo
				}
				totals[teamID] += value
			default:
				totals[teamID] += score
			}
		}
	}
	if board == BoardMean && len(b.taskOrder) > 0 {
		for teamID := range totals {
			totals[teamID] /= float64(len(b.taskOrder))
		}
	}

	out := make([]TeamScore, 0, len(totals))
	for teamID, score := range totals {
		out = append(out, TeamScore{TeamID: teamID, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].TeamID.String() < out[j].TeamID.String()
	})
	return out
}
