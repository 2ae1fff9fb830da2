package dto

import (
	"time"

	"github.com/openvbs/arbiter/internal/scoring"
)

// TeamScoreResponse is one row of a scoreboard.
type TeamScoreResponse struct {
	TeamID   string  `json:"team_id"`
	TeamName string  `json:"team_name,omitempty"`
	Score    float64 `json:"score"`
}

// ScoreOverviewResponse is the current standing on one board.
type ScoreOverviewResponse struct {
	Board  string              `json:"board"`
	Scores []TeamScoreResponse `json:"scores"`
}

// NewScoreOverviewResponse builds the view, resolving team names where known.
func NewScoreOverviewResponse(board string, scores []scoring.TeamScore, names map[string]string) ScoreOverviewResponse {
	rows := make([]TeamScoreResponse, len(scores))
	for i, s := range scores {
		rows[i] = TeamScoreResponse{
			TeamID:   s.TeamID.String(),
			TeamName: names[s.TeamID.String()],
			Score:    s.Score,
		}
	}
	return ScoreOverviewResponse{Board: board, Scores: rows}
}

// SampleResponse is one point of a score time series.
type SampleResponse struct {
	TeamID string    `json:"team_id"`
	Score  float64   `json:"score"`
	At     time.Time `json:"at"`
}

// ScoreSeriesResponse is the append-only history of one board.
type ScoreSeriesResponse struct {
	Board   string           `json:"board"`
	Samples []SampleResponse `json:"samples"`
}

// NewScoreSeriesResponse builds the view from recorded samples.
func NewScoreSeriesResponse(board string, samples []scoring.Sample) ScoreSeriesResponse {
	views := make([]SampleResponse, len(samples))
	for i, sample := range samples {
		views[i] = SampleResponse{TeamID: sample.TeamID.String(), Score: sample.Score, At: sample.At}
	}
	return ScoreSeriesResponse{Board: board, Samples: views}
}
