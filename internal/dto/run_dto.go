package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/openvbs/arbiter/internal/engine"
)

// RunPropertiesRequest configures run-wide behaviour at creation time.
type RunPropertiesRequest struct {
	ParticipantsCanView    bool `json:"participants_can_view"`
	ShuffleTasks           bool `json:"shuffle_tasks"`
	SubmissionPreviewLimit int  `json:"submission_preview_limit" validate:"gte=0"`
	AllowRepeatedTasks     bool `json:"allow_repeated_tasks"`
}

// TargetRequest declares one acceptable target for deterministic answer
// validation. Tasks without targets are judged, their verdicts stay
// INDETERMINATE until overridden.
type TargetRequest struct {
	Collection string   `json:"collection,omitempty"`
	ItemID     string   `json:"item_id,omitempty"`
	StartMs    int64    `json:"start_ms,omitempty"`
	EndMs      int64    `json:"end_ms,omitempty"`
	Temporal   bool     `json:"temporal,omitempty"`
	Texts      []string `json:"texts,omitempty"`
}

// TaskTemplateRequest configures one task of the run.
type TaskTemplateRequest struct {
	Name                     string          `json:"name" validate:"required"`
	Collection               string          `json:"collection" validate:"required"`
	DurationSeconds          int             `json:"duration_seconds" validate:"required,gt=0"`
	ScorerType               string          `json:"scorer_type" validate:"required,oneof=KIS AVS"`
	MaxPointsPerTask         float64         `json:"max_points_per_task" validate:"gte=0"`
	MaxPointsAtTaskEnd       float64         `json:"max_points_at_task_end" validate:"gte=0"`
	PenaltyPerWrong          float64         `json:"penalty_per_wrong_submission" validate:"gte=0"`
	DuplicateCooldownSeconds int             `json:"duplicate_cooldown_seconds" validate:"gte=0"`
	RestrictToCollection     bool            `json:"restrict_to_collection"`
	Targets                  []TargetRequest `json:"targets" validate:"dive"`
}

// TeamRequest declares one participating team.
type TeamRequest struct {
	Name    string      `json:"name" validate:"required"`
	Members []uuid.UUID `json:"members" validate:"min=1"`
}

// CreateRunRequest instantiates a run from a template document.
type CreateRunRequest struct {
	Name        string                `json:"name" validate:"required"`
	TemplateID  uuid.UUID             `json:"template_id" validate:"required"`
	Synchronous bool                  `json:"synchronous"`
	Properties  RunPropertiesRequest  `json:"properties"`
	Teams       []TeamRequest         `json:"teams" validate:"min=1,dive"`
	Tasks       []TaskTemplateRequest `json:"tasks" validate:"min=1,dive"`
}

// TeamResponse is the public view of a participating team.
type TeamResponse struct {
	ID      uuid.UUID   `json:"id"`
	Name    string      `json:"name"`
	Members []uuid.UUID `json:"members"`
}

// RunResponse is the public view of a run.
type RunResponse struct {
	ID          uuid.UUID      `json:"id"`
	TemplateID  uuid.UUID      `json:"template_id"`
	Name        string         `json:"name"`
	Synchronous bool           `json:"synchronous"`
	Status      string         `json:"status"`
	Teams       []TeamResponse `json:"teams"`
	TaskCount   int            `json:"task_count"`
}

// NewRunResponse builds the view from a live manager.
func NewRunResponse(manager engine.RunManager, taskCount int) RunResponse {
	teams := manager.Teams()
	teamViews := make([]TeamResponse, len(teams))
	for i, team := range teams {
		teamViews[i] = TeamResponse{ID: team.ID, Name: team.Name, Members: team.Members}
	}
	return RunResponse{
		ID:          manager.ID(),
		TemplateID:  manager.TemplateID(),
		Name:        manager.Name(),
		Synchronous: manager.Synchronous(),
		Status:      string(manager.Status()),
		Teams:       teamViews,
		TaskCount:   taskCount,
	}
}

// TaskResponse is the public view of one task instance.
type TaskResponse struct {
	ID               uuid.UUID            `json:"id"`
	TeamID           uuid.UUID            `json:"team_id,omitempty"`
	Name             string               `json:"name"`
	Position         int                  `json:"position"`
	Status           string               `json:"status"`
	Started          *time.Time           `json:"started,omitempty"`
	Ended            *time.Time           `json:"ended,omitempty"`
	DurationSeconds  float64              `json:"duration_seconds"`
	RemainingSeconds float64              `json:"remaining_seconds"`
	Submissions      []SubmissionResponse `json:"submissions,omitempty"`
	Scores           map[string]float64   `json:"scores,omitempty"`
}

// NewTaskResponse builds the view from an engine snapshot.
func NewTaskResponse(snapshot engine.TaskSnapshot) TaskResponse {
	response := TaskResponse{
		ID:               snapshot.ID,
		TeamID:           snapshot.TeamID,
		Name:             snapshot.Name,
		Position:         snapshot.Position,
		Status:           string(snapshot.Status),
		DurationSeconds:  snapshot.Duration.Seconds(),
		RemainingSeconds: snapshot.Remaining.Seconds(),
	}
	if !snapshot.Started.IsZero() {
		started := snapshot.Started
		response.Started = &started
	}
	if !snapshot.Ended.IsZero() {
		ended := snapshot.Ended
		response.Ended = &ended
	}
	if len(snapshot.Submissions) > 0 {
		response.Submissions = make([]SubmissionResponse, len(snapshot.Submissions))
		for i, sub := range snapshot.Submissions {
			response.Submissions[i] = NewSubmissionResponse(sub)
		}
	}
	if len(snapshot.Scores) > 0 {
		response.Scores = make(map[string]float64, len(snapshot.Scores))
		for teamID, score := range snapshot.Scores {
			response.Scores[teamID.String()] = score
		}
	}
	return response
}
