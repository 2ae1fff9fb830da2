package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/openvbs/arbiter/internal/engine"
)

// AnswerRequest is one answer inside a submission. Item references carry
// Collection and ItemID, optionally with a temporal range; textual answers
// carry Text instead.
type AnswerRequest struct {
	Collection string `json:"collection,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	StartMs    int64  `json:"start_ms,omitempty"`
	EndMs      int64  `json:"end_ms,omitempty"`
	Temporal   bool   `json:"temporal,omitempty"`
	Text       string `json:"text,omitempty"`
}

// SubmissionRequest posts one submission against the current task.
type SubmissionRequest struct {
	Answers []AnswerRequest `json:"answers" validate:"min=1,dive"`
}

// ToEngine converts the request to the engine representation.
func (r SubmissionRequest) ToEngine() []engine.Answer {
	answers := make([]engine.Answer, len(r.Answers))
	for i, a := range r.Answers {
		answers[i] = engine.Answer{
			Collection: a.Collection,
			ItemID:     a.ItemID,
			StartMs:    a.StartMs,
			EndMs:      a.EndMs,
			Temporal:   a.Temporal,
			Text:       a.Text,
		}
	}
	return answers
}

// AnswerResponse mirrors AnswerRequest with the judged verdict attached.
type AnswerResponse struct {
	Collection string `json:"collection,omitempty"`
	ItemID     string `json:"item_id,omitempty"`
	StartMs    int64  `json:"start_ms,omitempty"`
	EndMs      int64  `json:"end_ms,omitempty"`
	Temporal   bool   `json:"temporal,omitempty"`
	Text       string `json:"text,omitempty"`
	Verdict    string `json:"verdict"`
}

// SubmissionResponse is the public view of an accepted submission.
type SubmissionResponse struct {
	ID       uuid.UUID        `json:"id"`
	TeamID   uuid.UUID        `json:"team_id"`
	MemberID uuid.UUID        `json:"member_id"`
	At       time.Time        `json:"at"`
	Verdict  string           `json:"verdict"`
	Answers  []AnswerResponse `json:"answers"`
}

// NewSubmissionResponse builds the view from an engine submission.
func NewSubmissionResponse(sub engine.Submission) SubmissionResponse {
	answers := make([]AnswerResponse, len(sub.Answers))
	for i, a := range sub.Answers {
		answers[i] = AnswerResponse{
			Collection: a.Collection,
			ItemID:     a.ItemID,
			StartMs:    a.StartMs,
			EndMs:      a.EndMs,
			Temporal:   a.Temporal,
			Text:       a.Text,
			Verdict:    string(a.Verdict),
		}
	}
	return SubmissionResponse{
		ID:       sub.ID,
		TeamID:   sub.TeamID,
		MemberID: sub.MemberID,
		At:       sub.At,
		Verdict:  string(sub.Verdict()),
		Answers:  answers,
	}
}

// VerdictOverrideRequest changes the verdict of one judged submission.
type VerdictOverrideRequest struct {
	Verdict string `json:"verdict" validate:"required,oneof=CORRECT WRONG UNDECIDABLE INDETERMINATE"`
}

// AdjustDurationRequest extends or shortens the running task.
type AdjustDurationRequest struct {
	DeltaSeconds int `json:"delta_seconds" validate:"required"`
}

// GoToTaskRequest jumps the run cursor to a task position.
type GoToTaskRequest struct {
	Index int `json:"index" validate:"gte=0"`
}
