package engine

import (
	"time"

	"github.com/google/uuid"
)

// Verdict classifies a single answer. Only CORRECT and WRONG participate in
// scoring; INDETERMINATE and UNDECIDABLE are excluded.
type Verdict string

const (
	VerdictIndeterminate Verdict = "INDETERMINATE"
	VerdictCorrect       Verdict = "CORRECT"
	VerdictWrong         Verdict = "WRONG"
	VerdictUndecidable   Verdict = "UNDECIDABLE"
)

// Answer is one typed payload inside a submission: either a media item
// reference (optionally with a temporal range in milliseconds) or free text.
type Answer struct {
	Collection string  `json:"collection,omitempty"`
	ItemID     string  `json:"item_id,omitempty"`
	StartMs    int64   `json:"start_ms,omitempty"`
	EndMs      int64   `json:"end_ms,omitempty"`
	Temporal   bool    `json:"temporal,omitempty"`
	Text       string  `json:"text,omitempty"`
	Verdict    Verdict `json:"verdict"`
}

// IsItemRef reports whether the answer references a media item.
func (a Answer) IsItemRef() bool {
	return a.ItemID != ""
}

// Submission is an accepted entry in a task's append-only history.
type Submission struct {
	ID       uuid.UUID `json:"id"`
	TeamID   uuid.UUID `json:"team_id"`
	MemberID uuid.UUID `json:"member_id"`
	At       time.Time `json:"at"`
	Answers  []Answer  `json:"answers"`
}

// clone returns a copy whose Answers no longer alias the receiver's backing
// array, so snapshots stay valid while verdict overrides mutate the history.
func (s Submission) clone() Submission {
	out := s
	out.Answers = make([]Answer, len(s.Answers))
	copy(out.Answers, s.Answers)
	return out
}

// Verdict derives the submission-level verdict: CORRECT if any answer is
// correct, otherwise WRONG if any answer is wrong, otherwise INDETERMINATE.
func (s Submission) Verdict() Verdict {
	verdict := VerdictIndeterminate
	for _, answer := range s.Answers {
		switch answer.Verdict {
		case VerdictCorrect:
			return VerdictCorrect
		case VerdictWrong:
			verdict = VerdictWrong
		}
	}
	return verdict
}

// Team is an immutable participant group for the duration of a run.
type Team struct {
	ID      uuid.UUID
	Name    string
	Members []uuid.UUID
}

// HasMember reports whether the user belongs to the team.
func (t Team) HasMember(userID uuid.UUID) bool {
	for _, member := range t.Members {
		if member == userID {
			return true
		}
	}
	return false
}

// TaskContext is the immutable snapshot handed to a scorer call.
type TaskContext struct {
	TeamIDs  []uuid.UUID
	Started  time.Time
	Duration time.Duration
}

// Ends returns the instant the task window closes.
func (c TaskContext) Ends() time.Time {
	return c.Started.Add(c.Duration)
}

// TaskScorer computes a per-team score from the full submission history of
// one task. Implementations must be pure: the same context and history
// always yield the same scores.
type TaskScorer interface {
	Score(ctx TaskContext, submissions []Submission) (map[uuid.UUID]float64, error)
}

// AnswerValidator assigns a verdict to an incoming answer. Deterministic
// validators (known target set) decide immediately; judged answer types
// return INDETERMINATE until resolved externally.
type AnswerValidator interface {
	Judge(answer Answer) Verdict
}

// ScoreSink receives recomputed task scores, e.g. a scoreboard folding them
// into running aggregates and a time series.
type ScoreSink interface {
	Record(taskName string, scores map[uuid.UUID]float64, at time.Time)
}

// ActionContext identifies who is asking for an operation on a run.
type ActionContext struct {
	UserID  uuid.UUID
	TeamID  uuid.UUID
	IsAdmin bool
}
