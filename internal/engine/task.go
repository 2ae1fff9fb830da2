package engine

import (
	"time"

	"github.com/google/uuid"
)

// TaskStatus is the lifecycle state of one task execution attempt.
type TaskStatus string

const (
	TaskCreated TaskStatus = "CREATED"
	TaskRunning TaskStatus = "RUNNING"
	TaskEnded   TaskStatus = "ENDED"
	TaskIgnored TaskStatus = "IGNORED"
)

// TaskTemplate carries the static configuration a task instance is stamped
// from: name, nominal duration, scoring strategy, admission policy and
// answer validation. Templates are immutable once the run is created.
type TaskTemplate struct {
	ID         uuid.UUID
	Name       string
	Collection string
	Duration   time.Duration
	Scorer     TaskScorer
	Filter     SubmissionFilter
	Validator  AnswerValidator
}

// TaskInstance binds a template to one execution attempt. It owns the
// append-only submission history and the latest recomputed scores. All
// mutation happens under the owning manager's lock.
type TaskInstance struct {
	ID          uuid.UUID
	Template    TaskTemplate
	Status      TaskStatus
	Started     time.Time
	Ended       time.Time
	duration    time.Duration
	submissions []Submission
	scores      map[uuid.UUID]float64
}

// NewTaskInstance stamps a fresh attempt from the template.
func NewTaskInstance(template TaskTemplate) *TaskInstance {
	return &TaskInstance{
		ID:       uuid.New(),
		Template: template,
		Status:   TaskCreated,
		duration: template.Duration,
		scores:   map[uuid.UUID]float64{},
	}
}

// Duration returns the effective duration, including adjustments applied
// while the task was running.
func (t *TaskInstance) Duration() time.Duration {
	return t.duration
}

// Remaining returns the time left in the task window at the given instant.
// Zero or negative means the window has closed.
func (t *TaskInstance) Remaining(now time.Time) time.Duration {
	if t.Status != TaskRunning {
		return 0
	}
	return t.Started.Add(t.duration).Sub(now)
}

// Context snapshots the scorer input for the given participating teams.
func (t *TaskInstance) Context(teamIDs []uuid.UUID) TaskContext {
	ids := make([]uuid.UUID, len(teamIDs))
	copy(ids, teamIDs)
	return TaskContext{TeamIDs: ids, Started: t.Started, Duration: t.duration}
}

// Submissions returns a copy of the history in acceptance order. Answers are
// deep-copied: a snapshot read here must stay stable while a later verdict
// override rewrites the live history under the run lock.
func (t *TaskInstance) Submissions() []Submission {
	out := make([]Submission, len(t.submissions))
	for i, sub := range t.submissions {
		out[i] = sub.clone()
	}
	return out
}

// Scores returns a copy of the latest recomputed per-team scores.
func (t *TaskInstance) Scores() map[uuid.UUID]float64 {
	out := make(map[uuid.UUID]float64, len(t.scores))
	for team, score := range t.scores {
		out[team] = score
	}
	return out
}

func (t *TaskInstance) start(now time.Time) {
	t.Status = TaskRunning
	t.Started = now
}

func (t *TaskInstance) end(now time.Time) {
	t.Status = TaskEnded
	t.Ended = now
}

func (t *TaskInstance) append(sub Submission) {
	// the history owns its answer arrays; the caller keeps its own copy
	t.submissions = append(t.submissions, sub.clone())
}

func (t *TaskInstance) rescore(teamIDs []uuid.UUID) error {
	if t.Template.Scorer == nil {
		return nil
	}
	scores, err := t.Template.Scorer.Score(t.Context(teamIDs), t.submissions)
	if err != nil {
		return err
	}
	t.scores = scores
	return nil
}
