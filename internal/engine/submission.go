package engine

import (
	"time"

	"github.com/google/uuid"
)

// acceptSubmission runs the admission-check-then-append sequence for a
// running task: judge answers, consult the filter, append, rescore, fold
// into the sinks. Callers hold the run's exclusive lock, which makes the
// sequence atomic with respect to concurrent submissions; a rejection leaves
// the task untouched.
func acceptSubmission(task *TaskInstance, sub Submission, now time.Time, teamIDs []uuid.UUID, sinks []ScoreSink) (Verdict, error) {
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if sub.At.IsZero() {
		sub.At = now
	}
	if validator := task.Template.Validator; validator != nil {
		for i := range sub.Answers {
			sub.Answers[i].Verdict = validator.Judge(sub.Answers[i])
		}
	} else {
		for i := range sub.Answers {
			if sub.Answers[i].Verdict == "" {
				sub.Answers[i].Verdict = VerdictIndeterminate
			}
		}
	}

	filter := task.Template.Filter
	if filter == nil {
		filter = AcceptAllFilter{}
	}
	if err := filter.Check(task.Context(teamIDs), task.submissions, sub); err != nil {
		return VerdictIndeterminate, err
	}

	task.append(sub)
	if err := task.rescore(teamIDs); err != nil {
		// the submission stays in the history; only the score computation
		// failed and it is surfaced to the caller
		return sub.Verdict(), err
	}
	scores := task.Scores()
	for _, sink := range sinks {
		sink.Record(task.Template.Name, scores, now)
	}
	return sub.Verdict(), nil
}

// overrideVerdict applies an administrative verdict to every answer of the
// identified submission and recomputes the task's scores.
func overrideVerdict(task *TaskInstance, submissionID uuid.UUID, verdict Verdict, teamIDs []uuid.UUID) error {
	for i := range task.submissions {
		if task.submissions[i].ID != submissionID {
			continue
		}
		for j := range task.submissions[i].Answers {
			task.submissions[i].Answers[j].Verdict = verdict
		}
		return task.rescore(teamIDs)
	}
	return &SubmissionNotFoundError{ID: submissionID}
}
