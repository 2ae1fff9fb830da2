package engine

import (
	"fmt"
	"time"
)

// SubmissionFilter decides whether a candidate submission is admissible
// given the task context and the team's prior history. A nil return accepts;
// rejections are reported as *SubmissionRejectedError and leave run state
// untouched.
type SubmissionFilter interface {
	Check(ctx TaskContext, history []Submission, candidate Submission) error
}

// AcceptAllFilter admits every submission. Default when a task template
// configures no policy.
type AcceptAllFilter struct{}

func (AcceptAllFilter) Check(TaskContext, []Submission, Submission) error {
	return nil
}

// CombiningFilter conjoins sub-filters: the first rejection wins.
type CombiningFilter struct {
	filters []SubmissionFilter
}

// Combine builds a filter that rejects if any of the given filters rejects.
func Combine(filters ...SubmissionFilter) SubmissionFilter {
	if len(filters) == 0 {
		return AcceptAllFilter{}
	}
	if len(filters) == 1 {
		return filters[0]
	}
	return &CombiningFilter{filters: filters}
}

func (f *CombiningFilter) Check(ctx TaskContext, history []Submission, candidate Submission) error {
	for _, filter := range f.filters {
		if err := filter.Check(ctx, history, candidate); err != nil {
			return err
		}
	}
	return nil
}

// DuplicateAnswerFilter rejects a submission repeating an answer the same
// team already posted within the cooldown window. A zero cooldown suppresses
// duplicates for the whole task.
type DuplicateAnswerFilter struct {
	Cooldown time.Duration
}

func (f DuplicateAnswerFilter) Check(ctx TaskContext, history []Submission, candidate Submission) error {
	for _, prior := range history {
		if prior.TeamID != candidate.TeamID {
			continue
		}
		if f.Cooldown > 0 && candidate.At.Sub(prior.At) > f.Cooldown {
			continue
		}
		for _, priorAnswer := range prior.Answers {
			for _, answer := range candidate.Answers {
				if sameAnswer(priorAnswer, answer) {
					return &SubmissionRejectedError{Reason: "duplicate answer within cooldown window"}
				}
			}
		}
	}
	return nil
}

func sameAnswer(a, b Answer) bool {
	if a.IsItemRef() != b.IsItemRef() {
		return false
	}
	if a.IsItemRef() {
		return a.Collection == b.Collection && a.ItemID == b.ItemID &&
			a.Temporal == b.Temporal && a.StartMs == b.StartMs && a.EndMs == b.EndMs
	}
	return a.Text == b.Text
}

// CollectionFilter rejects item answers referencing a media collection other
// than the one the task declares. Text answers pass through.
type CollectionFilter struct {
	Collection string
}

func (f CollectionFilter) Check(ctx TaskContext, history []Submission, candidate Submission) error {
	for _, answer := range candidate.Answers {
		if answer.IsItemRef() && answer.Collection != f.Collection {
			return &SubmissionRejectedError{
				Reason: fmt.Sprintf("item %s is outside collection %s", answer.ItemID, f.Collection),
			}
		}
	}
	return nil
}
