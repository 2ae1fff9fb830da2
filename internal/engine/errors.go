package engine

import (
	"fmt"

	"github.com/google/uuid"
)

// IllegalStateError reports an operation requested while the run or task is
// in an incompatible lifecycle state. The caller may retry after checking
// state; the engine itself stays consistent.
type IllegalStateError struct {
	Op    string
	State string
}

func (e *IllegalStateError) Error() string {
	return fmt.Sprintf("%s not possible while %s", e.Op, e.State)
}

// SubmissionRejectedError reports an admission-control refusal. No run state
// is mutated when it is returned.
type SubmissionRejectedError struct {
	Reason string
}

func (e *SubmissionRejectedError) Error() string {
	return fmt.Sprintf("submission rejected: %s", e.Reason)
}

// IllegalTeamError reports that the submitting user could not be mapped to a
// team participating in the run.
type IllegalTeamError struct {
	UserID uuid.UUID
}

func (e *IllegalTeamError) Error() string {
	return fmt.Sprintf("user %s has no team in this run", e.UserID)
}

// IndexOutOfBoundsError reports an invalid task-switch index.
type IndexOutOfBoundsError struct {
	Index int
	Size  int
}

func (e *IndexOutOfBoundsError) Error() string {
	return fmt.Sprintf("task index %d out of bounds (have %d tasks)", e.Index, e.Size)
}

// AccessDeniedError reports a caller lacking the authority to drive the
// requested mutation, e.g. a participant advancing a synchronous run's
// global cursor.
type AccessDeniedError struct {
	Op string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("access denied for %s", e.Op)
}

// TaskNotFoundError reports a lookup for a task id the run does not know,
// e.g. a stale id kept across a run restart.
type TaskNotFoundError struct {
	ID uuid.UUID
}

func (e *TaskNotFoundError) Error() string {
	return fmt.Sprintf("task %s not found", e.ID)
}

// SubmissionNotFoundError reports a verdict override targeting a submission
// id absent from the task's history.
type SubmissionNotFoundError struct {
	ID uuid.UUID
}

func (e *SubmissionNotFoundError) Error() string {
	return fmt.Sprintf("submission %s not found", e.ID)
}

// DuplicateRunError reports an attempt to register a second active
// synchronous run for the same evaluation template.
type DuplicateRunError struct {
	TemplateID uuid.UUID
}

func (e *DuplicateRunError) Error() string {
	return fmt.Sprintf("an active synchronous run already exists for template %s", e.TemplateID)
}
