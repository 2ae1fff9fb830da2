package engine

import (
	"time"

	"github.com/google/uuid"
)

// RunManager drives one evaluation run through its lifecycle, admits
// submissions and keeps task scores current. All state-mutating operations
// are serialised per run instance; operations on different runs proceed in
// parallel. The synchronous variant shares one global task cursor across all
// teams, the asynchronous variant gives each team its own cursor.
type RunManager interface {
	ID() uuid.UUID
	TemplateID() uuid.UUID
	Name() string
	Synchronous() bool
	Status() RunStatus
	Teams() []Team
	HasParticipant(userID uuid.UUID) bool

	Start(ac ActionContext) error
	End(ac ActionContext) error
	Next(ac ActionContext) (bool, error)
	Previous(ac ActionContext) (bool, error)
	GoTo(ac ActionContext, index int) error
	StartTask(ac ActionContext) error
	AbortTask(ac ActionContext) error
	AdjustDuration(ac ActionContext, delta time.Duration) (time.Duration, error)
	PostSubmission(ac ActionContext, sub Submission) (Verdict, error)
	OverrideVerdict(ac ActionContext, taskID, submissionID uuid.UUID, verdict Verdict) error

	RegisterViewer(viewerID string)
	UnregisterViewer(viewerID string)
	SetViewerReady(viewerID string)
	OverrideReadyState(ac ActionContext, viewerID string) error
	Viewers() map[string]bool

	CurrentTask(ac ActionContext) (TaskSnapshot, error)
	Tasks(ac ActionContext) []TaskSnapshot
	Submissions(ac ActionContext, taskID uuid.UUID) ([]Submission, error)
	TaskScores(taskID uuid.UUID) (map[uuid.UUID]float64, error)

	// EnforceDeadlines aborts running tasks whose window has closed and
	// returns how many were aborted. Driven by the executor's poll loop.
	EnforceDeadlines(now time.Time) int
}

// TaskSnapshot is an immutable copy-on-read view of one task instance.
type TaskSnapshot struct {
	ID          uuid.UUID             `json:"id"`
	TeamID      uuid.UUID             `json:"team_id,omitempty"`
	Name        string                `json:"name"`
	Position    int                   `json:"position"`
	Status      TaskStatus            `json:"status"`
	Started     time.Time             `json:"started,omitempty"`
	Ended       time.Time             `json:"ended,omitempty"`
	Duration    time.Duration         `json:"duration"`
	Remaining   time.Duration         `json:"remaining"`
	Submissions []Submission          `json:"submissions,omitempty"`
	Scores      map[uuid.UUID]float64 `json:"scores,omitempty"`
}

func snapshotTask(t *TaskInstance, position int, now time.Time, previewLimit int) TaskSnapshot {
	submissions := t.Submissions()
	if previewLimit > 0 && len(submissions) > previewLimit {
		submissions = submissions[len(submissions)-previewLimit:]
	}
	return TaskSnapshot{
		ID:          t.ID,
		Name:        t.Template.Name,
		Position:    position,
		Status:      t.Status,
		Started:     t.Started,
		Ended:       t.Ended,
		Duration:    t.Duration(),
		Remaining:   t.Remaining(now),
		Submissions: submissions,
		Scores:      t.Scores(),
	}
}

// sequence is one ordered pass over a run's task templates: the materialised
// instances, the selection cursor and the archive of superseded attempts.
// Serialisation is the owning manager's concern.
type sequence struct {
	tasks    []*TaskInstance
	archived []*TaskInstance
	index    int
}

func newSequence(templates []TaskTemplate) *sequence {
	tasks := make([]*TaskInstance, len(templates))
	for i, template := range templates {
		tasks[i] = NewTaskInstance(template)
	}
	return &sequence{tasks: tasks, index: -1}
}

func (s *sequence) selected() *TaskInstance {
	if s.index < 0 || s.index >= len(s.tasks) {
		return nil
	}
	return s.tasks[s.index]
}

func (s *sequence) running() *TaskInstance {
	for _, task := range s.tasks {
		if task.Status == TaskRunning {
			return task
		}
	}
	return nil
}

func (s *sequence) find(taskID uuid.UUID) *TaskInstance {
	for _, task := range s.tasks {
		if task.ID == taskID {
			return task
		}
	}
	for _, task := range s.archived {
		if task.ID == taskID {
			return task
		}
	}
	return nil
}

func (s *sequence) goTo(index int) error {
	if s.running() != nil {
		return &IllegalStateError{Op: "task selection", State: "a task is running"}
	}
	if index < 0 || index >= len(s.tasks) {
		return &IndexOutOfBoundsError{Index: index, Size: len(s.tasks)}
	}
	s.index = index
	return nil
}

// advance moves the cursor by delta and reports false when no task exists in
// that direction, which is not an error.
func (s *sequence) advance(delta int) (bool, error) {
	if s.running() != nil {
		return false, &IllegalStateError{Op: "task selection", State: "a task is running"}
	}
	next := s.index + delta
	if next < 0 || next >= len(s.tasks) {
		return false, nil
	}
	s.index = next
	return true, nil
}

// startTask moves the selected task into RUNNING. A finished attempt is
// restarted as a fresh instance when the run allows repeated tasks; the old
// attempt moves to the archive so its history stays readable.
func (s *sequence) startTask(now time.Time, allowRepeated bool) (*TaskInstance, error) {
	task := s.selected()
	if task == nil {
		return nil, &IllegalStateError{Op: "task start", State: "no task selected"}
	}
	if s.running() != nil {
		return nil, &IllegalStateError{Op: "task start", State: "a task is already running"}
	}
	if task.Status != TaskCreated {
		if !allowRepeated {
			return nil, &IllegalStateError{Op: "task start", State: "task already " + string(task.Status)}
		}
		s.archived = append(s.archived, task)
		task = NewTaskInstance(task.Template)
		s.tasks[s.index] = task
	}
	task.start(now)
	return task, nil
}

func (s *sequence) abortTask(now time.Time) (*TaskInstance, error) {
	task := s.running()
	if task == nil {
		return nil, &IllegalStateError{Op: "task abort", State: "no task is running"}
	}
	task.end(now)
	return task, nil
}

// terminate closes the sequence with the run: a running task is ended, a
// selected-but-never-started task is marked ignored.
func (s *sequence) terminate(now time.Time) {
	if task := s.running(); task != nil {
		task.end(now)
		return
	}
	if task := s.selected(); task != nil && task.Status == TaskCreated {
		task.Status = TaskIgnored
	}
}
