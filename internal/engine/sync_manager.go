package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// syncManager drives a synchronous run: all teams share one global task
// cursor and only admin-equivalent callers may advance it.
type syncManager struct {
	mu      sync.RWMutex
	run     *Run
	status  RunStatus
	seq     *sequence
	sinks   []ScoreSink
	viewers map[string]bool
	logger  zerolog.Logger
	now     func() time.Time
}

// NewSynchronousManager constructs the manager for a synchronous run.
func NewSynchronousManager(run *Run, sinks []ScoreSink, logger zerolog.Logger) RunManager {
	return &syncManager{
		run:     run,
		status:  RunCreated,
		seq:     newSequence(run.Templates),
		sinks:   sinks,
		viewers: map[string]bool{},
		logger:  logger.With().Str("component", "sync_run_manager").Str("run_id", run.ID.String()).Logger(),
		now:     time.Now,
	}
}

func (m *syncManager) ID() uuid.UUID         { return m.run.ID }
func (m *syncManager) TemplateID() uuid.UUID { return m.run.TemplateID }
func (m *syncManager) Name() string          { return m.run.Name }
func (m *syncManager) Synchronous() bool     { return true }
func (m *syncManager) Teams() []Team         { return append([]Team(nil), m.run.Teams...) }

func (m *syncManager) Status() RunStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *syncManager) HasParticipant(userID uuid.UUID) bool {
	_, ok := m.run.TeamOf(userID)
	return ok
}

func (m *syncManager) Start(ac ActionContext) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "run start"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunCreated {
		return &IllegalStateError{Op: "run start", State: "run is " + string(m.status)}
	}
	m.status = RunActive
	m.logger.Info().Msg("run started")
	return nil
}

func (m *syncManager) End(ac ActionContext) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "run end"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "run end", State: "run is " + string(m.status)}
	}
	now := m.now()
	if task := m.seq.running(); task != nil {
		m.finishTask(task, now)
	} else {
		m.seq.terminate(now)
	}
	m.status = RunTerminated
	m.logger.Info().Msg("run terminated")
	return nil
}

func (m *syncManager) Next(ac ActionContext) (bool, error) {
	return m.move(ac, 1)
}

func (m *syncManager) Previous(ac ActionContext) (bool, error) {
	return m.move(ac, -1)
}

func (m *syncManager) move(ac ActionContext, delta int) (bool, error) {
	if !ac.IsAdmin {
		return false, &AccessDeniedError{Op: "task selection"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return false, &IllegalStateError{Op: "task selection", State: "run is " + string(m.status)}
	}
	return m.seq.advance(delta)
}

func (m *syncManager) GoTo(ac ActionContext, index int) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "task selection"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "task selection", State: "run is " + string(m.status)}
	}
	return m.seq.goTo(index)
}

func (m *syncManager) StartTask(ac ActionContext) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "task start"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "task start", State: "run is " + string(m.status)}
	}
	for viewer, ready := range m.viewers {
		if !ready {
			return &IllegalStateError{Op: "task start", State: "viewer " + viewer + " not ready"}
		}
	}
	task, err := m.seq.startTask(m.now(), m.run.Properties.AllowRepeatedTasks)
	if err != nil {
		return err
	}
	m.logger.Info().Str("task", task.Template.Name).Msg("task started")
	return nil
}

func (m *syncManager) AbortTask(ac ActionContext) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "task abort"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "task abort", State: "run is " + string(m.status)}
	}
	task, err := m.seq.abortTask(m.now())
	if err != nil {
		return err
	}
	m.afterTaskEnd(task)
	m.logger.Info().Str("task", task.Template.Name).Msg("task aborted")
	return nil
}

func (m *syncManager) AdjustDuration(ac ActionContext, delta time.Duration) (time.Duration, error) {
	if !ac.IsAdmin {
		return 0, &AccessDeniedError{Op: "duration adjustment"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task := m.seq.running()
	if m.status != RunActive || task == nil {
		return 0, &IllegalStateError{Op: "duration adjustment", State: "no task is running"}
	}
	now := m.now()
	task.duration += delta
	remaining := task.Remaining(now)
	if remaining <= 0 {
		// shrunk past the present: the task ends instead of keeping an
		// inconsistent negative window
		m.finishTask(task, now)
		return 0, nil
	}
	return remaining, nil
}

func (m *syncManager) PostSubmission(ac ActionContext, sub Submission) (Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return VerdictIndeterminate, &IllegalStateError{Op: "submission", State: "run is " + string(m.status)}
	}
	teamID, err := m.resolveTeam(ac)
	if err != nil {
		return VerdictIndeterminate, err
	}
	task := m.seq.running()
	if task == nil {
		return VerdictIndeterminate, &IllegalStateError{Op: "submission", State: "no task is running"}
	}
	now := m.now()
	if task.Remaining(now) <= 0 {
		// the window closed between poller ticks
		m.finishTask(task, now)
		return VerdictIndeterminate, &IllegalStateError{Op: "submission", State: "task window closed"}
	}
	sub.TeamID = teamID
	return acceptSubmission(task, sub, now, m.run.TeamIDs(), m.sinks)
}

func (m *syncManager) resolveTeam(ac ActionContext) (uuid.UUID, error) {
	if ac.TeamID != uuid.Nil && m.run.HasTeam(ac.TeamID) {
		return ac.TeamID, nil
	}
	teamID, ok := m.run.TeamOf(ac.UserID)
	if !ok {
		return uuid.Nil, &IllegalTeamError{UserID: ac.UserID}
	}
	return teamID, nil
}

func (m *syncManager) OverrideVerdict(ac ActionContext, taskID, submissionID uuid.UUID, verdict Verdict) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "verdict override"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task := m.seq.find(taskID)
	if task == nil {
		return &TaskNotFoundError{ID: taskID}
	}
	if err := overrideVerdict(task, submissionID, verdict, m.run.TeamIDs()); err != nil {
		return err
	}
	m.recordScores(task)
	return nil
}

func (m *syncManager) RegisterViewer(viewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, known := m.viewers[viewerID]; !known {
		m.viewers[viewerID] = false
	}
}

func (m *syncManager) UnregisterViewer(viewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.viewers, viewerID)
}

func (m *syncManager) SetViewerReady(viewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewers[viewerID] = true
}

// OverrideReadyState forces a stalled viewer handshake into the ready state.
func (m *syncManager) OverrideReadyState(ac ActionContext, viewerID string) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "ready-state override"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "ready-state override", State: "run is " + string(m.status)}
	}
	m.viewers[viewerID] = true
	return nil
}

func (m *syncManager) Viewers() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.viewers))
	for viewer, ready := range m.viewers {
		out[viewer] = ready
	}
	return out
}

func (m *syncManager) CurrentTask(ac ActionContext) (TaskSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task := m.seq.selected()
	if task == nil {
		return TaskSnapshot{}, &IllegalStateError{Op: "task lookup", State: "no task selected"}
	}
	return snapshotTask(task, m.seq.index, m.now(), m.previewLimit(ac)), nil
}

func (m *syncManager) Tasks(ac ActionContext) []TaskSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	limit := m.previewLimit(ac)
	out := make([]TaskSnapshot, len(m.seq.tasks))
	for i, task := range m.seq.tasks {
		out[i] = snapshotTask(task, i, now, limit)
	}
	return out
}

func (m *syncManager) Submissions(ac ActionContext, taskID uuid.UUID) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task := m.seq.find(taskID)
	if task == nil {
		return nil, &TaskNotFoundError{ID: taskID}
	}
	submissions := task.Submissions()
	if limit := m.previewLimit(ac); limit > 0 && len(submissions) > limit {
		submissions = submissions[len(submissions)-limit:]
	}
	return submissions, nil
}

func (m *syncManager) TaskScores(taskID uuid.UUID) (map[uuid.UUID]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task := m.seq.find(taskID)
	if task == nil {
		return nil, &TaskNotFoundError{ID: taskID}
	}
	return task.Scores(), nil
}

func (m *syncManager) EnforceDeadlines(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return 0
	}
	task := m.seq.running()
	if task == nil || task.Remaining(now) > 0 {
		return 0
	}
	m.finishTask(task, now)
	m.logger.Info().Str("task", task.Template.Name).Msg("task ended on timeout")
	return 1
}

func (m *syncManager) previewLimit(ac ActionContext) int {
	if ac.IsAdmin {
		return 0
	}
	return m.run.Properties.SubmissionPreviewLimit
}

func (m *syncManager) finishTask(task *TaskInstance, now time.Time) {
	task.end(now)
	m.afterTaskEnd(task)
}

// afterTaskEnd folds final scores into the sinks and resets the viewer
// handshake for the next task.
func (m *syncManager) afterTaskEnd(task *TaskInstance) {
	m.recordScores(task)
	for viewer := range m.viewers {
		m.viewers[viewer] = false
	}
}

func (m *syncManager) recordScores(task *TaskInstance) {
	scores := task.Scores()
	at := m.now()
	for _, sink := range m.sinks {
		sink.Record(task.Template.Name, scores, at)
	}
}
