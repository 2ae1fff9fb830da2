package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// asyncManager drives an asynchronous run: every team moves through its own
// materialised task sequence with an independent cursor, so the same
// template can be running for several teams at once with different start
// timestamps.
type asyncManager struct {
	mu      sync.RWMutex
	run     *Run
	status  RunStatus
	seqs    map[uuid.UUID]*sequence
	sinks   []ScoreSink
	viewers map[string]bool
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAsynchronousManager constructs the manager for an asynchronous run.
func NewAsynchronousManager(run *Run, sinks []ScoreSink, logger zerolog.Logger) RunManager {
	seqs := make(map[uuid.UUID]*sequence, len(run.Teams))
	for _, team := range run.Teams {
		seqs[team.ID] = newSequence(run.Templates)
	}
	return &asyncManager{
		run:     run,
		status:  RunCreated,
		seqs:    seqs,
		sinks:   sinks,
		viewers: map[string]bool{},
		logger:  logger.With().Str("component", "async_run_manager").Str("run_id", run.ID.String()).Logger(),
		now:     time.Now,
	}
}

func (m *asyncManager) ID() uuid.UUID         { return m.run.ID }
func (m *asyncManager) TemplateID() uuid.UUID { return m.run.TemplateID }
func (m *asyncManager) Name() string          { return m.run.Name }
func (m *asyncManager) Synchronous() bool     { return false }
func (m *asyncManager) Teams() []Team         { return append([]Team(nil), m.run.Teams...) }

func (m *asyncManager) Status() RunStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *asyncManager) HasParticipant(userID uuid.UUID) bool {
	_, ok := m.run.TeamOf(userID)
	return ok
}

func (m *asyncManager) Start(ac ActionContext) error {
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

func (m *asyncManager) End(ac ActionContext) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "run end"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "run end", State: "run is " + string(m.status)}
	}
	now := m.now()
	for _, seq := range m.seqs {
		if task := seq.running(); task != nil {
			task.end(now)
			m.recordScores(task)
		} else {
			seq.terminate(now)
		}
	}
	m.status = RunTerminated
	m.logger.Info().Msg("run terminated")
	return nil
}

// teamSequence resolves the acting team's cursor. Every per-team operation
// requires a resolvable team, admins included.
func (m *asyncManager) teamSequence(ac ActionContext) (uuid.UUID, *sequence, error) {
	teamID := ac.TeamID
	if teamID == uuid.Nil || !m.run.HasTeam(teamID) {
		resolved, ok := m.run.TeamOf(ac.UserID)
		if !ok {
			return uuid.Nil, nil, &IllegalTeamError{UserID: ac.UserID}
		}
		teamID = resolved
	}
	return teamID, m.seqs[teamID], nil
}

func (m *asyncManager) Next(ac ActionContext) (bool, error) {
	return m.move(ac, 1)
}

func (m *asyncManager) Previous(ac ActionContext) (bool, error) {
	return m.move(ac, -1)
}

func (m *asyncManager) move(ac ActionContext, delta int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return false, &IllegalStateError{Op: "task selection", State: "run is " + string(m.status)}
	}
	_, seq, err := m.teamSequence(ac)
	if err != nil {
		return false, err
	}
	return seq.advance(delta)
}

func (m *asyncManager) GoTo(ac ActionContext, index int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "task selection", State: "run is " + string(m.status)}
	}
	_, seq, err := m.teamSequence(ac)
	if err != nil {
		return err
	}
	return seq.goTo(index)
}

func (m *asyncManager) StartTask(ac ActionContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "task start", State: "run is " + string(m.status)}
	}
	teamID, seq, err := m.teamSequence(ac)
	if err != nil {
		return err
	}
	task, err := seq.startTask(m.now(), m.run.Properties.AllowRepeatedTasks)
	if err != nil {
		return err
	}
	m.logger.Info().Str("task", task.Template.Name).Str("team_id", teamID.String()).Msg("task started")
	return nil
}

func (m *asyncManager) AbortTask(ac ActionContext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return &IllegalStateError{Op: "task abort", State: "run is " + string(m.status)}
	}
	teamID, seq, err := m.teamSequence(ac)
	if err != nil {
		return err
	}
	task, err := seq.abortTask(m.now())
	if err != nil {
		return err
	}
	m.recordScores(task)
	m.logger.Info().Str("task", task.Template.Name).Str("team_id", teamID.String()).Msg("task aborted")
	return nil
}

func (m *asyncManager) AdjustDuration(ac ActionContext, delta time.Duration) (time.Duration, error) {
	if !ac.IsAdmin {
		return 0, &AccessDeniedError{Op: "duration adjustment"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, seq, err := m.teamSequence(ac)
	if err != nil {
		return 0, err
	}
	task := seq.running()
	if m.status != RunActive || task == nil {
		return 0, &IllegalStateError{Op: "duration adjustment", State: "no task is running"}
	}
	now := m.now()
	task.duration += delta
	remaining := task.Remaining(now)
	if remaining <= 0 {
		task.end(now)
		m.recordScores(task)
		return 0, nil
	}
	return remaining, nil
}

func (m *asyncManager) PostSubmission(ac ActionContext, sub Submission) (Verdict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return VerdictIndeterminate, &IllegalStateError{Op: "submission", State: "run is " + string(m.status)}
	}
	teamID, seq, err := m.teamSequence(ac)
	if err != nil {
		return VerdictIndeterminate, err
	}
	task := seq.running()
	if task == nil {
		return VerdictIndeterminate, &IllegalStateError{Op: "submission", State: "no task is running"}
	}
	now := m.now()
	if task.Remaining(now) <= 0 {
		task.end(now)
		m.recordScores(task)
		return VerdictIndeterminate, &IllegalStateError{Op: "submission", State: "task window closed"}
	}
	sub.TeamID = teamID
	return acceptSubmission(task, sub, now, []uuid.UUID{teamID}, m.sinks)
}

func (m *asyncManager) OverrideVerdict(ac ActionContext, taskID, submissionID uuid.UUID, verdict Verdict) error {
	if !ac.IsAdmin {
		return &AccessDeniedError{Op: "verdict override"}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for teamID, seq := range m.seqs {
		task := seq.find(taskID)
		if task == nil {
			continue
		}
		if err := overrideVerdict(task, submissionID, verdict, []uuid.UUID{teamID}); err != nil {
			return err
		}
		m.recordScores(task)
		return nil
	}
	return &TaskNotFoundError{ID: taskID}
}

func (m *asyncManager) RegisterViewer(viewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, known := m.viewers[viewerID]; !known {
		m.viewers[viewerID] = false
	}
}

func (m *asyncManager) UnregisterViewer(viewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.viewers, viewerID)
}

func (m *asyncManager) SetViewerReady(viewerID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewers[viewerID] = true
}

func (m *asyncManager) OverrideReadyState(ac ActionContext, viewerID string) error {
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

func (m *asyncManager) Viewers() map[string]bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]bool, len(m.viewers))
	for viewer, ready := range m.viewers {
		out[viewer] = ready
	}
	return out
}

func (m *asyncManager) CurrentTask(ac ActionContext) (TaskSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	teamID, seq, err := m.teamSequence(ac)
	if err != nil {
		return TaskSnapshot{}, err
	}
	task := seq.selected()
	if task == nil {
		return TaskSnapshot{}, &IllegalStateError{Op: "task lookup", State: "no task selected"}
	}
	snapshot := snapshotTask(task, seq.index, m.now(), m.previewLimit(ac))
	snapshot.TeamID = teamID
	return snapshot, nil
}

func (m *asyncManager) Tasks(ac ActionContext) []TaskSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	teamID, seq, err := m.teamSequence(ac)
	if err != nil {
		return nil
	}
	now := m.now()
	limit := m.previewLimit(ac)
	out := make([]TaskSnapshot, len(seq.tasks))
	for i, task := range seq.tasks {
		out[i] = snapshotTask(task, i, now, limit)
		out[i].TeamID = teamID
	}
	return out
}

func (m *asyncManager) Submissions(ac ActionContext, taskID uuid.UUID) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task := m.findTask(taskID)
	if task == nil {
		return nil, &TaskNotFoundError{ID: taskID}
	}
	submissions := task.Submissions()
	if limit := m.previewLimit(ac); limit > 0 && len(submissions) > limit {
		submissions = submissions[len(submissions)-limit:]
	}
	return submissions, nil
}

func (m *asyncManager) TaskScores(taskID uuid.UUID) (map[uuid.UUID]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	task := m.findTask(taskID)
	if task == nil {
		return nil, &TaskNotFoundError{ID: taskID}
	}
	return task.Scores(), nil
}

func (m *asyncManager) EnforceDeadlines(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != RunActive {
		return 0
	}
	aborted := 0
	for _, seq := range m.seqs {
		task := seq.running()
		if task == nil || task.Remaining(now) > 0 {
			continue
		}
		task.end(now)
		m.recordScores(task)
		m.logger.Info().Str("task", task.Template.Name).Msg("task ended on timeout")
		aborted++
	}
	return aborted
}

func (m *asyncManager) findTask(taskID uuid.UUID) *TaskInstance {
	for _, seq := range m.seqs {
		if task := seq.find(taskID); task != nil {
			return task
		}
	}
	return nil
}

func (m *asyncManager) previewLimit(ac ActionContext) int {
	if ac.IsAdmin {
		return 0
	}
	return m.run.Properties.SubmissionPreviewLimit
}

func (m *asyncManager) recordScores(task *TaskInstance) {
	scores := task.Scores()
	at := m.now()
	for _, sink := range m.sinks {
		sink.Record(task.Template.Name, scores, at)
	}
}
