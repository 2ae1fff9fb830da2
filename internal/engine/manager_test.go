package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// countingScorer awards ten points per correct submission.
type countingScorer struct{}

func (countingScorer) Score(ctx TaskContext, submissions []Submission) (map[uuid.UUID]float64, error) {
	scores := make(map[uuid.UUID]float64, len(ctx.TeamIDs))
	for _, teamID := range ctx.TeamIDs {
		scores[teamID] = 0
	}
	for _, sub := range submissions {
		if sub.Verdict() == VerdictCorrect {
			scores[sub.TeamID] += 10
		}
	}
	return scores, nil
}

// targetValidator marks answers for the single expected item correct.
type targetValidator struct{ item string }

func (v targetValidator) Judge(answer Answer) Verdict {
	if answer.ItemID == v.item {
		return VerdictCorrect
	}
	return VerdictWrong
}

type sinkRecorder struct {
	records int
	last    map[uuid.UUID]float64
}

func (s *sinkRecorder) Record(taskName string, scores map[uuid.UUID]float64, at time.Time) {
	s.records++
	s.last = scores
}

type fixture struct {
	run   *Run
	teamA Team
	teamB Team
	userA uuid.UUID
	userB uuid.UUID
	sink  *sinkRecorder
	clock time.Time
}

func newFixture(t *testing.T, properties RunProperties, taskCount int) *fixture {
	t.Helper()
	userA, userB := uuid.New(), uuid.New()
	teamA := Team{ID: uuid.New(), Name: "alpha", Members: []uuid.UUID{userA}}
	teamB := Team{ID: uuid.New(), Name: "beta", Members: []uuid.UUID{userB}}

	templates := make([]TaskTemplate, taskCount)
	for i := range templates {
		templates[i] = TaskTemplate{
			ID:         uuid.New(),
			Name:       "task-" + string(rune('a'+i)),
			Collection: "v3c",
			Duration:   5 * time.Minute,
			Scorer:     countingScorer{},
			Filter:     Combine(DuplicateAnswerFilter{Cooldown: time.Minute}, CollectionFilter{Collection: "v3c"}),
			Validator:  targetValidator{item: "target"},
		}
	}

	return &fixture{
		run:   NewRun(uuid.New(), "test run", properties, []Team{teamA, teamB}, templates),
		teamA: teamA,
		teamB: teamB,
		userA: userA,
		userB: userB,
		sink:  &sinkRecorder{},
		clock: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) syncManager(t *testing.T) *syncManager {
	t.Helper()
	manager := NewSynchronousManager(f.run, []ScoreSink{f.sink}, zerolog.Nop()).(*syncManager)
	manager.now = func() time.Time { return f.clock }
	return manager
}

func (f *fixture) asyncManager(t *testing.T) *asyncManager {
	t.Helper()
	manager := NewAsynchronousManager(f.run, []ScoreSink{f.sink}, zerolog.Nop()).(*asyncManager)
	manager.now = func() time.Time { return f.clock }
	return manager
}

func admin() ActionContext            { return ActionContext{UserID: uuid.New(), IsAdmin: true} }
func user(id uuid.UUID) ActionContext { return ActionContext{UserID: id} }

func submissionFor(item string) Submission {
	return Submission{Answers: []Answer{{Collection: "v3c", ItemID: item}}}
}

func TestSyncRunLifecycle(t *testing.T) {
	f := newFixture(t, RunProperties{}, 2)
	m := f.syncManager(t)

	require.Equal(t, RunCreated, m.Status())

	var illegal *IllegalStateError
	err := m.StartTask(admin())
	require.ErrorAs(t, err, &illegal)

	require.NoError(t, m.Start(admin()))
	require.Equal(t, RunActive, m.Status())

	err = m.Start(admin())
	require.ErrorAs(t, err, &illegal)

	moved, err := m.Next(admin())
	require.NoError(t, err)
	require.True(t, moved)
	require.NoError(t, m.StartTask(admin()))

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Equal(t, TaskRunning, current.Status)
	require.Equal(t, f.clock, current.Started)
}

func TestSyncSubmissionFlow(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)

	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	f.clock = f.clock.Add(30 * time.Second)
	verdict, err := m.PostSubmission(user(f.userA), submissionFor("target"))
	require.NoError(t, err)
	require.Equal(t, VerdictCorrect, verdict)

	verdict, err = m.PostSubmission(user(f.userB), submissionFor("wrong-item"))
	require.NoError(t, err)
	require.Equal(t, VerdictWrong, verdict)

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Len(t, current.Submissions, 2)
	require.Equal(t, f.teamA.ID, current.Submissions[0].TeamID)
	require.Equal(t, 10.0, current.Scores[f.teamA.ID])
	require.Equal(t, 0.0, current.Scores[f.teamB.ID])
	require.Equal(t, 2, f.sink.records)
}

func TestSubmissionRequiresRunningTask(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)

	var illegal *IllegalStateError
	_, err := m.PostSubmission(user(f.userA), submissionFor("target"))
	require.ErrorAs(t, err, &illegal)

	require.NoError(t, m.Start(admin()))
	_, err = m.PostSubmission(user(f.userA), submissionFor("target"))
	require.ErrorAs(t, err, &illegal)

	require.NoError(t, m.GoTo(admin(), 0))
	_, err = m.PostSubmission(user(f.userA), submissionFor("target"))
	require.ErrorAs(t, err, &illegal)
}

func TestSubmissionRejectionLeavesHistoryUntouched(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)

	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	_, err := m.PostSubmission(user(f.userA), submissionFor("target"))
	require.NoError(t, err)

	var rejected *SubmissionRejectedError
	_, err = m.PostSubmission(user(f.userA), submissionFor("target"))
	require.ErrorAs(t, err, &rejected)

	// outside the declared collection
	_, err = m.PostSubmission(user(f.userB), Submission{Answers: []Answer{{Collection: "marine", ItemID: "x"}}})
	require.ErrorAs(t, err, &rejected)

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Len(t, current.Submissions, 1)
}

func TestSubmissionFromUnknownUser(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)

	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	var illegalTeam *IllegalTeamError
	_, err := m.PostSubmission(user(uuid.New()), submissionFor("target"))
	require.ErrorAs(t, err, &illegalTeam)
}

func TestNavigationRules(t *testing.T) {
	f := newFixture(t, RunProperties{}, 2)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))

	var bounds *IndexOutOfBoundsError
	require.ErrorAs(t, m.GoTo(admin(), 5), &bounds)
	require.ErrorAs(t, m.GoTo(admin(), -1), &bounds)

	moved, err := m.Previous(admin())
	require.NoError(t, err)
	require.False(t, moved)

	moved, err = m.Next(admin())
	require.NoError(t, err)
	require.True(t, moved)
	moved, err = m.Next(admin())
	require.NoError(t, err)
	require.True(t, moved)
	moved, err = m.Next(admin())
	require.NoError(t, err)
	require.False(t, moved)

	require.NoError(t, m.StartTask(admin()))
	var illegal *IllegalStateError
	_, err = m.Next(admin())
	require.ErrorAs(t, err, &illegal)
	require.ErrorAs(t, m.GoTo(admin(), 0), &illegal)
}

func TestSyncCursorIsAdminOnly(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))

	var denied *AccessDeniedError
	_, err := m.Next(user(f.userA))
	require.ErrorAs(t, err, &denied)
	require.ErrorAs(t, m.GoTo(user(f.userA), 0), &denied)
	require.ErrorAs(t, m.StartTask(user(f.userA)), &denied)
	require.ErrorAs(t, m.AbortTask(user(f.userA)), &denied)
	require.ErrorAs(t, m.End(user(f.userA)), &denied)
}

func TestAdjustDurationShrinkTriggersAbort(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	f.clock = f.clock.Add(time.Minute)
	remaining, err := m.AdjustDuration(admin(), -5*time.Minute)
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), remaining)

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Equal(t, TaskEnded, current.Status)
}

func TestAdjustDurationExtends(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	remaining, err := m.AdjustDuration(admin(), 2*time.Minute)
	require.NoError(t, err)
	require.Equal(t, 7*time.Minute, remaining)
}

func TestDeadlineEnforcement(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	require.Equal(t, 0, m.EnforceDeadlines(f.clock.Add(time.Minute)))
	require.Equal(t, 1, m.EnforceDeadlines(f.clock.Add(6*time.Minute)))

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Equal(t, TaskEnded, current.Status)
}

func TestEndTerminatesAndStaysReadable(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)

	var illegal *IllegalStateError
	require.ErrorAs(t, m.End(admin()), &illegal)

	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))
	require.NoError(t, m.End(admin()))
	require.Equal(t, RunTerminated, m.Status())

	// a second end reports the state without corrupting anything
	require.ErrorAs(t, m.End(admin()), &illegal)
	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Equal(t, TaskEnded, current.Status)
}

func TestRepeatedTaskStartsFreshAttempt(t *testing.T) {
	f := newFixture(t, RunProperties{AllowRepeatedTasks: true}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	f.clock = f.clock.Add(time.Second)
	_, err := m.PostSubmission(user(f.userA), submissionFor("target"))
	require.NoError(t, err)
	require.NoError(t, m.AbortTask(admin()))

	firstAttempt, err := m.CurrentTask(admin())
	require.NoError(t, err)

	require.NoError(t, m.StartTask(admin()))
	secondAttempt, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.NotEqual(t, firstAttempt.ID, secondAttempt.ID)
	require.Empty(t, secondAttempt.Submissions)

	// the first attempt's history stays readable
	archived, err := m.Submissions(admin(), firstAttempt.ID)
	require.NoError(t, err)
	require.Len(t, archived, 1)
}

func TestRepeatedTaskForbiddenByDefault(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))
	require.NoError(t, m.AbortTask(admin()))

	var illegal *IllegalStateError
	require.ErrorAs(t, m.StartTask(admin()), &illegal)
}

func TestViewerHandshakeGatesTaskStart(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))

	m.RegisterViewer("hub-1")
	var illegal *IllegalStateError
	require.ErrorAs(t, m.StartTask(admin()), &illegal)

	require.NoError(t, m.OverrideReadyState(admin(), "hub-1"))
	require.NoError(t, m.StartTask(admin()))

	// readiness resets when the task ends
	require.NoError(t, m.AbortTask(admin()))
	require.False(t, m.Viewers()["hub-1"])
}

func TestVerdictOverrideRescores(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	f.clock = f.clock.Add(time.Second)
	_, err := m.PostSubmission(user(f.userA), submissionFor("wrong-item"))
	require.NoError(t, err)

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Equal(t, 0.0, current.Scores[f.teamA.ID])

	subID := current.Submissions[0].ID
	require.NoError(t, m.OverrideVerdict(admin(), current.ID, subID, VerdictCorrect))

	scores, err := m.TaskScores(current.ID)
	require.NoError(t, err)
	require.Equal(t, 10.0, scores[f.teamA.ID])
}

func TestSnapshotStableAcrossVerdictOverride(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	f.clock = f.clock.Add(time.Second)
	_, err := m.PostSubmission(user(f.userA), submissionFor("wrong-item"))
	require.NoError(t, err)

	snapshot, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Equal(t, VerdictWrong, snapshot.Submissions[0].Answers[0].Verdict)

	subID := snapshot.Submissions[0].ID
	require.NoError(t, m.OverrideVerdict(admin(), snapshot.ID, subID, VerdictCorrect))

	// the snapshot taken before the override does not alias the live history
	require.Equal(t, VerdictWrong, snapshot.Submissions[0].Answers[0].Verdict)

	fresh, err := m.Submissions(admin(), snapshot.ID)
	require.NoError(t, err)
	require.Equal(t, VerdictCorrect, fresh[0].Answers[0].Verdict)
}

func TestHistoryDoesNotAliasCallerAnswers(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	f.clock = f.clock.Add(time.Second)
	sub := submissionFor("target")
	_, err := m.PostSubmission(user(f.userA), sub)
	require.NoError(t, err)

	sub.Answers[0].Verdict = VerdictUndecidable

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	require.Equal(t, VerdictCorrect, current.Submissions[0].Answers[0].Verdict)
}

func TestUnknownTaskLookups(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))

	var notFound *TaskNotFoundError
	_, err := m.Submissions(admin(), uuid.New())
	require.ErrorAs(t, err, &notFound)
	_, err = m.TaskScores(uuid.New())
	require.ErrorAs(t, err, &notFound)
	require.ErrorAs(t, m.OverrideVerdict(admin(), uuid.New(), uuid.New(), VerdictCorrect), &notFound)

	a := f.asyncManager(t)
	require.NoError(t, a.Start(admin()))
	_, err = a.Submissions(admin(), uuid.New())
	require.ErrorAs(t, err, &notFound)
	require.ErrorAs(t, a.OverrideVerdict(admin(), uuid.New(), uuid.New(), VerdictCorrect), &notFound)
}

func TestOverrideUnknownSubmission(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)

	var notFound *SubmissionNotFoundError
	require.ErrorAs(t, m.OverrideVerdict(admin(), current.ID, uuid.New(), VerdictCorrect), &notFound)
}

func TestSubmissionPreviewLimitForParticipants(t *testing.T) {
	f := newFixture(t, RunProperties{SubmissionPreviewLimit: 1}, 1)
	m := f.syncManager(t)
	require.NoError(t, m.Start(admin()))
	require.NoError(t, m.GoTo(admin(), 0))
	require.NoError(t, m.StartTask(admin()))

	f.clock = f.clock.Add(time.Second)
	_, err := m.PostSubmission(user(f.userA), submissionFor("target"))
	require.NoError(t, err)
	f.clock = f.clock.Add(2 * time.Minute)
	_, err = m.PostSubmission(user(f.userA), submissionFor("target"))
	require.NoError(t, err)

	current, err := m.CurrentTask(admin())
	require.NoError(t, err)
	taskID := current.ID

	all, err := m.Submissions(admin(), taskID)
	require.NoError(t, err)
	require.Len(t, all, 2)

	limited, err := m.Submissions(user(f.userA), taskID)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestAsyncTeamsDriveIndependentCursors(t *testing.T) {
	f := newFixture(t, RunProperties{}, 2)
	m := f.asyncManager(t)
	require.NoError(t, m.Start(admin()))

	require.NoError(t, m.GoTo(user(f.userA), 0))
	require.NoError(t, m.StartTask(user(f.userA)))

	// team B is unaffected by team A's running task
	require.NoError(t, m.GoTo(user(f.userB), 1))
	require.NoError(t, m.StartTask(user(f.userB)))

	f.clock = f.clock.Add(10 * time.Second)
	verdict, err := m.PostSubmission(user(f.userA), submissionFor("target"))
	require.NoError(t, err)
	require.Equal(t, VerdictCorrect, verdict)

	taskA, err := m.CurrentTask(user(f.userA))
	require.NoError(t, err)
	require.Equal(t, 0, taskA.Position)
	require.Len(t, taskA.Submissions, 1)

	taskB, err := m.CurrentTask(user(f.userB))
	require.NoError(t, err)
	require.Equal(t, 1, taskB.Position)
	require.Empty(t, taskB.Submissions)
}

func TestAsyncScoresAreTeamLocal(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.asyncManager(t)
	require.NoError(t, m.Start(admin()))

	require.NoError(t, m.GoTo(user(f.userA), 0))
	require.NoError(t, m.StartTask(user(f.userA)))

	f.clock = f.clock.Add(time.Second)
	_, err := m.PostSubmission(user(f.userA), submissionFor("target"))
	require.NoError(t, err)

	task, err := m.CurrentTask(user(f.userA))
	require.NoError(t, err)
	require.Equal(t, map[uuid.UUID]float64{f.teamA.ID: 10}, task.Scores)
}

func TestAsyncUnknownUserCannotNavigate(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.asyncManager(t)
	require.NoError(t, m.Start(admin()))

	var illegalTeam *IllegalTeamError
	require.ErrorAs(t, m.GoTo(user(uuid.New()), 0), &illegalTeam)
}

func TestAsyncDeadlineEnforcementPerTeam(t *testing.T) {
	f := newFixture(t, RunProperties{}, 1)
	m := f.asyncManager(t)
	require.NoError(t, m.Start(admin()))

	require.NoError(t, m.GoTo(user(f.userA), 0))
	require.NoError(t, m.StartTask(user(f.userA)))

	f.clock = f.clock.Add(3 * time.Minute)
	require.NoError(t, m.GoTo(user(f.userB), 0))
	require.NoError(t, m.StartTask(user(f.userB)))

	// team A's window has closed, team B's has not
	require.Equal(t, 1, m.EnforceDeadlines(f.clock.Add(3*time.Minute)))

	taskA, err := m.CurrentTask(user(f.userA))
	require.NoError(t, err)
	require.Equal(t, TaskEnded, taskA.Status)

	taskB, err := m.CurrentTask(user(f.userB))
	require.NoError(t, err)
	require.Equal(t, TaskRunning, taskB.Status)
}
