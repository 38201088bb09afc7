package attempt

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classline/quizcore/internal/eventlog"
	"github.com/classline/quizcore/internal/kvstore"
	"github.com/classline/quizcore/internal/quiz"
	"github.com/classline/quizcore/internal/submission"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intp(i int) *int { return &i }

// twoChoiceQuiz is the smallest gradable quiz: q1 expects option 0, q2
// expects option 1.
func twoChoiceQuiz() quiz.Quiz {
	return quiz.Quiz{
		ID:    "quiz1",
		Title: "Basics",
		Questions: []quiz.Question{
			{ID: "q1", Type: quiz.TypeChoice, Options: []string{"A", "B"}, CorrectOption: intp(0), Points: 1},
			{ID: "q2", Type: quiz.TypeChoice, Options: []string{"A", "B"}, CorrectOption: intp(1), Points: 1},
		},
	}
}

type fixture struct {
	svc   *Service
	kv    *kvstore.Memory
	store *submission.MemoryStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv := kvstore.NewMemory()
	store := submission.NewMemoryStore()
	return &fixture{
		svc:   NewService(kv, store, eventlog.Nop{}, testLogger(), 3, 3),
		kv:    kv,
		store: store,
	}
}

// seedOrder pins the shuffled order so tests can address questions by
// position.
func (f *fixture) seedOrder(t *testing.T, key, orderJSON string) {
	t.Helper()
	require.NoError(t, f.kv.Set(context.Background(), key+":order", orderJSON))
}

func (f *fixture) start(t *testing.T, z quiz.Quiz) *Machine {
	t.Helper()
	m, err := f.svc.Start(context.Background(), z, "stu1", "class1")
	require.NoError(t, err)
	return m
}

func TestMachine_FullAttempt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "quiz1_stu1", `["q1","q2"]`)
	m := f.start(t, twoChoiceQuiz())

	assert.Equal(t, 1, m.attemptNumber)
	assert.Equal(t, "q1", m.CurrentQuestion().ID)

	// q1 right
	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 0}))
	require.NoError(t, m.Advance(ctx))

	// q2 wrong; advance past the last question submits
	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 0}))
	require.NoError(t, m.Advance(ctx))

	subs, err := f.store.ListSubmissions(ctx, submission.ListOpts{QuizID: "quiz1"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, 1.0, subs[0].Score)
	assert.Equal(t, 2, subs[0].TotalItems)
	assert.Equal(t, 1, subs[0].AttemptNumber)
	assert.Equal(t, submission.StatusCompleted, subs[0].Status)
	assert.Contains(t, subs[0].Answers, "q1")
	assert.Contains(t, subs[0].Answers, "q2")

	// per-student state is cleared on submit
	_, ok, err := f.kv.Get(ctx, "quiz1_stu1:order")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = f.kv.Get(ctx, "quiz1_stu1:warnings")
	require.NoError(t, err)
	assert.False(t, ok)

	// terminal attempts leave the registry
	_, alive := f.svc.Get(m.ID())
	assert.False(t, alive)
}

func TestMachine_SubmitIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "quiz1_stu1", `["q1","q2"]`)
	m := f.start(t, twoChoiceQuiz())

	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 0}))
	require.NoError(t, m.Advance(ctx))
	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 1}))

	require.NoError(t, m.Submit(ctx))
	require.NoError(t, m.Submit(ctx))
	require.NoError(t, m.ForceSubmit(ctx))

	subs, err := f.store.ListSubmissions(ctx, submission.ListOpts{QuizID: "quiz1"})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Equal(t, 2.0, subs[0].Score)
}

func TestMachine_ForwardOnly(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "quiz1_stu1", `["q1","q2"]`)
	m := f.start(t, twoChoiceQuiz())

	// advance before answering
	assert.ErrorIs(t, m.Advance(ctx), ErrNotInFeedback)

	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 0}))

	// answering again while in feedback
	assert.ErrorIs(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 1}), ErrNotAnswering)

	// free navigation is preview-only
	assert.ErrorIs(t, m.Navigate(ctx, 0), ErrPreviewOnly)
}

func TestMachine_EmptyTextAnswerRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := quiz.Quiz{ID: "quiz1", Title: "T", Questions: []quiz.Question{
		{ID: "q1", Type: quiz.TypeIdentification, CorrectText: "Paris", Points: 1},
	}}
	f.seedOrder(t, "quiz1_stu1", `["q1"]`)
	m := f.start(t, z)

	assert.ErrorIs(t, m.SubmitAnswer(ctx, quiz.TextAnswer{Text: "   "}), ErrEmptyAnswer)

	// the attempt is still answerable afterwards
	require.NoError(t, m.SubmitAnswer(ctx, quiz.TextAnswer{Text: "paris"}))
	assert.Equal(t, PhaseFeedback, m.phase)
}

func TestMachine_MatchingFlow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := quiz.Quiz{ID: "quiz1", Title: "T", Questions: []quiz.Question{
		{
			ID: "q1", Type: quiz.TypeMatching,
			MatchPrompts: []quiz.MatchItem{{ID: "p1"}, {ID: "p2"}},
			MatchOptions: []quiz.MatchItem{{ID: "o1"}, {ID: "o2"}},
			MatchKey:     map[string]string{"p1": "o1", "p2": "o2"},
		},
	}}
	z.Questions[0].Points = z.Questions[0].MaxPoints()
	f.seedOrder(t, "quiz1_stu1", `["q1"]`)
	m := f.start(t, z)

	// one-shot answers are rejected for matching
	assert.ErrorIs(t, m.SubmitAnswer(ctx, quiz.MatchAnswer{}), ErrUseMatchConfirm)

	require.NoError(t, m.AssignMatch(ctx, "p1", "o2"))
	require.NoError(t, m.AssignMatch(ctx, "p2", "o2"))
	// re-edit before confirming
	require.NoError(t, m.AssignMatch(ctx, "p1", "o1"))
	// unassign and restore
	require.NoError(t, m.AssignMatch(ctx, "p2", ""))
	require.NoError(t, m.AssignMatch(ctx, "p2", "o1"))

	assert.Error(t, m.AssignMatch(ctx, "nope", "o1"))
	assert.Error(t, m.AssignMatch(ctx, "p1", "nope"))

	require.NoError(t, m.ConfirmMatching(ctx))
	res := m.results[0]
	assert.Equal(t, 1, res.CorrectCount)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1.0, m.score)

	// confirmed answers are frozen
	assert.ErrorIs(t, m.AssignMatch(ctx, "p1", "o2"), ErrAlreadyAnswered)
	assert.ErrorIs(t, m.ConfirmMatching(ctx), ErrAlreadyAnswered)
}

func TestMachine_EssayGoesToPendingReview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := quiz.Quiz{ID: "quiz1", Title: "T", Questions: []quiz.Question{
		{ID: "q1", Type: quiz.TypeEssay, Prompt: "Discuss.",
			Rubric: []quiz.Criterion{{Desc: "content", Points: 5}}},
	}}
	f.seedOrder(t, "quiz1_stu1", `["q1"]`)
	m := f.start(t, z)

	require.NoError(t, m.SubmitAnswer(ctx, quiz.TextAnswer{Text: "my essay"}))
	require.NoError(t, m.Advance(ctx))

	subs, err := f.store.ListSubmissions(ctx, submission.ListOpts{QuizID: "quiz1"})
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, submission.StatusPendingReview, subs[0].Status)
	assert.Equal(t, 0.0, subs[0].Score)
}

func TestMachine_ThreeWarningsLock(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "quiz1_stu1", `["q1","q2"]`)
	m := f.start(t, twoChoiceQuiz())

	count, locked, err := m.Warn(ctx, "window focus lost")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, locked)

	// count survives in the kv store after every warning
	raw, ok, err := f.kv.Get(ctx, "quiz1_stu1:warnings")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "1", raw)

	_, locked, err = m.Warn(ctx, "window focus lost")
	require.NoError(t, err)
	assert.False(t, locked)

	count, locked, err = m.Warn(ctx, "window focus lost")
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.True(t, locked)

	lock, err := f.store.ReadLock(ctx, "quiz1", "stu1")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "window focus lost", lock.Reason)

	// everything after the lock is rejected or a no-op
	assert.ErrorIs(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 0}), ErrLocked)
	assert.ErrorIs(t, m.Advance(ctx), ErrLocked)
	assert.ErrorIs(t, m.Submit(ctx), ErrLocked)

	count, locked, err = m.Warn(ctx, "window focus lost")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "warnings stop counting once locked")
	assert.True(t, locked)

	// no submission record for a locked attempt
	subs, err := f.store.ListSubmissions(ctx, submission.ListOpts{QuizID: "quiz1"})
	require.NoError(t, err)
	assert.Empty(t, subs)

	_, alive := f.svc.Get(m.ID())
	assert.False(t, alive)
}

func TestMachine_CloseCountsAsWarning(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "quiz1_stu1", `["q1","q2"]`)
	m := f.start(t, twoChoiceQuiz())

	count, locked, err := m.Close(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.False(t, locked)

	// close after completion is a no-op
	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 0}))
	require.NoError(t, m.Advance(ctx))
	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 1}))
	require.NoError(t, m.Submit(ctx))

	count, locked, err = m.Close(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.False(t, locked)
}

func TestMachine_Preview(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	m, err := f.svc.Start(ctx, twoChoiceQuiz(), "teach1", "")
	require.NoError(t, err)
	assert.True(t, m.Preview())

	// authored order, no shuffle persisted
	assert.Equal(t, "q1", m.CurrentQuestion().ID)
	_, ok, err := f.kv.Get(ctx, "quiz1_teach1:order")
	require.NoError(t, err)
	assert.False(t, ok)

	// answers are stored for display but never graded
	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 1}))
	assert.Empty(t, m.results)
	assert.Zero(t, m.score)

	// free navigation in both directions
	require.NoError(t, m.Navigate(ctx, 1))
	assert.Equal(t, "q2", m.CurrentQuestion().ID)
	require.NoError(t, m.Navigate(ctx, 0))
	assert.ErrorIs(t, m.Navigate(ctx, 5), ErrOutOfRange)

	// warnings and submits never touch persistence
	count, locked, err := m.Warn(ctx, "window focus lost")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.False(t, locked)

	require.NoError(t, m.Submit(ctx))
	subs, err := f.store.ListSubmissions(ctx, submission.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, subs)
}
