package attempt

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classline/quizcore/internal/quiz"
	"github.com/classline/quizcore/internal/submission"
)

func TestStart_AttemptLimit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := twoChoiceQuiz()

	now := time.Now().Unix()
	for i := 1; i <= 3; i++ {
		require.NoError(t, f.store.WriteSubmission(ctx, submission.Submission{
			ID: "s" + string(rune('0'+i)), QuizID: z.ID, StudentID: "stu1", ClassID: "class1",
			Score: float64(i), TotalItems: 2, AttemptNumber: i,
			Status: submission.StatusCompleted, SubmittedAt: now + int64(i),
		}))
	}

	_, err := f.svc.Start(ctx, z, "stu1", "class1")
	var limitErr *NoAttemptsLeftError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, 3, limitErr.Attempts)
	assert.Equal(t, 3.0, limitErr.LatestScore, "latest score, not best")
	assert.Equal(t, 2, limitErr.TotalItems)

	// a different student on the same quiz is unaffected
	_, err = f.svc.Start(ctx, z, "stu2", "class1")
	require.NoError(t, err)
}

func TestStart_AttemptNumberIncrements(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := twoChoiceQuiz()

	require.NoError(t, f.store.WriteSubmission(ctx, submission.Submission{
		ID: "s1", QuizID: z.ID, StudentID: "stu1", ClassID: "class1",
		AttemptNumber: 1, Status: submission.StatusCompleted, SubmittedAt: time.Now().Unix(),
	}))

	m, err := f.svc.Start(ctx, z, "stu1", "class1")
	require.NoError(t, err)
	assert.Equal(t, 2, m.attemptNumber)
}

func TestStart_LockBlocks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := twoChoiceQuiz()

	require.NoError(t, f.store.WriteLock(ctx, submission.Lock{
		QuizID: z.ID, StudentID: "stu1", Reason: "window focus lost", CreatedAt: time.Now().Unix(),
	}))

	_, err := f.svc.Start(ctx, z, "stu1", "class1")
	assert.ErrorIs(t, err, ErrLocked)

	// teacher unlock makes the quiz startable again
	require.NoError(t, f.store.ClearLock(ctx, z.ID, "stu1"))
	_, err = f.svc.Start(ctx, z, "stu1", "class1")
	require.NoError(t, err)
}

func TestStart_ResumeRestoresOrderAndWarnings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := twoChoiceQuiz()

	// state left behind by an interrupted session
	f.seedOrder(t, "quiz1_stu1", `["q2","q1"]`)
	require.NoError(t, f.kv.Set(ctx, "quiz1_stu1:warnings", "2"))

	m, err := f.svc.Start(ctx, z, "stu1", "class1")
	require.NoError(t, err)

	assert.Equal(t, "q2", m.CurrentQuestion().ID, "persisted order wins over a reshuffle")
	assert.Equal(t, 2, m.warnings)

	// one more strike finishes the escalation carried over from the
	// previous session
	_, locked, err := m.Warn(ctx, "window focus lost")
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestStart_WarningCountAtLimitLocksImmediately(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	z := twoChoiceQuiz()

	// the count reached the limit but the crash beat the lock write
	require.NoError(t, f.kv.Set(ctx, "quiz1_stu1:warnings", "3"))

	_, err := f.svc.Start(ctx, z, "stu1", "class1")
	assert.ErrorIs(t, err, ErrLocked)

	lock, err := f.store.ReadLock(ctx, z.ID, "stu1")
	require.NoError(t, err)
	require.NotNil(t, lock)
	assert.Equal(t, "warning limit reached", lock.Reason)
}

func TestService_MonitorLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedOrder(t, "quiz1_stu1", `["q1","q2"]`)

	m, err := f.svc.Start(ctx, twoChoiceQuiz(), "stu1", "class1")
	require.NoError(t, err)
	_, ok := f.svc.Monitor(m.ID())
	assert.True(t, ok)

	// preview attempts get no monitor
	p, err := f.svc.Start(ctx, twoChoiceQuiz(), "teach1", "")
	require.NoError(t, err)
	_, ok = f.svc.Monitor(p.ID())
	assert.False(t, ok)

	// the monitor is evicted together with the machine
	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 0}))
	require.NoError(t, m.Advance(ctx))
	require.NoError(t, m.SubmitAnswer(ctx, quiz.ChoiceAnswer{Index: 1}))
	require.NoError(t, m.Advance(ctx))
	_, ok = f.svc.Monitor(m.ID())
	assert.False(t, ok)
}
