package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classline/quizcore/internal/eventlog"
	"github.com/classline/quizcore/internal/grading"
	"github.com/classline/quizcore/internal/kvstore"
	"github.com/classline/quizcore/internal/quiz"
	"github.com/classline/quizcore/internal/shuffle"
	"github.com/classline/quizcore/internal/submission"
)

// Phase is the attempt state. Locked is terminal for the session;
// only a teacher-initiated unlock (external) clears it.
type Phase string

const (
	PhaseAnswering  Phase = "answering"
	PhaseFeedback   Phase = "feedback"
	PhaseSubmitting Phase = "submitting"
	PhaseCompleted  Phase = "completed"
	PhaseLocked     Phase = "locked"
)

var (
	ErrLocked          = errors.New("attempt is locked")
	ErrCompleted       = errors.New("attempt already completed")
	ErrNotAnswering    = errors.New("no answer expected in this state")
	ErrNotInFeedback   = errors.New("advance is only valid from feedback")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrEmptyAnswer     = errors.New("answer is empty")
	ErrUseMatchConfirm = errors.New("matching answers are assigned per pair and confirmed explicitly")
	ErrNotMatching     = errors.New("current question is not matching-type")
	ErrPreviewOnly     = errors.New("free navigation is preview-only")
	ErrOutOfRange      = errors.New("question index out of range")
)

// Machine is one student's pass through a quiz. A single mutex
// serializes user actions and integrity signals so a warning-triggered
// lock and a final answer can never interleave inconsistently.
type Machine struct {
	mu sync.Mutex

	id            string
	quiz          quiz.Quiz
	questions     []quiz.Question
	studentID     string
	classID       string
	preview       bool
	attemptNumber int
	startedAt     time.Time

	idx       int
	answers   map[int]quiz.Answer
	results   map[int]grading.Result
	score     float64
	warnings  int
	phase     Phase
	submitted bool

	eval        grading.Evaluator
	kv          kvstore.Store
	shuffler    *shuffle.Service
	store       submission.Store
	writer      *submission.Writer
	events      eventlog.Sink
	log         *slog.Logger
	maxWarnings int
	done        func(id string)
}

func (m *Machine) ID() string    { return m.id }
func (m *Machine) Preview() bool { return m.preview }

// storageKey is the "{quizID}_{studentID}" prefix shared with the
// shuffle service and warning persistence.
func (m *Machine) storageKey() string { return m.quiz.ID + "_" + m.studentID }

func warnKey(key string) string { return key + ":warnings" }

// InProgress reports whether the attempt can still accept answers or
// integrity signals.
func (m *Machine) InProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inProgressLocked()
}

func (m *Machine) inProgressLocked() bool {
	return !m.submitted && m.phase != PhaseCompleted && m.phase != PhaseLocked
}

// CurrentQuestion returns the question the pointer is on. Handlers use
// it to decode the incoming answer payload.
func (m *Machine) CurrentQuestion() quiz.Question {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.questions[m.idx]
}

// SubmitAnswer grades the current question immediately (except essay,
// which is stored for manual grading, and matching, which goes through
// AssignMatch/ConfirmMatching). A graded question cannot be
// re-answered.
func (m *Machine) SubmitAnswer(ctx context.Context, ans quiz.Answer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseLocked:
		return ErrLocked
	case PhaseCompleted, PhaseSubmitting:
		return ErrCompleted
	}
	q := m.questions[m.idx]

	if m.preview {
		// Preview is ungraded; remember the answer for display only.
		m.answers[m.idx] = ans
		return nil
	}
	if m.phase != PhaseAnswering {
		return ErrNotAnswering
	}
	if q.Type == quiz.TypeMatching {
		return ErrUseMatchConfirm
	}
	if _, answered := m.results[m.idx]; answered {
		return ErrAlreadyAnswered
	}
	if t, ok := ans.(quiz.TextAnswer); ok && strings.TrimSpace(t.Text) == "" {
		return ErrEmptyAnswer
	}

	res := m.eval.Evaluate(q, ans)
	m.answers[m.idx] = ans
	m.results[m.idx] = res
	m.score += res.Points
	m.phase = PhaseFeedback
	return nil
}

// AssignMatch assigns one prompt->option pair. Matching answers stay
// editable until ConfirmMatching.
func (m *Machine) AssignMatch(ctx context.Context, promptID, optionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseLocked:
		return ErrLocked
	case PhaseCompleted, PhaseSubmitting:
		return ErrCompleted
	}
	q := m.questions[m.idx]
	if q.Type != quiz.TypeMatching {
		return ErrNotMatching
	}
	if _, confirmed := m.results[m.idx]; confirmed {
		return ErrAlreadyAnswered
	}
	if !hasMatchItem(q.MatchPrompts, promptID) {
		return fmt.Errorf("unknown prompt %q", promptID)
	}
	if optionID != "" && !hasMatchItem(q.MatchOptions, optionID) {
		return fmt.Errorf("unknown option %q", optionID)
	}

	draft, _ := m.answers[m.idx].(quiz.MatchAnswer)
	if draft.Pairs == nil {
		draft.Pairs = map[string]string{}
	}
	if optionID == "" {
		delete(draft.Pairs, promptID)
	} else {
		draft.Pairs[promptID] = optionID
	}
	m.answers[m.idx] = draft
	return nil
}

// ConfirmMatching grades the accumulated pairs of the current
// matching question with partial credit.
func (m *Machine) ConfirmMatching(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseLocked:
		return ErrLocked
	case PhaseCompleted, PhaseSubmitting:
		return ErrCompleted
	}
	q := m.questions[m.idx]
	if q.Type != quiz.TypeMatching {
		return ErrNotMatching
	}
	if m.preview {
		return nil
	}
	if _, confirmed := m.results[m.idx]; confirmed {
		return ErrAlreadyAnswered
	}

	draft, _ := m.answers[m.idx].(quiz.MatchAnswer)
	res := m.eval.Evaluate(q, draft)
	m.answers[m.idx] = draft
	m.results[m.idx] = res
	m.score += res.Points
	m.phase = PhaseFeedback
	return nil
}

// Advance moves from feedback to the next question, or submits after
// the last one.
func (m *Machine) Advance(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch m.phase {
	case PhaseLocked:
		return ErrLocked
	case PhaseCompleted, PhaseSubmitting:
		return ErrCompleted
	}
	if m.preview {
		if m.idx < len(m.questions)-1 {
			m.idx++
		}
		return nil
	}
	if m.phase != PhaseFeedback {
		return ErrNotInFeedback
	}
	if m.idx == len(m.questions)-1 {
		return m.submitLocked(ctx)
	}
	m.idx++
	m.phase = PhaseAnswering
	return nil
}

// Navigate jumps to an arbitrary question. Teacher preview only; the
// graded flow is strictly forward.
func (m *Machine) Navigate(ctx context.Context, target int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.preview {
		return ErrPreviewOnly
	}
	if target < 0 || target >= len(m.questions) {
		return ErrOutOfRange
	}
	m.idx = target
	return nil
}

// Warn records one integrity warning, persisting the count
// immediately. Reaching the configured maximum writes a lock record
// and makes the attempt terminal.
func (m *Machine) Warn(ctx context.Context, reason string) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.preview || !m.inProgressLocked() {
		return m.warnings, m.phase == PhaseLocked, nil
	}

	m.warnings++
	if err := m.kv.Set(ctx, warnKey(m.storageKey()), strconv.Itoa(m.warnings)); err != nil {
		m.log.Warn("persist warning count", "key", m.storageKey(), "err", err)
	}
	m.appendEvent(ctx, eventlog.TypeWarningRaised, map[string]interface{}{
		"count": m.warnings, "reason": reason,
	})
	m.log.Info("integrity warning", "attempt_id", m.id, "count", m.warnings, "reason", reason)

	if m.warnings < m.maxWarnings {
		return m.warnings, false, nil
	}

	lock := submission.Lock{
		QuizID:    m.quiz.ID,
		StudentID: m.studentID,
		Reason:    reason,
		CreatedAt: time.Now().Unix(),
	}
	if err := m.store.WriteLock(ctx, lock); err != nil {
		// Best-effort: the session still locks locally.
		m.log.Error("persist lock record", "quiz_id", m.quiz.ID, "student_id", m.studentID, "err", err)
	}
	m.phase = PhaseLocked
	m.appendEvent(ctx, eventlog.TypeAttemptLocked, map[string]interface{}{"warnings": m.warnings})
	if m.done != nil {
		m.done(m.id)
	}
	return m.warnings, true, nil
}

// Close handles an explicit close of the quiz view. While the attempt
// is in progress it counts as a warning; afterwards it is a no-op.
func (m *Machine) Close(ctx context.Context) (int, bool, error) {
	if m.preview || !m.InProgress() {
		return 0, false, nil
	}
	return m.Warn(ctx, "quiz closed mid-attempt")
}

// Submit finishes the attempt from the user's manual action.
func (m *Machine) Submit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.submitLocked(ctx)
}

// ForceSubmit persists the attempt-so-far. Used when a native shell
// backgrounds the app and further monitoring is impossible.
func (m *Machine) ForceSubmit(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.preview {
		return nil
	}
	return m.submitLocked(ctx)
}

// submitLocked writes exactly one submission record. The idempotency
// flag is flipped synchronously before the write begins, so a race
// between manual finish and a forced background submit produces a
// single record; the loser is a silent no-op.
func (m *Machine) submitLocked(ctx context.Context) error {
	if m.submitted {
		return nil
	}
	if m.phase == PhaseLocked {
		return ErrLocked
	}
	if m.preview {
		return nil
	}
	m.submitted = true
	m.phase = PhaseSubmitting

	score := 0.0
	status := submission.StatusCompleted
	answers := map[string]interface{}{}
	for i, q := range m.questions {
		if res, ok := m.results[i]; ok {
			score += res.Points
			if res.NeedsManual {
				status = submission.StatusPendingReview
			}
		}
		if ans, ok := m.answers[i]; ok {
			answers[q.ID] = quiz.AnswerPayload(ans)
		}
	}
	m.score = score

	sub := submission.Submission{
		ID:            uuid.NewString(),
		QuizID:        m.quiz.ID,
		QuizTitle:     m.quiz.Title,
		StudentID:     m.studentID,
		ClassID:       m.classID,
		Score:         score,
		TotalItems:    len(m.questions),
		AttemptNumber: m.attemptNumber,
		Answers:       answers,
		Status:        status,
		SubmittedAt:   time.Now().Unix(),
	}
	if err := m.writer.Write(ctx, sub); err != nil {
		// Score is still shown from local state; the write already
		// retried and logged.
		m.log.Warn("submission not durable", "attempt_id", m.id, "err", err)
	}

	key := m.storageKey()
	if err := m.shuffler.Clear(ctx, key); err != nil {
		m.log.Warn("clear shuffle order", "key", key, "err", err)
	}
	if err := m.kv.Remove(ctx, warnKey(key)); err != nil {
		m.log.Warn("clear warning count", "key", key, "err", err)
	}
	m.appendEvent(ctx, eventlog.TypeAttemptSubmitted, map[string]interface{}{
		"score": score, "total_items": len(m.questions), "attempt_number": m.attemptNumber,
	})

	m.phase = PhaseCompleted
	if m.done != nil {
		m.done(m.id)
	}
	return nil
}

func (m *Machine) appendEvent(ctx context.Context, typ string, data map[string]interface{}) {
	buf, _ := json.Marshal(data)
	if err := m.events.Append(ctx, eventlog.Event{Type: typ, Key: m.id, DataJSON: string(buf)}); err != nil {
		m.log.Warn("append event", "type", typ, "err", err)
	}
}

func hasMatchItem(items []quiz.MatchItem, id string) bool {
	for _, it := range items {
		if it.ID == id {
			return true
		}
	}
	return false
}
