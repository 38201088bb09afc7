package attempt

import (
	"github.com/classline/quizcore/internal/grading"
	"github.com/classline/quizcore/internal/quiz"
)

// Snapshot is the state exposed to the presentation layer.
type Snapshot struct {
	AttemptID     string          `json:"attempt_id"`
	QuizID        string          `json:"quiz_id"`
	QuizTitle     string          `json:"quiz_title"`
	Language      string          `json:"language,omitempty"`
	Phase         Phase           `json:"phase"`
	Index         int             `json:"index"`
	TotalItems    int             `json:"total_items"`
	Question      *quiz.Question  `json:"question,omitempty"`
	Answer        interface{}     `json:"answer,omitempty"`
	Result        *grading.Result `json:"result,omitempty"`
	Score         float64         `json:"score"`
	Warnings      int             `json:"warnings"`
	AttemptNumber int             `json:"attempt_number,omitempty"`
	Preview       bool            `json:"preview,omitempty"`
}

// Snapshot returns the current state. In graded mode the question is
// served with answer keys stripped; preview serves the full question
// (answers pre-revealed).
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := Snapshot{
		AttemptID:     m.id,
		QuizID:        m.quiz.ID,
		QuizTitle:     m.quiz.Title,
		Language:      m.quiz.Language,
		Phase:         m.phase,
		Index:         m.idx,
		TotalItems:    len(m.questions),
		Score:         m.score,
		Warnings:      m.warnings,
		AttemptNumber: m.attemptNumber,
		Preview:       m.preview,
	}
	if m.phase == PhaseLocked {
		return snap
	}

	q := m.questions[m.idx]
	if !m.preview {
		q = q.StripKey()
	}
	snap.Question = &q
	if ans, ok := m.answers[m.idx]; ok {
		snap.Answer = quiz.AnswerPayload(ans)
	}
	if res, ok := m.results[m.idx]; ok {
		snap.Result = &res
	}
	return snap
}
