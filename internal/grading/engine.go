package grading

import (
	"strings"

	"github.com/classline/quizcore/internal/quiz"
)

// Result is the outcome of evaluating a single response.
type Result struct {
	Correct      bool    `json:"correct"`
	CorrectCount int     `json:"correct_count"`
	Total        int     `json:"total"`
	Points       float64 `json:"points"`
	MaxPoints    float64 `json:"max_points"`
	NeedsManual  bool    `json:"needs_manual"` // essay: teacher grades later
}

// Strategy evaluates one question type. Strategies are total: a nil,
// empty or mistyped answer scores zero credit, never panics.
type Strategy interface {
	Evaluate(q quiz.Question, ans quiz.Answer) Result
}

// Evaluator routes by question type to the correct Strategy.
type Evaluator interface {
	Evaluate(q quiz.Question, ans quiz.Answer) Result
}

type defaultEvaluator struct {
	strategies map[quiz.Type]Strategy
}

func (e *defaultEvaluator) Evaluate(q quiz.Question, ans quiz.Answer) Result {
	s, ok := e.strategies[q.Type]
	if !ok {
		return Result{MaxPoints: q.MaxPoints(), NeedsManual: true}
	}
	return s.Evaluate(q, ans)
}

// NewEvaluator installs the built-in strategies.
func NewEvaluator() Evaluator {
	return &defaultEvaluator{
		strategies: map[quiz.Type]Strategy{
			quiz.TypeChoice:         choiceStrategy{},
			quiz.TypeTrueFalse:      trueFalseStrategy{},
			quiz.TypeIdentification: identificationStrategy{},
			quiz.TypeMatching:       matchingStrategy{},
			quiz.TypeImageLabel:     imageLabelStrategy{},
			quiz.TypeEssay:          essayStrategy{},
		},
	}
}

type choiceStrategy struct{}

func (choiceStrategy) Evaluate(q quiz.Question, ans quiz.Answer) Result {
	res := Result{MaxPoints: q.MaxPoints(), Total: 1}
	a, ok := ans.(quiz.ChoiceAnswer)
	if !ok || q.CorrectOption == nil {
		return res
	}
	if a.Index == *q.CorrectOption {
		res.Correct = true
		res.CorrectCount = 1
		res.Points = res.MaxPoints
	}
	return res
}

type trueFalseStrategy struct{}

func (trueFalseStrategy) Evaluate(q quiz.Question, ans quiz.Answer) Result {
	res := Result{MaxPoints: q.MaxPoints(), Total: 1}
	a, ok := ans.(quiz.BoolAnswer)
	if !ok || q.CorrectBool == nil {
		return res
	}
	if a.Value == *q.CorrectBool {
		res.Correct = true
		res.CorrectCount = 1
		res.Points = res.MaxPoints
	}
	return res
}

type identificationStrategy struct{}

func (identificationStrategy) Evaluate(q quiz.Question, ans quiz.Answer) Result {
	res := Result{MaxPoints: q.MaxPoints(), Total: 1}
	a, ok := ans.(quiz.TextAnswer)
	if !ok || strings.TrimSpace(a.Text) == "" || q.CorrectText == "" {
		return res
	}
	if Normalize(a.Text) == Normalize(q.CorrectText) {
		res.Correct = true
		res.CorrectCount = 1
		res.Points = res.MaxPoints
	}
	return res
}

// matchingStrategy awards partial credit: one point per correctly
// matched prompt, never all-or-nothing.
type matchingStrategy struct{}

func (matchingStrategy) Evaluate(q quiz.Question, ans quiz.Answer) Result {
	res := Result{MaxPoints: q.MaxPoints(), Total: len(q.MatchPrompts)}
	a, ok := ans.(quiz.MatchAnswer)
	if !ok || len(q.MatchPrompts) == 0 || q.MatchKey == nil {
		return res
	}
	for _, p := range q.MatchPrompts {
		want, hasKey := q.MatchKey[p.ID]
		if !hasKey {
			continue
		}
		if got, assigned := a.Pairs[p.ID]; assigned && got == want {
			res.CorrectCount++
		}
	}
	res.Points = float64(res.CorrectCount)
	res.Correct = res.Total > 0 && res.CorrectCount == res.Total
	return res
}

// imageLabelStrategy compares each typed label case-insensitively
// after trimming; one point per correct part.
type imageLabelStrategy struct{}

func (imageLabelStrategy) Evaluate(q quiz.Question, ans quiz.Answer) Result {
	res := Result{MaxPoints: q.MaxPoints(), Total: len(q.Parts)}
	a, ok := ans.(quiz.LabelAnswer)
	if !ok || len(q.Parts) == 0 {
		return res
	}
	for _, p := range q.Parts {
		got, typed := a.Entries[p.ID]
		if !typed {
			continue
		}
		want := strings.TrimSpace(p.Answer)
		if want != "" && strings.EqualFold(strings.TrimSpace(got), want) {
			res.CorrectCount++
		}
	}
	res.Points = float64(res.CorrectCount)
	res.Correct = res.Total > 0 && res.CorrectCount == res.Total
	return res
}

type essayStrategy struct{}

func (essayStrategy) Evaluate(q quiz.Question, _ quiz.Answer) Result {
	return Result{MaxPoints: q.MaxPoints(), NeedsManual: true}
}
