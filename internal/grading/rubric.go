package grading

import (
	"fmt"

	"github.com/classline/quizcore/internal/quiz"
)

// ScoreRubric totals the points a teacher awarded against an essay
// rubric, clamping each criterion to its maximum. awarded is keyed by
// criterion index.
func ScoreRubric(rubric []quiz.Criterion, awarded map[int]float64) (float64, []string) {
	total := 0.0
	notes := make([]string, 0, len(rubric))
	for i, c := range rubric {
		v := awarded[i]
		if v < 0 {
			v = 0
		}
		if v > c.Points {
			v = c.Points
		}
		total += v
		notes = append(notes, fmt.Sprintf("%s:%.2f", c.Desc, v))
	}
	return total, notes
}
