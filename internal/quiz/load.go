package quiz

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// LoadQuiz parses JSON, validates it and assigns IDs where missing.
// Derived point values (matching, image_label, essay) are recomputed
// from their sub-items regardless of what the payload carried.
func LoadQuiz(data []byte) (*Quiz, error) {
	z := &Quiz{}
	if err := json.Unmarshal(data, z); err != nil {
		return nil, err
	}
	if err := validate(z); err != nil {
		return nil, fmt.Errorf("can not load quiz: %w", err)
	}
	if z.ID == "" {
		z.ID = uuid.NewString()
	}
	for i := range z.Questions {
		q := &z.Questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		q.Points = q.MaxPoints()
	}
	return z, nil
}

func validate(z *Quiz) error {
	if z.Title == "" {
		return fmt.Errorf("missing field title")
	}
	if len(z.Questions) == 0 {
		return fmt.Errorf("need at least one question")
	}
	for i, q := range z.Questions {
		if q.Prompt == "" && q.Type != TypeImageLabel {
			return fmt.Errorf("missing prompt of question %d", i)
		}
		switch q.Type {
		case TypeChoice:
			if len(q.Options) < 2 {
				return fmt.Errorf("question %d needs at least two options", i)
			}
			if q.CorrectOption == nil {
				return fmt.Errorf("missing correct option of question %d", i)
			}
			if *q.CorrectOption < 0 || *q.CorrectOption >= len(q.Options) {
				return fmt.Errorf("correct option of question %d is out of range", i)
			}
		case TypeTrueFalse:
			if q.CorrectBool == nil {
				return fmt.Errorf("missing correct answer of question %d", i)
			}
		case TypeIdentification:
			if q.CorrectText == "" {
				return fmt.Errorf("missing correct answer of question %d", i)
			}
		case TypeMatching:
			if len(q.MatchPrompts) == 0 || len(q.MatchOptions) == 0 {
				return fmt.Errorf("question %d needs matching prompts and options", i)
			}
			for _, p := range q.MatchPrompts {
				if _, ok := q.MatchKey[p.ID]; !ok {
					return fmt.Errorf("question %d has no key for prompt %s", i, p.ID)
				}
			}
		case TypeImageLabel:
			if len(q.Parts) == 0 {
				return fmt.Errorf("question %d needs labeled parts", i)
			}
		case TypeEssay:
			if len(q.Rubric) == 0 {
				return fmt.Errorf("question %d needs a rubric", i)
			}
		default:
			return fmt.Errorf("unknown type %q of question %d", q.Type, i)
		}
	}
	return nil
}
