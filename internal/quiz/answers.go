package quiz

import (
	"encoding/json"
	"fmt"
)

// Answer is the tagged union of per-type response shapes. The sealed
// marker method keeps the evaluator's type switch exhaustive.
type Answer interface{ isAnswer() }

// ChoiceAnswer selects an option by index.
type ChoiceAnswer struct {
	Index int `json:"index"`
}

// BoolAnswer answers a true/false question.
type BoolAnswer struct {
	Value bool `json:"value"`
}

// TextAnswer is free text: identification answers and essay bodies.
type TextAnswer struct {
	Text string `json:"text"`
}

// MatchAnswer maps prompt IDs to the option IDs assigned to them.
type MatchAnswer struct {
	Pairs map[string]string `json:"pairs"`
}

// LabelAnswer maps image part IDs to the text typed for each pin.
type LabelAnswer struct {
	Entries map[string]string `json:"entries"`
}

func (ChoiceAnswer) isAnswer() {}
func (BoolAnswer) isAnswer()   {}
func (TextAnswer) isAnswer()   {}
func (MatchAnswer) isAnswer()  {}
func (LabelAnswer) isAnswer()  {}

// ParseAnswer decodes a raw JSON payload into the answer shape for the
// given question type.
func ParseAnswer(t Type, data []byte) (Answer, error) {
	switch t {
	case TypeChoice:
		var a ChoiceAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decode choice answer: %w", err)
		}
		return a, nil
	case TypeTrueFalse:
		var a BoolAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decode bool answer: %w", err)
		}
		return a, nil
	case TypeIdentification, TypeEssay:
		var a TextAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decode text answer: %w", err)
		}
		return a, nil
	case TypeMatching:
		var a MatchAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decode match answer: %w", err)
		}
		return a, nil
	case TypeImageLabel:
		var a LabelAnswer
		if err := json.Unmarshal(data, &a); err != nil {
			return nil, fmt.Errorf("decode label answer: %w", err)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown question type %q", t)
	}
}

// AnswerPayload flattens an Answer into a JSON-friendly value for
// submission snapshots.
func AnswerPayload(a Answer) interface{} {
	switch v := a.(type) {
	case ChoiceAnswer:
		return v.Index
	case BoolAnswer:
		return v.Value
	case TextAnswer:
		return v.Text
	case MatchAnswer:
		return v.Pairs
	case LabelAnswer:
		return v.Entries
	default:
		return nil
	}
}
