package quiz

// Type enumerates the supported question kinds.
type Type string

const (
	TypeChoice         Type = "choice"
	TypeTrueFalse      Type = "true_false"
	TypeIdentification Type = "identification"
	TypeMatching       Type = "matching"
	TypeImageLabel     Type = "image_label"
	TypeEssay          Type = "essay"
)

// MatchItem is one side of a matching pair (prompt or option).
type MatchItem struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// LabelPart is a numbered pin on an image-labeling question. X and Y
// are percentages (0-100) relative to the image.
type LabelPart struct {
	ID     string  `json:"id"`
	Number int     `json:"number"`
	Answer string  `json:"answer,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

// Criterion is one row of an essay rubric.
type Criterion struct {
	Desc   string  `json:"criteria"`
	Points float64 `json:"points"`
}

type Question struct {
	ID     string  `json:"id"`
	Type   Type    `json:"type"`
	Prompt string  `json:"prompt"`
	Points float64 `json:"points,omitempty"`

	// choice
	Options       []string `json:"options,omitempty"`
	CorrectOption *int     `json:"correct_option,omitempty"`

	// true_false
	CorrectBool *bool `json:"correct_bool,omitempty"`

	// identification
	CorrectText string `json:"correct_text,omitempty"`

	// matching
	MatchPrompts []MatchItem       `json:"match_prompts,omitempty"`
	MatchOptions []MatchItem       `json:"match_options,omitempty"`
	MatchKey     map[string]string `json:"match_key,omitempty"`

	// image_label
	ImageRef string      `json:"image_ref,omitempty"`
	Parts    []LabelPart `json:"parts,omitempty"`

	// essay
	Rubric []Criterion `json:"rubric,omitempty"`
}

// MaxPoints returns the question's point value. For matching,
// image-labeling and essay questions the value is derived from the
// sub-items and any stored Points field is ignored.
func (q Question) MaxPoints() float64 {
	switch q.Type {
	case TypeMatching:
		return float64(len(q.MatchPrompts))
	case TypeImageLabel:
		return float64(len(q.Parts))
	case TypeEssay:
		total := 0.0
		for _, c := range q.Rubric {
			total += c.Points
		}
		return total
	default:
		if q.Points > 0 {
			return q.Points
		}
		return 1
	}
}

// StripKey returns a copy of the question with answer-key fields
// removed, safe to serve to a student mid-attempt.
func (q Question) StripKey() Question {
	q.CorrectOption = nil
	q.CorrectBool = nil
	q.CorrectText = ""
	q.MatchKey = nil
	parts := make([]LabelPart, len(q.Parts))
	for i, p := range q.Parts {
		p.Answer = ""
		parts[i] = p
	}
	if q.Parts != nil {
		q.Parts = parts
	}
	return q
}

type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Language  string     `json:"language,omitempty"`
	Questions []Question `json:"questions"`
	CreatedAt int64      `json:"created_at,omitempty"`
}

// TotalItems is the number of questions, the denominator shown on a
// submission (score out of N).
func (z Quiz) TotalItems() int { return len(z.Questions) }

// StudentView returns a copy with all answer keys stripped.
func (z Quiz) StudentView() Quiz {
	out := z
	out.Questions = make([]Question, len(z.Questions))
	for i, q := range z.Questions {
		out.Questions[i] = q.StripKey()
	}
	return out
}
