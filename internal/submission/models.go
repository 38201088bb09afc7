package submission

import "context"

const (
	StatusCompleted     = "completed"
	StatusPendingReview = "pending_review" // essays await manual grading
)

// Submission is the persisted, scored record of a completed attempt.
// Append-only: one record per attempt.
type Submission struct {
	ID            string                 `json:"id"`
	QuizID        string                 `json:"quiz_id"`
	QuizTitle     string                 `json:"quiz_title"`
	StudentID     string                 `json:"student_id"`
	ClassID       string                 `json:"class_id"`
	Score         float64                `json:"score"`
	TotalItems    int                    `json:"total_items"`
	AttemptNumber int                    `json:"attempt_number"`
	Answers       map[string]interface{} `json:"answers"` // questionID -> answer snapshot
	Status        string                 `json:"status"`
	SubmittedAt   int64                  `json:"submitted_at"`
}

// Lock blocks all future attempts for (quiz, student) once the warning
// limit is reached. It survives any client-side state clearing.
type Lock struct {
	QuizID    string `json:"quiz_id"`
	StudentID string `json:"student_id"`
	Reason    string `json:"reason,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

type ListOpts struct {
	QuizID    string
	StudentID string
	ClassID   string
	Limit     int
	Offset    int
}

// Store is the persistence collaborator for submissions and locks.
type Store interface {
	ListSubmissions(ctx context.Context, opts ListOpts) ([]Submission, error)
	WriteSubmission(ctx context.Context, s Submission) error
	ApplyManualGrade(ctx context.Context, submissionID string, points float64) (Submission, error)
	ReadLock(ctx context.Context, quizID, studentID string) (*Lock, error)
	WriteLock(ctx context.Context, l Lock) error
	ClearLock(ctx context.Context, quizID, studentID string) error
}
