package submission

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("submission not found")

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) ListSubmissions(ctx context.Context, opts ListOpts) ([]Submission, error) {
	q := `SELECT id,quiz_id,quiz_title,student_id,class_id,score,total_items,attempt_number,answers_json,status,submitted_at
		FROM submissions WHERE 1=1`
	args := []interface{}{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		q += fmt.Sprintf(" AND %s=$%d", col, len(args))
	}
	if opts.QuizID != "" {
		add("quiz_id", opts.QuizID)
	}
	if opts.StudentID != "" {
		add("student_id", opts.StudentID)
	}
	if opts.ClassID != "" {
		add("class_id", opts.ClassID)
	}
	q += ` ORDER BY submitted_at DESC, attempt_number DESC`
	limit := opts.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	args = append(args, limit, opts.Offset)
	q += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Submission{}
	for rows.Next() {
		var sub Submission
		var ajson string
		if err := rows.Scan(&sub.ID, &sub.QuizID, &sub.QuizTitle, &sub.StudentID, &sub.ClassID,
			&sub.Score, &sub.TotalItems, &sub.AttemptNumber, &ajson, &sub.Status, &sub.SubmittedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(ajson), &sub.Answers); err != nil {
			sub.Answers = map[string]interface{}{}
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLStore) WriteSubmission(ctx context.Context, sub Submission) error {
	aj, err := json.Marshal(sub.Answers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO submissions
		(id,quiz_id,quiz_title,student_id,class_id,score,total_items,attempt_number,answers_json,status,submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		sub.ID, sub.QuizID, sub.QuizTitle, sub.StudentID, sub.ClassID,
		sub.Score, sub.TotalItems, sub.AttemptNumber, string(aj), sub.Status, sub.SubmittedAt)
	return err
}

// ApplyManualGrade adds teacher-awarded essay points to a pending
// submission and marks it completed.
func (s *SQLStore) ApplyManualGrade(ctx context.Context, submissionID string, points float64) (Submission, error) {
	_, err := s.db.ExecContext(ctx, `UPDATE submissions SET score=score+$1, status=$2 WHERE id=$3`,
		points, StatusCompleted, submissionID)
	if err != nil {
		return Submission{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT id,quiz_id,quiz_title,student_id,class_id,score,total_items,attempt_number,answers_json,status,submitted_at
		FROM submissions WHERE id=$1`, submissionID)
	var sub Submission
	var ajson string
	if err := row.Scan(&sub.ID, &sub.QuizID, &sub.QuizTitle, &sub.StudentID, &sub.ClassID,
		&sub.Score, &sub.TotalItems, &sub.AttemptNumber, &ajson, &sub.Status, &sub.SubmittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Submission{}, ErrNotFound
		}
		return Submission{}, err
	}
	if err := json.Unmarshal([]byte(ajson), &sub.Answers); err != nil {
		sub.Answers = map[string]interface{}{}
	}
	return sub, nil
}

func (s *SQLStore) ReadLock(ctx context.Context, quizID, studentID string) (*Lock, error) {
	row := s.db.QueryRowContext(ctx, `SELECT quiz_id,student_id,reason,created_at FROM locks
		WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID)
	var l Lock
	if err := row.Scan(&l.QuizID, &l.StudentID, &l.Reason, &l.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &l, nil
}

func (s *SQLStore) WriteLock(ctx context.Context, l Lock) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO locks (quiz_id,student_id,reason,created_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (quiz_id,student_id) DO NOTHING`,
		l.QuizID, l.StudentID, l.Reason, l.CreatedAt)
	return err
}

func (s *SQLStore) ClearLock(ctx context.Context, quizID, studentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE quiz_id=$1 AND student_id=$2`, quizID, studentID)
	return err
}
