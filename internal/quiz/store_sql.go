package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a quiz id does not exist.
var ErrNotFound = errors.New("quiz not found")

// Store persists quizzes. GetQuiz serves the student-safe view;
// GetQuizFull keeps answer keys and is used for grading and teachers.
type Store interface {
	PutQuiz(ctx context.Context, z Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	GetQuizFull(ctx context.Context, id string) (Quiz, error)
}

type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore { return &SQLStore{db: db} }

func (s *SQLStore) PutQuiz(ctx context.Context, z Quiz) error {
	qj, err := json.Marshal(z.Questions)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,title,language,questions_json,created_at)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, language=EXCLUDED.language, questions_json=EXCLUDED.questions_json`,
		z.ID, z.Title, z.Language, string(qj), time.Now().Unix())
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	z, err := s.GetQuizFull(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return z.StudentView(), nil
}

func (s *SQLStore) GetQuizFull(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,title,language,questions_json,created_at FROM quizzes WHERE id=$1`, id)
	var z Quiz
	var qjson string
	if err := row.Scan(&z.ID, &z.Title, &z.Language, &qjson, &z.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrNotFound
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &z.Questions); err != nil {
		return Quiz{}, err
	}
	return z, nil
}
