package submission

import (
	"context"
	"log/slog"
	"time"
)

// Writer wraps a Store with a retry on WriteSubmission. Losing a
// finished attempt is the most damaging persistence failure, so the
// write gets a second chance before the caller falls back to showing
// the locally computed score.
type Writer struct {
	store   Store
	log     *slog.Logger
	retries int
	backoff time.Duration
}

func NewWriter(store Store, log *slog.Logger) *Writer {
	return &Writer{store: store, log: log, retries: 1, backoff: 500 * time.Millisecond}
}

func (w *Writer) Write(ctx context.Context, s Submission) error {
	err := w.store.WriteSubmission(ctx, s)
	for i := 0; err != nil && i < w.retries; i++ {
		w.log.Warn("submission write failed, retrying",
			"quiz_id", s.QuizID, "student_id", s.StudentID, "err", err)
		select {
		case <-time.After(w.backoff):
		case <-ctx.Done():
			return err
		}
		err = w.store.WriteSubmission(ctx, s)
	}
	if err != nil {
		w.log.Error("submission write failed",
			"quiz_id", s.QuizID, "student_id", s.StudentID, "attempt", s.AttemptNumber, "err", err)
	}
	return err
}
