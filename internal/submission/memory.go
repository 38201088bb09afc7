package submission

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps submissions and locks in process memory. Used by
// tests and by offline single-user setups.
type MemoryStore struct {
	mu    sync.RWMutex
	subs  []Submission
	locks map[string]Lock // quizID+"_"+studentID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{locks: map[string]Lock{}}
}

func lockKey(quizID, studentID string) string { return quizID + "_" + studentID }

func (m *MemoryStore) ListSubmissions(_ context.Context, opts ListOpts) ([]Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Submission{}
	for _, s := range m.subs {
		if opts.QuizID != "" && s.QuizID != opts.QuizID {
			continue
		}
		if opts.StudentID != "" && s.StudentID != opts.StudentID {
			continue
		}
		if opts.ClassID != "" && s.ClassID != opts.ClassID {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SubmittedAt != out[j].SubmittedAt {
			return out[i].SubmittedAt > out[j].SubmittedAt
		}
		return out[i].AttemptNumber > out[j].AttemptNumber
	})
	return out, nil
}

func (m *MemoryStore) WriteSubmission(_ context.Context, s Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, s)
	return nil
}

func (m *MemoryStore) ApplyManualGrade(_ context.Context, submissionID string, points float64) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.subs {
		if m.subs[i].ID == submissionID {
			m.subs[i].Score += points
			m.subs[i].Status = StatusCompleted
			return m.subs[i], nil
		}
	}
	return Submission{}, ErrNotFound
}

func (m *MemoryStore) ReadLock(_ context.Context, quizID, studentID string) (*Lock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.locks[lockKey(quizID, studentID)]; ok {
		return &l, nil
	}
	return nil, nil
}

func (m *MemoryStore) WriteLock(_ context.Context, l Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := lockKey(l.QuizID, l.StudentID)
	if _, ok := m.locks[k]; ok {
		return nil // locks are write-once
	}
	m.locks[k] = l
	return nil
}

func (m *MemoryStore) ClearLock(_ context.Context, quizID, studentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, lockKey(quizID, studentID))
	return nil
}
