package attempt

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/classline/quizcore/internal/eventlog"
	"github.com/classline/quizcore/internal/grading"
	"github.com/classline/quizcore/internal/integrity"
	"github.com/classline/quizcore/internal/kvstore"
	"github.com/classline/quizcore/internal/quiz"
	"github.com/classline/quizcore/internal/shuffle"
	"github.com/classline/quizcore/internal/submission"
)

// NoAttemptsLeftError rejects a new attempt once the submission limit
// is reached; it carries the most recent score for display.
type NoAttemptsLeftError struct {
	Attempts    int     `json:"attempts"`
	LatestScore float64 `json:"latest_score"`
	TotalItems  int     `json:"total_items"`
}

func (e *NoAttemptsLeftError) Error() string {
	return fmt.Sprintf("no attempts left (%d taken)", e.Attempts)
}

// Service starts attempts and keeps the registry of live machines and
// their integrity monitors. In-progress answers live only here; a
// client crash loses them but never the persisted shuffle order or
// warning count.
type Service struct {
	mu       sync.Mutex
	machines map[string]*Machine
	monitors map[string]*integrity.Monitor

	kv       kvstore.Store
	shuffler *shuffle.Service
	store    submission.Store
	writer   *submission.Writer
	events   eventlog.Sink
	eval     grading.Evaluator
	log      *slog.Logger

	maxAttempts int
	maxWarnings int
}

func NewService(kv kvstore.Store, store submission.Store, events eventlog.Sink,
	log *slog.Logger, maxAttempts, maxWarnings int) *Service {
	return &Service{
		machines:    map[string]*Machine{},
		monitors:    map[string]*integrity.Monitor{},
		kv:          kv,
		shuffler:    shuffle.New(kv),
		store:       store,
		writer:      submission.NewWriter(store, log),
		events:      events,
		eval:        grading.NewEvaluator(),
		log:         log,
		maxAttempts: maxAttempts,
		maxWarnings: maxWarnings,
	}
}

// Start opens an attempt. An empty classID means teacher preview:
// authored order, answers revealed, no grading, persistence or
// integrity monitoring. A graded start checks the lock record and the
// attempt limit, restores the shuffled order and any warning count,
// and wires an integrity monitor.
func (s *Service) Start(ctx context.Context, z quiz.Quiz, studentID, classID string) (*Machine, error) {
	if classID == "" {
		m := s.newMachine(z, studentID, classID, z.Questions, 0, 0, true)
		s.register(m, nil)
		return m, nil
	}

	lock, err := s.store.ReadLock(ctx, z.ID, studentID)
	if err != nil {
		return nil, fmt.Errorf("read lock: %w", err)
	}
	if lock != nil {
		return nil, ErrLocked
	}

	prior, err := s.store.ListSubmissions(ctx, submission.ListOpts{
		QuizID: z.ID, StudentID: studentID, ClassID: classID,
	})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	if len(prior) >= s.maxAttempts {
		return nil, &NoAttemptsLeftError{
			Attempts:    len(prior),
			LatestScore: prior[0].Score,
			TotalItems:  prior[0].TotalItems,
		}
	}

	key := z.ID + "_" + studentID
	ordered, err := s.shuffler.Order(ctx, key, z.Questions)
	if err != nil {
		return nil, fmt.Errorf("shuffle order: %w", err)
	}

	warnings := 0
	if raw, ok, err := s.kv.Get(ctx, warnKey(key)); err != nil {
		return nil, fmt.Errorf("read warning count: %w", err)
	} else if ok {
		warnings, _ = strconv.Atoi(raw)
	}
	if warnings >= s.maxWarnings {
		// Count hit the limit but no lock record landed (e.g. crash
		// between the increment and the write): lock now.
		if err := s.store.WriteLock(ctx, submission.Lock{
			QuizID: z.ID, StudentID: studentID,
			Reason: "warning limit reached", CreatedAt: time.Now().Unix(),
		}); err != nil {
			s.log.Error("persist lock record", "quiz_id", z.ID, "student_id", studentID, "err", err)
		}
		return nil, ErrLocked
	}

	m := s.newMachine(z, studentID, classID, ordered, len(prior)+1, warnings, false)
	mon := integrity.NewMonitor(m, s.log)
	s.register(m, mon)
	s.log.Info("attempt started", "attempt_id", m.id, "quiz_id", z.ID,
		"student_id", studentID, "attempt_number", m.attemptNumber, "warnings", warnings)
	return m, nil
}

func (s *Service) newMachine(z quiz.Quiz, studentID, classID string,
	ordered []quiz.Question, attemptNumber, warnings int, preview bool) *Machine {
	events := s.events
	if preview {
		events = eventlog.Nop{}
	}
	return &Machine{
		id:            uuid.NewString(),
		quiz:          z,
		questions:     ordered,
		studentID:     studentID,
		classID:       classID,
		preview:       preview,
		attemptNumber: attemptNumber,
		startedAt:     time.Now(),
		answers:       map[int]quiz.Answer{},
		results:       map[int]grading.Result{},
		warnings:      warnings,
		phase:         PhaseAnswering,
		eval:          s.eval,
		kv:            s.kv,
		shuffler:      s.shuffler,
		store:         s.store,
		writer:        s.writer,
		events:        events,
		log:           s.log,
		maxWarnings:   s.maxWarnings,
		done:          s.remove,
	}
}

func (s *Service) register(m *Machine, mon *integrity.Monitor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machines[m.id] = m
	if mon != nil {
		s.monitors[m.id] = mon
	}
}

func (s *Service) Get(id string) (*Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.machines[id]
	return m, ok
}

// Monitor returns the integrity monitor for a graded attempt. Preview
// attempts have none.
func (s *Service) Monitor(id string) (*integrity.Monitor, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mon, ok := s.monitors[id]
	return mon, ok
}

// remove evicts a terminal attempt from the registry, tearing down its
// monitor with it.
func (s *Service) remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.machines, id)
	delete(s.monitors, id)
}
