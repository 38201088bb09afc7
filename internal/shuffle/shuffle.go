// Package shuffle fixes a per-(quiz,student) question order for the
// duration of an attempt. The first call shuffles and persists the
// order; later calls return it verbatim, so a client reload never
// reshuffles mid-attempt.
package shuffle

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/classline/quizcore/internal/kvstore"
	"github.com/classline/quizcore/internal/quiz"
)

type Service struct {
	kv  kvstore.Store
	mu  sync.Mutex
	rng *rand.Rand
}

func New(kv kvstore.Store) *Service {
	return &Service{kv: kv, rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func orderKey(key string) string { return key + ":order" }

// Order returns the persisted permutation for key if one exists and
// still covers the same question set, otherwise shuffles, persists the
// resulting ID order and returns it.
func (s *Service) Order(ctx context.Context, key string, questions []quiz.Question) ([]quiz.Question, error) {
	byID := make(map[string]quiz.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	if raw, ok, err := s.kv.Get(ctx, orderKey(key)); err != nil {
		return nil, err
	} else if ok {
		var ids []string
		if json.Unmarshal([]byte(raw), &ids) == nil && len(ids) == len(questions) {
			out := make([]quiz.Question, 0, len(ids))
			for _, id := range ids {
				q, found := byID[id]
				if !found {
					break
				}
				out = append(out, q)
			}
			if len(out) == len(questions) {
				return out, nil
			}
		}
		// Stale order (quiz edited since it was stored): fall through
		// and reshuffle.
	}

	out := make([]quiz.Question, len(questions))
	copy(out, questions)
	s.mu.Lock()
	// Fisher-Yates, last index down to 1.
	for i := len(out) - 1; i >= 1; i-- {
		j := s.rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	s.mu.Unlock()

	ids := make([]string, len(out))
	for i, q := range out {
		ids[i] = q.ID
	}
	buf, err := json.Marshal(ids)
	if err != nil {
		return nil, err
	}
	if err := s.kv.Set(ctx, orderKey(key), string(buf)); err != nil {
		return nil, err
	}
	return out, nil
}

// Clear drops the persisted order for key. Called when the attempt is
// submitted or explicitly reset.
func (s *Service) Clear(ctx context.Context, key string) error {
	return s.kv.Remove(ctx, orderKey(key))
}
