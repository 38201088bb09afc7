package shuffle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/classline/quizcore/internal/kvstore"
	"github.com/classline/quizcore/internal/quiz"
)

func questions(n int) []quiz.Question {
	out := make([]quiz.Question, n)
	for i := range out {
		out[i] = quiz.Question{ID: string(rune('a' + i)), Type: quiz.TypeTrueFalse}
	}
	return out
}

func ids(qs []quiz.Question) []string {
	out := make([]string, len(qs))
	for i, q := range qs {
		out[i] = q.ID
	}
	return out
}

func TestOrder_StableForKey(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	svc := New(kv)
	qs := questions(10)

	first, err := svc.Order(ctx, "quiz1_student1", qs)
	require.NoError(t, err)
	require.Len(t, first, 10)

	second, err := svc.Order(ctx, "quiz1_student1", qs)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second), "same key must never reshuffle")
}

func TestOrder_IsPermutation(t *testing.T) {
	ctx := context.Background()
	svc := New(kvstore.NewMemory())
	qs := questions(10)

	out, err := svc.Order(ctx, "k", qs)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(qs), ids(out), "no loss or duplication")
}

func TestOrder_ClearThenReshuffle(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	svc := New(kv)
	qs := questions(8)

	_, err := svc.Order(ctx, "k", qs)
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, "k"))
	_, ok, err := kv.Get(ctx, "k:order")
	require.NoError(t, err)
	assert.False(t, ok)

	again, err := svc.Order(ctx, "k", qs)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(qs), ids(again))
}

func TestOrder_StaleOrderReshuffles(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	svc := New(kv)

	_, err := svc.Order(ctx, "k", questions(5))
	require.NoError(t, err)

	// quiz edited since the order was stored: one question swapped out
	edited := questions(5)
	edited[4].ID = "z"
	out, err := svc.Order(ctx, "k", edited)
	require.NoError(t, err)
	assert.ElementsMatch(t, ids(edited), ids(out))
}

func TestOrder_SurvivesServiceRestart(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemory()
	qs := questions(10)

	first, err := New(kv).Order(ctx, "k", qs)
	require.NoError(t, err)

	second, err := New(kv).Order(ctx, "k", qs)
	require.NoError(t, err)
	assert.Equal(t, ids(first), ids(second))
}
