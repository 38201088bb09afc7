package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classline/quizcore/internal/quiz"
	"github.com/classline/quizcore/internal/rbac"
)

// POST /quizzes — teacher uploads a quiz as JSON.
func CreateQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
		if err != nil {
			http.Error(w, "read body", 400)
			return
		}
		z, err := quiz.LoadQuiz(body)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := store.PutQuiz(r.Context(), *z); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(z)
	}
}

// GET /quizzes/{quizID} — answer keys are stripped unless the caller
// may view them.
func GetQuizHandler(store quiz.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		role := rbac.RoleFromContext(r.Context())

		var z quiz.Quiz
		var err error
		if checker.Has(role, "quiz:view-keys") {
			z, err = store.GetQuizFull(r.Context(), id)
		} else {
			z, err = store.GetQuiz(r.Context(), id)
		}
		if err != nil {
			if errors.Is(err, quiz.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(z)
	}
}
