package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classline/quizcore/internal/submission"
)

// GET /locks/{quizID}/{studentID} — teacher checks whether a student
// is locked out.
func GetLockHandler(store submission.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := store.ReadLock(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "studentID"))
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		if l == nil {
			http.Error(w, "no lock", 404)
			return
		}
		writeJSON(w, l)
	}
}

// DELETE /locks/{quizID}/{studentID} — teacher-initiated unlock. This
// is the only way out of a locked attempt.
func ClearLockHandler(store submission.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := store.ClearLock(r.Context(), chi.URLParam(r, "quizID"), chi.URLParam(r, "studentID")); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
