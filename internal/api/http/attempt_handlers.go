package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/classline/quizcore/internal/attempt"
	auth "github.com/classline/quizcore/internal/auth/middleware"
	"github.com/classline/quizcore/internal/integrity"
	"github.com/classline/quizcore/internal/quiz"
)

// POST /attempts  { "quiz_id": "...", "class_id": "..." }
// An empty class_id starts an ungraded teacher preview.
func StartAttemptHandler(svc *attempt.Service, quizzes quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuizID  string `json:"quiz_id"`
			ClassID string `json:"class_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if req.QuizID == "" {
			http.Error(w, "quiz_id required", 400)
			return
		}
		studentID := auth.SubjectFromContext(r.Context())

		z, err := quizzes.GetQuizFull(r.Context(), req.QuizID)
		if err != nil {
			if errors.Is(err, quiz.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}

		m, err := svc.Start(r.Context(), z, studentID, req.ClassID)
		if err != nil {
			writeAttemptError(w, err)
			return
		}
		writeJSON(w, m.Snapshot())
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := svc.Get(chi.URLParam(r, "attemptID"))
		if !ok {
			http.Error(w, "attempt not found", 404)
			return
		}
		writeJSON(w, m.Snapshot())
	}
}

// POST /attempts/{attemptID}/answer  { "answer": {...} }
func SubmitAnswerHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := svc.Get(chi.URLParam(r, "attemptID"))
		if !ok {
			http.Error(w, "attempt not found", 404)
			return
		}
		var req struct {
			Answer json.RawMessage `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		ans, err := quiz.ParseAnswer(m.CurrentQuestion().Type, req.Answer)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		if err := m.SubmitAnswer(r.Context(), ans); err != nil {
			writeAttemptError(w, err)
			return
		}
		writeJSON(w, m.Snapshot())
	}
}

// POST /attempts/{attemptID}/match  { "prompt_id": "...", "option_id": "..." }
// Empty option_id unassigns the prompt.
func AssignMatchHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := svc.Get(chi.URLParam(r, "attemptID"))
		if !ok {
			http.Error(w, "attempt not found", 404)
			return
		}
		var req struct {
			PromptID string `json:"prompt_id"`
			OptionID string `json:"option_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := m.AssignMatch(r.Context(), req.PromptID, req.OptionID); err != nil {
			writeAttemptError(w, err)
			return
		}
		writeJSON(w, m.Snapshot())
	}
}

// POST /attempts/{attemptID}/match/confirm
func ConfirmMatchingHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := svc.Get(chi.URLParam(r, "attemptID"))
		if !ok {
			http.Error(w, "attempt not found", 404)
			return
		}
		if err := m.ConfirmMatching(r.Context()); err != nil {
			writeAttemptError(w, err)
			return
		}
		writeJSON(w, m.Snapshot())
	}
}

// POST /attempts/{attemptID}/advance — next question, or submit after
// the last one.
func AdvanceHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := svc.Get(chi.URLParam(r, "attemptID"))
		if !ok {
			http.Error(w, "attempt not found", 404)
			return
		}
		if err := m.Advance(r.Context()); err != nil {
			writeAttemptError(w, err)
			return
		}
		writeJSON(w, m.Snapshot())
	}
}

// POST /attempts/{attemptID}/navigate  { "index": 2 } — preview only.
func NavigateHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := svc.Get(chi.URLParam(r, "attemptID"))
		if !ok {
			http.Error(w, "attempt not found", 404)
			return
		}
		var req struct {
			Index int `json:"index"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if err := m.Navigate(r.Context(), req.Index); err != nil {
			writeAttemptError(w, err)
			return
		}
		writeJSON(w, m.Snapshot())
	}
}

// POST /attempts/{attemptID}/signal  { "signal": "focus_lost" }
// The client shell relays focus/unload/background events here.
func SignalHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "attemptID")
		var req struct {
			Signal integrity.Signal `json:"signal"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		mon, ok := svc.Monitor(id)
		if !ok {
			// Preview attempts have no monitor; finished attempts were
			// evicted. Either way the signal is a no-op.
			writeJSON(w, integrity.Outcome{Signal: req.Signal})
			return
		}
		out, err := mon.Handle(r.Context(), req.Signal)
		if err != nil {
			http.Error(w, err.Error(), 400)
			return
		}
		writeJSON(w, out)
	}
}

// POST /attempts/{attemptID}/close — explicit close of the quiz view;
// counts as a warning while the attempt is in progress.
func CloseAttemptHandler(svc *attempt.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		m, ok := svc.Get(chi.URLParam(r, "attemptID"))
		if !ok {
			http.Error(w, "attempt not found", 404)
			return
		}
		count, locked, err := m.Close(r.Context())
		if err != nil {
			writeAttemptError(w, err)
			return
		}
		writeJSON(w, map[string]interface{}{"warnings": count, "locked": locked})
	}
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeAttemptError(w http.ResponseWriter, err error) {
	var noLeft *attempt.NoAttemptsLeftError
	switch {
	case errors.As(err, &noLeft):
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"error":        noLeft.Error(),
			"attempts":     noLeft.Attempts,
			"latest_score": noLeft.LatestScore,
			"total_items":  noLeft.TotalItems,
		})
	case errors.Is(err, attempt.ErrLocked):
		http.Error(w, err.Error(), http.StatusLocked)
	case errors.Is(err, attempt.ErrEmptyAnswer), errors.Is(err, attempt.ErrOutOfRange):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, attempt.ErrCompleted),
		errors.Is(err, attempt.ErrAlreadyAnswered),
		errors.Is(err, attempt.ErrNotAnswering),
		errors.Is(err, attempt.ErrNotInFeedback),
		errors.Is(err, attempt.ErrUseMatchConfirm),
		errors.Is(err, attempt.ErrNotMatching),
		errors.Is(err, attempt.ErrPreviewOnly):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
