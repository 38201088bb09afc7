package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	auth "github.com/classline/quizcore/internal/auth/middleware"
	"github.com/classline/quizcore/internal/grading"
	"github.com/classline/quizcore/internal/quiz"
	"github.com/classline/quizcore/internal/rbac"
	"github.com/classline/quizcore/internal/submission"
)

// GET /submissions?quiz_id=...&student_id=...&class_id=...&limit=50&offset=0
// RBAC:
// - role with submission:view-all can list any filters
// - role with submission:view-own only sees their own (student_id is
//   forced to the subject)
func ListSubmissionsHandler(store submission.Store, checker *rbac.Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := auth.SubjectFromContext(r.Context())
		if role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		studentID := strings.TrimSpace(r.URL.Query().Get("student_id"))
		if !checker.Has(role, "submission:view-all") {
			studentID = sub
		}

		list, err := store.ListSubmissions(r.Context(), submission.ListOpts{
			QuizID:    strings.TrimSpace(r.URL.Query().Get("quiz_id")),
			StudentID: studentID,
			ClassID:   strings.TrimSpace(r.URL.Query().Get("class_id")),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, list)
	}
}

// POST /submissions/{submissionID}/grade
// { "awards": [{"question_id": "...", "points": {"0": 2.5}}] }
// Teacher applies rubric points to pending essays; the submission
// score is bumped and its status flips to completed.
func GradeSubmissionHandler(store submission.Store, quizzes quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "submissionID")
		var req struct {
			Awards []struct {
				QuestionID string             `json:"question_id"`
				Points     map[string]float64 `json:"points"` // criterion index -> points
			} `json:"awards"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", 400)
			return
		}

		// Resolve rubrics so awarded points clamp to each criterion.
		subs, err := store.ListSubmissions(r.Context(), submission.ListOpts{Limit: 200})
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		var target *submission.Submission
		for i := range subs {
			if subs[i].ID == id {
				target = &subs[i]
				break
			}
		}
		if target == nil {
			http.Error(w, "submission not found", 404)
			return
		}
		z, err := quizzes.GetQuizFull(r.Context(), target.QuizID)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}

		total := 0.0
		for _, award := range req.Awards {
			for _, q := range z.Questions {
				if q.ID != award.QuestionID || len(q.Rubric) == 0 {
					continue
				}
				byIdx := map[int]float64{}
				for k, v := range award.Points {
					if n, err := strconv.Atoi(k); err == nil {
						byIdx[n] = v
					}
				}
				pts, _ := grading.ScoreRubric(q.Rubric, byIdx)
				total += pts
			}
		}

		updated, err := store.ApplyManualGrade(r.Context(), id, total)
		if err != nil {
			if errors.Is(err, submission.ErrNotFound) {
				http.Error(w, err.Error(), 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		writeJSON(w, updated)
	}
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
