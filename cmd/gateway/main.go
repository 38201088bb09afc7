package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/classline/quizcore/internal/api/http"
	"github.com/classline/quizcore/internal/attempt"
	auth "github.com/classline/quizcore/internal/auth/middleware"
	"github.com/classline/quizcore/internal/config"
	"github.com/classline/quizcore/internal/db"
	"github.com/classline/quizcore/internal/eventlog"
	"github.com/classline/quizcore/internal/kvstore"
	"github.com/classline/quizcore/internal/logging"
	"github.com/classline/quizcore/internal/quiz"
	"github.com/classline/quizcore/internal/rbac"
	"github.com/classline/quizcore/internal/submission"
)

func main() {
	cfg := config.FromEnv()
	log := logging.New(os.Stderr, cfg.LogLevel)

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Error("db open failed", "err", err)
		os.Exit(1)
	}

	quizzes := quiz.NewSQLStore(dbh)
	subs := submission.NewSQLStore(dbh)
	kv := kvstore.NewSQLStore(dbh)
	events := eventlog.NewRepo(dbh)
	checker := rbac.NewChecker(nil)

	attempts := attempt.NewService(kv, subs, events, log, cfg.MaxAttempts, cfg.MaxWarnings)

	authSvc := auth.NewAuthService(cfg.AuthHMACSecret, cfg.AdminUser, cfg.AdminPassHash)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Post("/auth/login", auth.LoginHandler(authSvc))

	// Protected API (JWT → role in context → RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		// Teacher-only: upload quiz
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.CreateQuizHandler(quizzes))

		// Student/Teacher: fetch quiz (keys stripped per role)
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(quizzes, checker))

		// Attempt flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.StartAttemptHandler(attempts, quizzes))
		pr.With(rbac.Require("attempt:view-own")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(attempts))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/answer", api.SubmitAnswerHandler(attempts))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/match", api.AssignMatchHandler(attempts))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/match/confirm", api.ConfirmMatchingHandler(attempts))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/advance", api.AdvanceHandler(attempts))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/navigate", api.NavigateHandler(attempts))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/signal", api.SignalHandler(attempts))
		pr.With(rbac.Require("attempt:answer")).
			Post("/attempts/{attemptID}/close", api.CloseAttemptHandler(attempts))

		// Submissions
		pr.With(rbac.RequireAny("submission:view-own", "submission:view-all")).
			Get("/submissions", api.ListSubmissionsHandler(subs, checker))
		pr.With(rbac.Require("submission:grade")).
			Post("/submissions/{submissionID}/grade", api.GradeSubmissionHandler(subs, quizzes))

		// Locks (teacher)
		pr.With(rbac.Require("lock:clear")).
			Get("/locks/{quizID}/{studentID}", api.GetLockHandler(subs))
		pr.With(rbac.Require("lock:clear")).
			Delete("/locks/{quizID}/{studentID}", api.ClearLockHandler(subs))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Info("listening", "addr", cfg.HTTPAddr, "db", cfg.DBDriver,
		"max_attempts", cfg.MaxAttempts, "max_warnings", cfg.MaxWarnings)
	if err := http.ListenAndServe(cfg.HTTPAddr, r); err != nil {
		log.Error("server exited", "err", err)
		os.Exit(1)
	}
}
