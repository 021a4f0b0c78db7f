package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	api "github.com/mtech-kids/explore-quiz/internal/api/http"
	auth "github.com/mtech-kids/explore-quiz/internal/auth/middleware"
	"github.com/mtech-kids/explore-quiz/internal/config"
	"github.com/mtech-kids/explore-quiz/internal/db"
	"github.com/mtech-kids/explore-quiz/internal/grading"
	"github.com/mtech-kids/explore-quiz/internal/progress"
	"github.com/mtech-kids/explore-quiz/internal/quiz"
	"github.com/mtech-kids/explore-quiz/internal/rbac"
	"github.com/mtech-kids/explore-quiz/internal/storage"
	syncx "github.com/mtech-kids/explore-quiz/internal/sync"
)

func main() {
	cfg := config.FromEnv()

	// --- DB ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}

	grader := grading.NewGrader()

	// Progress: the server records into SQL; offline installs additionally
	// keep the per-learner file documents so a wiped DB does not lose a
	// learner's local history.
	var recorder progress.Recorder = progress.NewSQLRecorder(dbh)
	if cfg.Mode == config.ModeOffline {
		fr, err := progress.NewFileRecorder(cfg.ProgressBasePath, nil)
		if err != nil {
			log.Fatalf("progress store: %v", err)
		}
		recorder = progress.NewTeeRecorder(progress.NewSQLRecorder(dbh), fr)
	}

	store := quiz.NewSQLStore(dbh, cfg.DBDriver, grader, recorder)
	events := syncx.NewEventRepo(dbh, cfg.SiteID)

	authSvc := auth.NewAuthService(cfg.AuthSecret)

	// --- Router ---
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if cfg.EnableLocalAuth {
		r.Post("/auth/login", auth.LoginHandler(authSvc, dbh))
	}

	rs, err := storage.NewFSStore(cfg.ResourceBasePath)
	if err != nil {
		log.Fatalf("resource store: %v", err)
	}

	// Protected API (JWT -> subject+role in context -> RBAC)
	r.Group(func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))
		pr.Use(auth.AttachRoleFromDB(dbh, cfg.Mode == config.ModeOffline))

		pr.Route("/resources", func(rr chi.Router) {
			api.MountResources(rr, rs)
		})

		// Authoring
		pr.With(rbac.Require("quiz:create")).
			Post("/quizzes", api.UploadQuizHandler(store))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes", api.ListQuizzesHandler(store))
		pr.With(rbac.Require("quiz:view")).
			Get("/quizzes/{quizID}", api.GetQuizHandler(store))

		// Attempt flow
		pr.With(rbac.Require("attempt:create")).
			Post("/attempts", api.CreateAttemptHandler(store))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/answers", api.SaveAnswerHandler(store))
		pr.With(rbac.Require("attempt:save")).
			Post("/attempts/{attemptID}/navigate", api.NavigateHandler(store))
		pr.With(rbac.Require("attempt:submit")).
			Post("/attempts/{attemptID}/submit", api.SubmitAttemptHandler(store, events))
		pr.With(rbac.Require("attempt:retry")).
			Post("/attempts/{attemptID}/retry", api.RetryAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts", api.ListAttemptsHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}", api.GetAttemptHandler(store))
		pr.With(rbac.RequireAny("attempt:view-own", "attempt:view-all")).
			Get("/attempts/{attemptID}/review", api.ReviewAttemptHandler(store, grader, recorder))

		// Progress
		pr.With(rbac.RequireAny("progress:view-own", "progress:view-all")).
			Get("/progress/quizzes/{quizID}", api.GetQuizProgressHandler(recorder))
		pr.With(rbac.RequireAny("progress:view-own", "progress:view-all")).
			Get("/progress/summary", api.GetProgressSummaryHandler(recorder))

		// Roster admin
		pr.With(rbac.Require("users:bulk_upsert")).
			Post("/users/bulk", api.BulkUpsertUsersHandler(dbh))
		pr.With(rbac.Require("users:list")).
			Get("/users", api.ListUsersHandler(dbh))
		pr.With(rbac.Require("user:change_password")).
			Post("/users/change-password", api.ChangePasswordHandler(dbh))
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })

	log.Printf("listening on %s (mode=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.DBDriver)
	log.Fatal(http.ListenAndServe(cfg.HTTPAddr, r))
}
