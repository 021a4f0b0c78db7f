package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mtech-kids/explore-quiz/internal/progress"
	"github.com/mtech-kids/explore-quiz/internal/rbac"
)

// learnerScope resolves which learner the caller may read progress for.
// Students always get themselves; teachers/admins may pass ?learner_id=.
func learnerScope(r *http.Request) string {
	role := rbac.RoleFromContext(r.Context())
	sub := rbac.SubjectFromContext(r.Context())
	if role == "teacher" || role == "admin" {
		if id := r.URL.Query().Get("learner_id"); id != "" {
			return id
		}
	}
	return sub
}

// GET /progress/quizzes/{quizID}
func GetQuizProgressHandler(rec progress.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner := learnerScope(r)
		if learner == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		p, err := rec.GetProgress(r.Context(), learner, chi.URLParam(r, "quizID"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// GET /progress/summary: every tracked quiz plus the completed count, the
// numbers the dashboards show.
func GetProgressSummaryHandler(rec progress.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		learner := learnerScope(r)
		if learner == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		all, err := rec.Summary(r.Context(), learner)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		completed, err := rec.TotalCompletedQuizzes(r.Context(), learner)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"learner_id":        learner,
			"completed_quizzes": completed,
			"quizzes":           all,
		})
	}
}
