package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mtech-kids/explore-quiz/internal/quiz"
	"github.com/mtech-kids/explore-quiz/internal/rbac"
)

// POST /quizzes: teacher uploads an authored quiz. ParseQuiz validates the
// payload and converts the feed's 1-based correct positions.
func UploadQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := quiz.ParseQuiz(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		q.CreatedBy = rbac.SubjectFromContext(r.Context())
		if err := store.PutQuiz(r.Context(), q); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": q.ID})
	}
}

// GET /quizzes/{quizID}: answer keys stripped for learners; teachers and
// admins get the full quiz.
func GetQuizHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "quizID")
		role := rbac.RoleFromContext(r.Context())

		var (
			q   quiz.Quiz
			err error
		)
		if role == "teacher" || role == "admin" {
			q, err = store.GetQuizFull(r.Context(), id)
		} else {
			q, err = store.GetQuiz(r.Context(), id)
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, q)
	}
}

// GET /quizzes?q=...&limit=50&offset=0
func ListQuizzesHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := store.ListQuizzes(r.Context(), quiz.ListOpts{
			Q:      strings.TrimSpace(r.URL.Query().Get("q")),
			Limit:  parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset: parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}
