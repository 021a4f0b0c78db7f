package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mtech-kids/explore-quiz/internal/grading"
	"github.com/mtech-kids/explore-quiz/internal/progress"
	"github.com/mtech-kids/explore-quiz/internal/quiz"
	"github.com/mtech-kids/explore-quiz/internal/rbac"
	"github.com/mtech-kids/explore-quiz/internal/review"
	syncx "github.com/mtech-kids/explore-quiz/internal/sync"
)

// POST /attempts {"quiz_id": "..."}: learner comes from the token, not the
// body; one learner cannot start attempts for another.
func CreateAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			QuizID string `json:"quiz_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		learner := rbac.SubjectFromContext(r.Context())
		if req.QuizID == "" || learner == "" {
			http.Error(w, "quiz_id required", http.StatusBadRequest)
			return
		}
		a, err := store.NewAttempt(r.Context(), req.QuizID, learner)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, quiz.ErrQuizNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusCreated, a)
	}
}

// POST /attempts/{attemptID}/answers {"question_id": "...", "answer": {...}}
func SaveAnswerHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, store)
		if !ok {
			return
		}
		var req struct {
			QuestionID string      `json:"question_id"`
			Answer     quiz.Answer `json:"answer"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		updated, err := store.SaveAnswer(r.Context(), a.ID, req.QuestionID, req.Answer)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// POST /attempts/{attemptID}/navigate {"op": "next"|"previous"|"reset"}
func NavigateHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, store)
		if !ok {
			return
		}
		var req struct {
			Op quiz.NavOp `json:"op"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		updated, err := store.Navigate(r.Context(), a.ID, req.Op)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// POST /attempts/{attemptID}/submit: only reachable from the last question.
// Progress recording happens inside the store; the event append afterwards is
// best-effort observability and never fails the submission.
func SubmitAttemptHandler(store quiz.Store, events *syncx.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, store)
		if !ok {
			return
		}
		submitted, err := store.Submit(r.Context(), a.ID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if events != nil {
			payload := syncx.AttemptSubmitted{
				QuizID:         submitted.QuizID,
				Score:          submitted.Score,
				TotalQuestions: submitted.TotalQuestions,
				LearnerID:      submitted.LearnerID,
			}
			if err := events.Append(r.Context(), syncx.TypeAttemptSubmitted, submitted.ID, payload); err != nil {
				log.Printf("event append for attempt %s: %v", submitted.ID, err)
			}
		}
		writeJSON(w, http.StatusOK, submitted)
	}
}

// POST /attempts/{attemptID}/retry {"confirm": true}. Two-step: without the
// confirm flag the retry is rejected and nothing changes. History is kept
// either way; a lower retry score never lowers the recorded best.
func RetryAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, store)
		if !ok {
			return
		}
		var req struct {
			Confirm bool `json:"confirm"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		updated, err := store.Retry(r.Context(), a.ID, req.Confirm)
		if err != nil {
			status := http.StatusBadRequest
			if errors.Is(err, quiz.ErrRetryNotConfirmed) {
				status = http.StatusConflict
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	}
}

// GET /attempts/{attemptID}
func GetAttemptHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, store)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, a)
	}
}

// GET /attempts/{attemptID}/review: per-question outcomes plus the
// learner's historical best. Outcome highlighting uses the same grader that
// produced the score.
func ReviewAttemptHandler(store quiz.Store, grader *grading.Grader, recorder progress.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		a, ok := ownAttempt(w, r, store)
		if !ok {
			return
		}
		if a.State != quiz.StateCompleted {
			http.Error(w, "attempt not completed", http.StatusConflict)
			return
		}
		q, err := store.GetQuizFull(r.Context(), a.QuizID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		p, err := recorder.GetProgress(r.Context(), a.LearnerID, a.QuizID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		pct := progress.Percentage(a.Score, a.TotalQuestions)
		writeJSON(w, http.StatusOK, review.Build(grader, q.Questions, a.Answers, a.QuizID, pct, p.BestScore))
	}
}

// GET /attempts?quiz_id=...&learner_id=...&state=...&limit=50&offset=0
// Students are forced onto their own attempts; teachers/admins may filter
// freely.
func ListAttemptsHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := rbac.RoleFromContext(r.Context())
		sub := rbac.SubjectFromContext(r.Context())
		if role == "" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		learnerID := strings.TrimSpace(r.URL.Query().Get("learner_id"))
		if role != "admin" && role != "teacher" {
			learnerID = sub
		}

		list, err := store.ListAttempts(r.Context(), quiz.AttemptListOpts{
			QuizID:    strings.TrimSpace(r.URL.Query().Get("quiz_id")),
			LearnerID: learnerID,
			State:     strings.TrimSpace(r.URL.Query().Get("state")),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// ownAttempt loads the attempt and enforces that students only touch their
// own; teacher/admin pass through.
func ownAttempt(w http.ResponseWriter, r *http.Request, store quiz.Store) (quiz.Attempt, bool) {
	id := chi.URLParam(r, "attemptID")
	a, err := store.GetAttempt(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return quiz.Attempt{}, false
	}
	role := rbac.RoleFromContext(r.Context())
	sub := rbac.SubjectFromContext(r.Context())
	if role != "teacher" && role != "admin" && a.LearnerID != sub {
		http.Error(w, "forbidden", http.StatusForbidden)
		return quiz.Attempt{}, false
	}
	return a, true
}
