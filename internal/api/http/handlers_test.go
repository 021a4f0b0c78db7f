package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/mtech-kids/explore-quiz/internal/grading"
	"github.com/mtech-kids/explore-quiz/internal/progress"
	"github.com/mtech-kids/explore-quiz/internal/quiz"
	"github.com/mtech-kids/explore-quiz/internal/rbac"
)

// testEnv wires the handlers over the in-memory store and a file recorder,
// the same shape the gateway uses minus auth. Identity is injected straight
// into the request context.
type testEnv struct {
	router   *chi.Mux
	store    quiz.Store
	recorder progress.Recorder
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	recorder, err := progress.NewFileRecorder(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("file recorder: %v", err)
	}
	grader := grading.NewGrader()
	store := quiz.NewInMemoryStore(grader, recorder)

	r := chi.NewRouter()
	r.Post("/quizzes", UploadQuizHandler(store))
	r.Get("/quizzes", ListQuizzesHandler(store))
	r.Get("/quizzes/{quizID}", GetQuizHandler(store))
	r.Post("/attempts", CreateAttemptHandler(store))
	r.Get("/attempts", ListAttemptsHandler(store))
	r.Get("/attempts/{attemptID}", GetAttemptHandler(store))
	r.Post("/attempts/{attemptID}/answers", SaveAnswerHandler(store))
	r.Post("/attempts/{attemptID}/navigate", NavigateHandler(store))
	r.Post("/attempts/{attemptID}/submit", SubmitAttemptHandler(store, nil))
	r.Post("/attempts/{attemptID}/retry", RetryAttemptHandler(store))
	r.Get("/attempts/{attemptID}/review", ReviewAttemptHandler(store, grader, recorder))
	r.Get("/progress/quizzes/{quizID}", GetQuizProgressHandler(recorder))
	r.Get("/progress/summary", GetProgressSummaryHandler(recorder))

	return &testEnv{router: r, store: store, recorder: recorder}
}

// do runs a request as the given identity and decodes the JSON response into
// out when it is non-nil.
func (e *testEnv) do(t *testing.T, subject, role, method, path, body string, out any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body == "" {
		rd = bytes.NewReader(nil)
	} else {
		rd = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, rd)
	ctx := rbac.WithSubject(rbac.WithRole(req.Context(), role), subject)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	if out != nil && rec.Code < 300 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s response: %v\n%s", method, path, err, rec.Body.String())
		}
	}
	return rec
}

const quizFeed = `{
	"id": "quiz-1",
	"title": "Capital Cities",
	"questions": [
		{"id": "q1", "text": "Pick b", "kind": "single_choice",
		 "options": ["a", "b"], "correct_position": 2},
		{"id": "q2", "text": "Capital of Zimbabwe?", "kind": "short_answer",
		 "correct_text": "Harare"}
	]
}`

func (e *testEnv) uploadQuiz(t *testing.T) {
	t.Helper()
	rec := e.do(t, "teacher-1", "teacher", http.MethodPost, "/quizzes", quizFeed, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
}

func TestUploadQuizRejectsBadPayload(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "teacher-1", "teacher", http.MethodPost, "/quizzes",
		`{"id":"x","title":"t","questions":[]}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("code = %d, want 400", rec.Code)
	}
}

func TestGetQuizStripsKeysForStudents(t *testing.T) {
	e := newTestEnv(t)
	e.uploadQuiz(t)

	var asStudent quiz.Quiz
	if rec := e.do(t, "learner-1", "student", http.MethodGet, "/quizzes/quiz-1", "", &asStudent); rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	for _, q := range asStudent.Questions {
		if q.CorrectText != "" || q.CorrectChoice != 0 {
			t.Fatalf("student view leaks answer key: %+v", q)
		}
	}

	var asTeacher quiz.Quiz
	e.do(t, "teacher-1", "teacher", http.MethodGet, "/quizzes/quiz-1", "", &asTeacher)
	if asTeacher.Questions[1].CorrectText != "Harare" {
		t.Fatal("teacher view should keep answer keys")
	}
}

func TestAttemptFlowOverHTTP(t *testing.T) {
	e := newTestEnv(t)
	e.uploadQuiz(t)

	var a quiz.Attempt
	rec := e.do(t, "learner-1", "student", http.MethodPost, "/attempts", `{"quiz_id":"quiz-1"}`, &a)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rec.Code, rec.Body.String())
	}
	if a.LearnerID != "learner-1" || a.State != quiz.StateInProgress {
		t.Fatalf("attempt = %+v", a)
	}

	base := "/attempts/" + a.ID
	if rec := e.do(t, "learner-1", "student", http.MethodPost, base+"/answers",
		`{"question_id":"q1","answer":{"kind":"single_choice","choice":1}}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("answer q1: %d %s", rec.Code, rec.Body.String())
	}
	if rec := e.do(t, "learner-1", "student", http.MethodPost, base+"/answers",
		`{"question_id":"q2","answer":{"kind":"short_answer","text":"harare"}}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("answer q2: %d %s", rec.Code, rec.Body.String())
	}

	// Submit from the first question is refused.
	if rec := e.do(t, "learner-1", "student", http.MethodPost, base+"/submit", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("early submit: %d", rec.Code)
	}
	if rec := e.do(t, "learner-1", "student", http.MethodPost, base+"/navigate", `{"op":"next"}`, nil); rec.Code != http.StatusOK {
		t.Fatalf("navigate: %d", rec.Code)
	}

	var sub quiz.Attempt
	if rec := e.do(t, "learner-1", "student", http.MethodPost, base+"/submit", "", &sub); rec.Code != http.StatusOK {
		t.Fatalf("submit: %d %s", rec.Code, rec.Body.String())
	}
	if sub.State != quiz.StateCompleted || sub.Score != 2 {
		t.Fatalf("submitted = %+v", sub)
	}

	var rv struct {
		Percentage int `json:"percentage"`
		BestScore  int `json:"best_score"`
		Outcomes   []struct {
			QuestionID string `json:"question_id"`
			Correct    bool   `json:"correct"`
		} `json:"outcomes"`
	}
	if rec := e.do(t, "learner-1", "student", http.MethodGet, base+"/review", "", &rv); rec.Code != http.StatusOK {
		t.Fatalf("review: %d %s", rec.Code, rec.Body.String())
	}
	if rv.Percentage != 100 || rv.BestScore != 100 || len(rv.Outcomes) != 2 {
		t.Fatalf("review = %+v", rv)
	}

	var p progress.QuizProgress
	if rec := e.do(t, "learner-1", "student", http.MethodGet, "/progress/quizzes/quiz-1", "", &p); rec.Code != http.StatusOK {
		t.Fatalf("progress: %d", rec.Code)
	}
	if p.BestScore != 100 || !p.Completed {
		t.Fatalf("progress = %+v", p)
	}
}

func TestReviewBeforeCompletionConflicts(t *testing.T) {
	e := newTestEnv(t)
	e.uploadQuiz(t)
	var a quiz.Attempt
	e.do(t, "learner-1", "student", http.MethodPost, "/attempts", `{"quiz_id":"quiz-1"}`, &a)
	rec := e.do(t, "learner-1", "student", http.MethodGet, "/attempts/"+a.ID+"/review", "", nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("code = %d, want 409", rec.Code)
	}
}

func TestRetryNeedsConfirm(t *testing.T) {
	e := newTestEnv(t)
	e.uploadQuiz(t)
	var a quiz.Attempt
	e.do(t, "learner-1", "student", http.MethodPost, "/attempts", `{"quiz_id":"quiz-1"}`, &a)
	base := "/attempts/" + a.ID
	e.do(t, "learner-1", "student", http.MethodPost, base+"/navigate", `{"op":"next"}`, nil)
	e.do(t, "learner-1", "student", http.MethodPost, base+"/submit", "", nil)

	if rec := e.do(t, "learner-1", "student", http.MethodPost, base+"/retry", `{"confirm":false}`, nil); rec.Code != http.StatusConflict {
		t.Fatalf("unconfirmed retry: %d, want 409", rec.Code)
	}
	var re quiz.Attempt
	if rec := e.do(t, "learner-1", "student", http.MethodPost, base+"/retry", `{"confirm":true}`, &re); rec.Code != http.StatusOK {
		t.Fatalf("confirmed retry: %d %s", rec.Code, rec.Body.String())
	}
	if re.State != quiz.StateInProgress || len(re.Answers) != 0 {
		t.Fatalf("retried = %+v", re)
	}
}

func TestStudentsCannotTouchOthersAttempts(t *testing.T) {
	e := newTestEnv(t)
	e.uploadQuiz(t)
	var a quiz.Attempt
	e.do(t, "learner-1", "student", http.MethodPost, "/attempts", `{"quiz_id":"quiz-1"}`, &a)

	if rec := e.do(t, "learner-2", "student", http.MethodGet, "/attempts/"+a.ID, "", nil); rec.Code != http.StatusForbidden {
		t.Fatalf("other student read: %d, want 403", rec.Code)
	}
	if rec := e.do(t, "teacher-1", "teacher", http.MethodGet, "/attempts/"+a.ID, "", nil); rec.Code != http.StatusOK {
		t.Fatalf("teacher read: %d, want 200", rec.Code)
	}
}

func TestListAttemptsScopesStudents(t *testing.T) {
	e := newTestEnv(t)
	e.uploadQuiz(t)
	e.do(t, "learner-1", "student", http.MethodPost, "/attempts", `{"quiz_id":"quiz-1"}`, nil)
	e.do(t, "learner-2", "student", http.MethodPost, "/attempts", `{"quiz_id":"quiz-1"}`, nil)

	var mine []quiz.Attempt
	// The learner_id filter is ignored for students.
	e.do(t, "learner-1", "student", http.MethodGet, "/attempts?learner_id=learner-2", "", &mine)
	if len(mine) != 1 || mine[0].LearnerID != "learner-1" {
		t.Fatalf("student list = %+v", mine)
	}

	var all []quiz.Attempt
	e.do(t, "teacher-1", "teacher", http.MethodGet, "/attempts?quiz_id=quiz-1", "", &all)
	if len(all) != 2 {
		t.Fatalf("teacher list = %d entries, want 2", len(all))
	}
}

func TestProgressSummaryScope(t *testing.T) {
	e := newTestEnv(t)
	e.uploadQuiz(t)

	// Complete the quiz once as learner-1.
	var a quiz.Attempt
	e.do(t, "learner-1", "student", http.MethodPost, "/attempts", `{"quiz_id":"quiz-1"}`, &a)
	base := "/attempts/" + a.ID
	e.do(t, "learner-1", "student", http.MethodPost, base+"/answers",
		`{"question_id":"q1","answer":{"kind":"single_choice","choice":1}}`, nil)
	e.do(t, "learner-1", "student", http.MethodPost, base+"/navigate", `{"op":"next"}`, nil)
	e.do(t, "learner-1", "student", http.MethodPost, base+"/submit", "", nil)

	var sum struct {
		LearnerID        string `json:"learner_id"`
		CompletedQuizzes int    `json:"completed_quizzes"`
	}
	// A student asking for someone else still gets their own summary.
	e.do(t, "learner-1", "student", http.MethodGet, "/progress/summary?learner_id=learner-2", "", &sum)
	if sum.LearnerID != "learner-1" || sum.CompletedQuizzes != 1 {
		t.Fatalf("summary = %+v", sum)
	}

	// A teacher may read any learner.
	e.do(t, "teacher-1", "teacher", http.MethodGet, "/progress/summary?learner_id=learner-1", "", &sum)
	if sum.LearnerID != "learner-1" || sum.CompletedQuizzes != 1 {
		t.Fatalf("teacher summary = %+v", sum)
	}
}

func TestCreateAttemptForUnknownQuiz(t *testing.T) {
	e := newTestEnv(t)
	rec := e.do(t, "learner-1", "student", http.MethodPost, "/attempts", `{"quiz_id":"nope"}`, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("code = %d, want 404", rec.Code)
	}
}

func TestListQuizzesSearch(t *testing.T) {
	e := newTestEnv(t)
	e.uploadQuiz(t)
	second := strings.Replace(quizFeed, `"id": "quiz-1"`, `"id": "quiz-2"`, 1)
	second = strings.Replace(second, `"title": "Capital Cities"`, `"title": "Rivers"`, 1)
	if rec := e.do(t, "teacher-1", "teacher", http.MethodPost, "/quizzes", second, nil); rec.Code != http.StatusCreated {
		t.Fatalf("upload second: %d %s", rec.Code, rec.Body.String())
	}

	var hits []quiz.QuizSummary
	e.do(t, "learner-1", "student", http.MethodGet,
		fmt.Sprintf("/quizzes?q=%s", "rivers"), "", &hits)
	if len(hits) != 1 || hits[0].ID != "quiz-2" {
		t.Fatalf("search hits = %+v", hits)
	}
}
