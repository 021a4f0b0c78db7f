package quiz_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/mtech-kids/explore-quiz/internal/db"
	"github.com/mtech-kids/explore-quiz/internal/grading"
	"github.com/mtech-kids/explore-quiz/internal/progress"
	"github.com/mtech-kids/explore-quiz/internal/quiz"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { dbh.Close() })
	return dbh
}

func seedQuiz(t *testing.T, store quiz.Store) quiz.Quiz {
	t.Helper()
	q := quiz.Quiz{
		ID:    "quiz-1",
		Title: "Capital Cities",
		Questions: []quiz.Question{
			{ID: "q1", Text: "Pick a", Kind: quiz.KindSingleChoice, Options: []string{"a", "b"}, CorrectChoice: 0},
			{ID: "q2", Text: "Pick b", Kind: quiz.KindSingleChoice, Options: []string{"a", "b"}, CorrectChoice: 1},
			{ID: "q3", Text: "Capital of Zimbabwe?", Kind: quiz.KindShortAnswer, CorrectText: "Harare"},
		},
	}
	if err := store.PutQuiz(context.Background(), q); err != nil {
		t.Fatalf("PutQuiz: %v", err)
	}
	return q
}

func TestSQLStoreQuizRoundTripAndSanitize(t *testing.T) {
	dbh := openTestDB(t)
	store := quiz.NewSQLStore(dbh, "sqlite", grading.NewGrader(), nil)
	ctx := context.Background()
	seedQuiz(t, store)

	full, err := store.GetQuizFull(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("GetQuizFull: %v", err)
	}
	if full.Questions[2].CorrectText != "Harare" {
		t.Fatalf("full quiz should keep answer keys, got %+v", full.Questions[2])
	}

	learnerView, err := store.GetQuiz(ctx, "quiz-1")
	if err != nil {
		t.Fatalf("GetQuiz: %v", err)
	}
	for _, q := range learnerView.Questions {
		if q.CorrectText != "" || q.CorrectChoice != 0 {
			t.Fatalf("learner view must strip answer keys: %+v", q)
		}
	}

	if _, err := store.GetQuiz(ctx, "missing"); !errors.Is(err, quiz.ErrQuizNotFound) {
		t.Fatalf("err = %v, want ErrQuizNotFound", err)
	}
}

func TestSQLStoreAttemptLifecycle(t *testing.T) {
	dbh := openTestDB(t)
	recorder := progress.NewSQLRecorder(dbh)
	store := quiz.NewSQLStore(dbh, "sqlite", grading.NewGrader(), recorder)
	ctx := context.Background()
	seedQuiz(t, store)

	a, err := store.NewAttempt(ctx, "quiz-1", "learner-1")
	if err != nil {
		t.Fatalf("NewAttempt: %v", err)
	}
	if a.State != quiz.StateInProgress || a.Index != 0 {
		t.Fatalf("fresh attempt = %+v", a)
	}

	// Answer everything correctly except q3.
	if _, err := store.SaveAnswer(ctx, a.ID, "q1", quiz.ChoiceAnswer(0)); err != nil {
		t.Fatalf("SaveAnswer q1: %v", err)
	}
	if _, err := store.SaveAnswer(ctx, a.ID, "q2", quiz.ChoiceAnswer(1)); err != nil {
		t.Fatalf("SaveAnswer q2: %v", err)
	}
	if _, err := store.SaveAnswer(ctx, a.ID, "q3", quiz.TextAnswer("Bulawayo")); err != nil {
		t.Fatalf("SaveAnswer q3: %v", err)
	}

	// Kind mismatch is rejected and changes nothing.
	if _, err := store.SaveAnswer(ctx, a.ID, "q3", quiz.ChoiceAnswer(0)); !errors.Is(err, quiz.ErrKindMismatch) {
		t.Fatalf("err = %v, want ErrKindMismatch", err)
	}

	// Submit is rejected until navigation reaches the last question.
	if _, err := store.Submit(ctx, a.ID); !errors.Is(err, quiz.ErrNotLastQuestion) {
		t.Fatalf("err = %v, want ErrNotLastQuestion", err)
	}
	if _, err := store.Navigate(ctx, a.ID, quiz.NavNext); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if _, err := store.Navigate(ctx, a.ID, quiz.NavNext); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	// Clamped at the last index.
	nav, err := store.Navigate(ctx, a.ID, quiz.NavNext)
	if err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if nav.Index != 2 {
		t.Fatalf("index = %d, want clamped at 2", nav.Index)
	}

	sub, err := store.Submit(ctx, a.ID)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if sub.State != quiz.StateCompleted || sub.Score != 2 {
		t.Fatalf("submitted = %+v, want completed score 2", sub)
	}
	if _, err := store.Submit(ctx, a.ID); !errors.Is(err, quiz.ErrAlreadySubmitted) {
		t.Fatalf("double submit err = %v, want ErrAlreadySubmitted", err)
	}

	p, err := recorder.GetProgress(ctx, "learner-1", "quiz-1")
	if err != nil {
		t.Fatalf("GetProgress: %v", err)
	}
	if p.BestScore != 67 || !p.Completed || len(p.Attempts) != 1 {
		t.Fatalf("progress = %+v, want best 67, one record", p)
	}
}

func TestSQLStoreRetryAppendsNotReplaces(t *testing.T) {
	dbh := openTestDB(t)
	recorder := progress.NewSQLRecorder(dbh)
	store := quiz.NewSQLStore(dbh, "sqlite", grading.NewGrader(), recorder)
	ctx := context.Background()
	seedQuiz(t, store)

	a, _ := store.NewAttempt(ctx, "quiz-1", "learner-1")
	_, _ = store.SaveAnswer(ctx, a.ID, "q1", quiz.ChoiceAnswer(0))
	_, _ = store.SaveAnswer(ctx, a.ID, "q2", quiz.ChoiceAnswer(1))
	_, _ = store.Navigate(ctx, a.ID, quiz.NavNext)
	_, _ = store.Navigate(ctx, a.ID, quiz.NavNext)
	if _, err := store.Submit(ctx, a.ID); err != nil {
		t.Fatalf("first submit: %v", err)
	}

	// Retry without confirmation is refused.
	if _, err := store.Retry(ctx, a.ID, false); !errors.Is(err, quiz.ErrRetryNotConfirmed) {
		t.Fatalf("err = %v, want ErrRetryNotConfirmed", err)
	}
	re, err := store.Retry(ctx, a.ID, true)
	if err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if re.State != quiz.StateInProgress || len(re.Answers) != 0 || re.Index != 0 {
		t.Fatalf("retried attempt = %+v, want clean in_progress", re)
	}

	// Score worse this time: only q1 correct -> 33%.
	_, _ = store.SaveAnswer(ctx, a.ID, "q1", quiz.ChoiceAnswer(0))
	_, _ = store.Navigate(ctx, a.ID, quiz.NavNext)
	_, _ = store.Navigate(ctx, a.ID, quiz.NavNext)
	if _, err := store.Submit(ctx, a.ID); err != nil {
		t.Fatalf("second submit: %v", err)
	}

	p, _ := recorder.GetProgress(ctx, "learner-1", "quiz-1")
	if p.BestScore != 67 {
		t.Fatalf("best = %d, want 67 retained after worse retry", p.BestScore)
	}
	if len(p.Attempts) != 2 {
		t.Fatalf("attempts = %d, want both kept", len(p.Attempts))
	}
	if p.Attempts[1].Percentage != 33 {
		t.Fatalf("second record pct = %d, want 33", p.Attempts[1].Percentage)
	}
}

func TestSQLStoreAbandonedAttemptRecordsNothing(t *testing.T) {
	dbh := openTestDB(t)
	recorder := progress.NewSQLRecorder(dbh)
	store := quiz.NewSQLStore(dbh, "sqlite", grading.NewGrader(), recorder)
	ctx := context.Background()
	seedQuiz(t, store)

	a, _ := store.NewAttempt(ctx, "quiz-1", "learner-1")
	_, _ = store.SaveAnswer(ctx, a.ID, "q1", quiz.ChoiceAnswer(0))
	// Learner walks away; nothing was submitted.

	done, err := recorder.IsCompleted(ctx, "learner-1", "quiz-1")
	if err != nil {
		t.Fatalf("IsCompleted: %v", err)
	}
	if done {
		t.Fatal("abandoned attempt must not mark the quiz completed")
	}
	p, _ := recorder.GetProgress(ctx, "learner-1", "quiz-1")
	if len(p.Attempts) != 0 {
		t.Fatalf("attempts = %d, want none", len(p.Attempts))
	}
}

func TestSQLStoreListAttemptsFilters(t *testing.T) {
	dbh := openTestDB(t)
	store := quiz.NewSQLStore(dbh, "sqlite", grading.NewGrader(), progress.NewSQLRecorder(dbh))
	ctx := context.Background()
	seedQuiz(t, store)

	_, _ = store.NewAttempt(ctx, "quiz-1", "learner-1")
	_, _ = store.NewAttempt(ctx, "quiz-1", "learner-2")

	mine, err := store.ListAttempts(ctx, quiz.AttemptListOpts{LearnerID: "learner-1"})
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(mine) != 1 || mine[0].LearnerID != "learner-1" {
		t.Fatalf("filtered list = %+v", mine)
	}
	all, err := store.ListAttempts(ctx, quiz.AttemptListOpts{QuizID: "quiz-1"})
	if err != nil {
		t.Fatalf("ListAttempts: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("quiz filter returned %d, want 2", len(all))
	}
}

func TestSQLRecorderCompletedCountAcrossQuizzes(t *testing.T) {
	dbh := openTestDB(t)
	recorder := progress.NewSQLRecorder(dbh)
	ctx := context.Background()

	_ = recorder.RecordAttempt(ctx, "l1", "quiz-a", 1, 2)
	_ = recorder.RecordAttempt(ctx, "l1", "quiz-b", 2, 2)
	_ = recorder.RecordAttempt(ctx, "l1", "quiz-a", 2, 2)
	_ = recorder.RecordAttempt(ctx, "l2", "quiz-a", 1, 2)

	n, err := recorder.TotalCompletedQuizzes(ctx, "l1")
	if err != nil {
		t.Fatalf("TotalCompletedQuizzes: %v", err)
	}
	if n != 2 {
		t.Fatalf("completed = %d, want 2", n)
	}
	sum, err := recorder.Summary(ctx, "l1")
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if sum["quiz-a"].BestScore != 100 || sum["quiz-b"].BestScore != 100 {
		t.Fatalf("summary = %+v", sum)
	}
}
