package quiz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// QuestionSource yields the ordered question set for a quiz. Implementations
// must return the same ordering on repeated calls within one attempt.
type QuestionSource interface {
	Questions(ctx context.Context, quizID string) ([]Question, error)
}

// Scorer computes the number of correctly answered questions. Implemented by
// grading.Grader.
type Scorer interface {
	Score(questions []Question, answers Ledger) int
}

// ProgressSink receives the outcome of a completed attempt. Implemented by
// progress recorders.
type ProgressSink interface {
	RecordAttempt(ctx context.Context, learnerID, quizID string, score, totalQuestions int) error
}

// ErrSuperseded is returned when a question load resolves after the session
// has been closed or restarted; the stale result is discarded.
var ErrSuperseded = errors.New("quiz load superseded")

// Result is the outcome of one submitted attempt.
type Result struct {
	QuizID         string `json:"quiz_id"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
}

// Session drives one learner through one quiz: load questions, record
// answers, navigate, submit, retry. Dependencies are injected rather than
// read from ambient state, so the engine is testable in isolation.
type Session struct {
	mu sync.Mutex

	learnerID string
	quizID    string
	source    QuestionSource
	scorer    Scorer
	sink      ProgressSink
	now       func() time.Time

	attempt   Attempt
	questions []Question
	gen       uint64 // load generation; bumped on close/restart
}

type SessionOption func(*Session)

// WithSink attaches a progress recorder; without one a submit scores but
// records nothing.
func WithSink(s ProgressSink) SessionOption { return func(se *Session) { se.sink = s } }

func WithClock(now func() time.Time) SessionOption { return func(se *Session) { se.now = now } }

func NewSession(learnerID, quizID string, source QuestionSource, scorer Scorer, opts ...SessionOption) *Session {
	s := &Session{
		learnerID: learnerID,
		quizID:    quizID,
		source:    source,
		scorer:    scorer,
		now:       time.Now,
		attempt:   Attempt{QuizID: quizID, LearnerID: learnerID, State: StateNotStarted},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Start loads the questions and enters InProgress. The load happens outside
// the lock; a Close or second Start that lands in between bumps the
// generation and the stale result is dropped instead of clobbering the newer
// session state.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.attempt.State {
	case StateInProgress, StateSubmitting:
		s.mu.Unlock()
		return fmt.Errorf("attempt already started")
	}
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	qs, err := s.source.Questions(ctx, s.quizID)
	if err != nil {
		return fmt.Errorf("load questions: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return ErrSuperseded
	}
	if err := s.attempt.Begin(len(qs)); err != nil {
		return err
	}
	s.questions = qs
	s.attempt.StartedAt = s.now().Unix()
	return nil
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.State
}

// Current returns the question the navigation index points at.
func (s *Session) Current() (Question, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempt.State != StateInProgress || s.attempt.Index >= len(s.questions) {
		return Question{}, false
	}
	return s.questions[s.attempt.Index], true
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.Index
}

func (s *Session) Next() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt.Next()
}

func (s *Session) Previous() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt.Previous()
}

func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempt.Reset()
}

func (s *Session) SetAnswer(questionID string, ans Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt.SetAnswer(s.questions, questionID, ans)
}

// AnswerFor returns the recorded answer, or ok=false when unanswered.
func (s *Session) AnswerFor(questionID string) (Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attempt.Answers[questionID]
	return a, ok
}

// Snapshot returns copies of the question set and ledger, for review.
func (s *Session) Snapshot() ([]Question, Ledger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	qs := make([]Question, len(s.questions))
	copy(qs, s.questions)
	return qs, s.attempt.Answers.Clone()
}

// Submit scores the attempt and records the result. Only reachable from the
// last question. A failed recording reverts to InProgress; the attempt is
// never silently marked Completed.
func (s *Session) Submit(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if err := s.attempt.BeginSubmit(); err != nil {
		s.mu.Unlock()
		return Result{}, err
	}
	questions := make([]Question, len(s.questions))
	copy(questions, s.questions)
	answers := s.attempt.Answers.Clone()
	s.mu.Unlock()

	score := s.scorer.Score(questions, answers)
	total := len(questions)

	if s.sink != nil {
		if err := s.sink.RecordAttempt(ctx, s.learnerID, s.quizID, score, total); err != nil {
			s.mu.Lock()
			s.attempt.RevertSubmit()
			s.mu.Unlock()
			return Result{}, fmt.Errorf("record attempt: %w", err)
		}
	}

	s.mu.Lock()
	s.attempt.CompleteSubmit(score, s.now().Unix())
	s.mu.Unlock()
	return Result{QuizID: s.quizID, Score: score, TotalQuestions: total}, nil
}

// Retry starts a fresh pass after a completed one. Requires confirmation;
// prior attempt records stay untouched.
func (s *Session) Retry(ctx context.Context, confirmed bool) error {
	s.mu.Lock()
	if err := s.attempt.BeginRetry(confirmed); err != nil {
		s.mu.Unlock()
		return err
	}
	// Back to a clean slate; reload questions under a fresh generation so a
	// still-inflight earlier load cannot land on the new pass.
	s.attempt.State = StateNotStarted
	s.mu.Unlock()
	return s.Start(ctx)
}

// Close abandons the attempt without recording anything and invalidates any
// in-flight question load.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.questions = nil
	s.attempt.Close()
}
