package quiz

import (
	"errors"
	"fmt"
)

// State is the attempt lifecycle. Legal transitions:
//
//	NotStarted -> InProgress           (start: load questions, reset ledger)
//	InProgress -> InProgress           (answer / navigate)
//	InProgress -> Submitting           (submit, last question only)
//	Submitting -> Completed            (score recorded)
//	Submitting -> InProgress           (recording failed, attempt survives)
//	Completed  -> InProgress           (retry, confirmed; history untouched)
//	any        -> NotStarted           (close, nothing recorded)
type State string

const (
	StateNotStarted State = "not_started"
	StateInProgress State = "in_progress"
	StateSubmitting State = "submitting"
	StateCompleted  State = "completed"
)

var (
	ErrNotInProgress     = errors.New("attempt not in progress")
	ErrNotLastQuestion   = errors.New("submit is only allowed from the last question")
	ErrKindMismatch      = errors.New("answer kind does not match question kind")
	ErrUnknownQuestion   = errors.New("question not part of this quiz")
	ErrAlreadySubmitted  = errors.New("attempt already submitted")
	ErrNoQuestions       = errors.New("quiz has no questions")
	ErrRetryNotConfirmed = errors.New("retry requires confirmation")
)

// Attempt is one learner's pass through a quiz. The methods below hold every
// lifecycle rule; stores and the offline session both go through them so the
// rules exist in exactly one place. Methods are not goroutine safe; callers
// serialize (Session with its mutex, stores via their own locking or row
// read-modify-write).
type Attempt struct {
	ID        string `json:"id"`
	QuizID    string `json:"quiz_id"`
	LearnerID string `json:"learner_id"`
	State     State  `json:"state"`
	Index     int    `json:"current_index"`
	Answers   Ledger `json:"answers"`

	Score          int   `json:"score"`
	TotalQuestions int   `json:"total_questions"`
	StartedAt      int64 `json:"started_at"`
	SubmittedAt    int64 `json:"submitted_at,omitempty"`
}

// Begin puts a fresh attempt into InProgress over the given question count.
func (a *Attempt) Begin(questionCount int) error {
	if questionCount <= 0 {
		return ErrNoQuestions
	}
	a.State = StateInProgress
	a.Index = 0
	a.Answers = Ledger{}
	a.TotalQuestions = questionCount
	a.Score = 0
	a.SubmittedAt = 0
	return nil
}

// SetAnswer records (or overwrites) an answer. The value is not checked for
// correctness here; that is the scorer's job. Only the kind tag is enforced.
func (a *Attempt) SetAnswer(questions []Question, questionID string, ans Answer) error {
	if a.State != StateInProgress {
		return ErrNotInProgress
	}
	q, ok := findQuestion(questions, questionID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownQuestion, questionID)
	}
	if !ans.Matches(q) {
		return fmt.Errorf("%w: question %s wants %s", ErrKindMismatch, questionID, q.Kind)
	}
	if err := ans.Validate(); err != nil {
		return err
	}
	if a.Answers == nil {
		a.Answers = Ledger{}
	}
	a.Answers[questionID] = ans
	return nil
}

// Next advances the current index, clamping silently at the last question.
func (a *Attempt) Next() {
	if a.State == StateInProgress && a.Index < a.TotalQuestions-1 {
		a.Index++
	}
}

// Previous retreats the current index, clamping silently at zero.
func (a *Attempt) Previous() {
	if a.State == StateInProgress && a.Index > 0 {
		a.Index--
	}
}

// Reset returns to the first question and clears the ledger.
func (a *Attempt) Reset() {
	if a.State != StateInProgress {
		return
	}
	a.Index = 0
	a.Answers = Ledger{}
}

// AtLastQuestion reports whether submit is reachable.
func (a *Attempt) AtLastQuestion() bool {
	return a.TotalQuestions > 0 && a.Index == a.TotalQuestions-1
}

// BeginSubmit moves InProgress -> Submitting. Unanswered questions are not an
// error; they grade as incorrect.
func (a *Attempt) BeginSubmit() error {
	switch a.State {
	case StateSubmitting, StateCompleted:
		return ErrAlreadySubmitted
	case StateInProgress:
	default:
		return ErrNotInProgress
	}
	if !a.AtLastQuestion() {
		return ErrNotLastQuestion
	}
	a.State = StateSubmitting
	return nil
}

// CompleteSubmit finalizes a successful submission.
func (a *Attempt) CompleteSubmit(score int, submittedAt int64) {
	a.Score = score
	a.SubmittedAt = submittedAt
	a.State = StateCompleted
}

// RevertSubmit returns a failed submission to InProgress so the learner can
// retry the submit. Never reached Completed, so nothing was recorded.
func (a *Attempt) RevertSubmit() {
	if a.State == StateSubmitting {
		a.State = StateInProgress
	}
}

// BeginRetry re-enters InProgress from Completed after explicit confirmation.
// Prior records are never touched; the caller appends a new record on the
// next submit.
func (a *Attempt) BeginRetry(confirmed bool) error {
	if a.State != StateCompleted {
		return fmt.Errorf("retry from %s not allowed", a.State)
	}
	if !confirmed {
		return ErrRetryNotConfirmed
	}
	return a.Begin(a.TotalQuestions)
}

// Close abandons the attempt. Nothing is recorded for an attempt closed
// before Completed.
func (a *Attempt) Close() {
	a.State = StateNotStarted
	a.Index = 0
	a.Answers = Ledger{}
}

func findQuestion(questions []Question, id string) (Question, bool) {
	for _, q := range questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
