package quiz

import (
	"context"
	"errors"
)

var (
	ErrQuizNotFound    = errors.New("quiz not found")
	ErrAttemptNotFound = errors.New("attempt not found")
)

type ListOpts struct {
	Q      string // title substring filter
	Limit  int
	Offset int
}

type AttemptListOpts struct {
	QuizID    string
	LearnerID string
	State     string // optional: in_progress|completed
	Limit     int
	Offset    int
}

// NavOp is a navigation operation on an attempt. All ops clamp silently at
// the boundaries.
type NavOp string

const (
	NavNext     NavOp = "next"
	NavPrevious NavOp = "previous"
	NavReset    NavOp = "reset"
)

// Store is the server-side persistence surface for quizzes and attempts.
// GetQuiz strips answer keys; GetQuizFull keeps them for grading and
// authoring views.
type Store interface {
	PutQuiz(ctx context.Context, q Quiz) error
	GetQuiz(ctx context.Context, id string) (Quiz, error)
	GetQuizFull(ctx context.Context, id string) (Quiz, error)
	ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error)

	NewAttempt(ctx context.Context, quizID, learnerID string) (Attempt, error)
	GetAttempt(ctx context.Context, id string) (Attempt, error)
	SaveAnswer(ctx context.Context, attemptID, questionID string, ans Answer) (Attempt, error)
	Navigate(ctx context.Context, attemptID string, op NavOp) (Attempt, error)
	Submit(ctx context.Context, attemptID string) (Attempt, error)
	Retry(ctx context.Context, attemptID string, confirmed bool) (Attempt, error)
	ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error)
}

// SourceFromStore adapts a Store into a QuestionSource for offline sessions.
// Question ordering is stable because stores keep the authored JSON array.
func SourceFromStore(s Store) QuestionSource { return storeSource{s} }

type storeSource struct{ s Store }

func (ss storeSource) Questions(ctx context.Context, quizID string) ([]Question, error) {
	q, err := ss.s.GetQuizFull(ctx, quizID)
	if err != nil {
		return nil, err
	}
	return q.Questions, nil
}
