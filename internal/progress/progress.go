// Package progress keeps per-learner, per-quiz attempt history and the
// derived best score. History is append-only: a retry adds a record, it
// never replaces one, and the best score keeps the maximum ever achieved.
package progress

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AttemptRecord is the immutable result of one completed attempt.
type AttemptRecord struct {
	ID             string `json:"id"`
	QuizID         string `json:"quiz_id"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
	Percentage     int    `json:"percentage"`
	CompletedAt    int64  `json:"completed_at"`
}

// QuizProgress aggregates all of a learner's records for one quiz.
// BestScore is monotone non-decreasing; Completed never reverts to false.
type QuizProgress struct {
	QuizID      string          `json:"quiz_id"`
	Attempts    []AttemptRecord `json:"attempts"`
	BestScore   int             `json:"best_score"` // percentage
	LastAttempt int64           `json:"last_attempt"`
	Completed   bool            `json:"completed"`
}

// Percentage rounds 100*score/total half-up to an integer.
func Percentage(score, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*score + total) / (2 * total)
}

// Recorder persists attempt outcomes and answers completion queries.
type Recorder interface {
	RecordAttempt(ctx context.Context, learnerID, quizID string, score, totalQuestions int) error
	GetProgress(ctx context.Context, learnerID, quizID string) (QuizProgress, error)
	IsCompleted(ctx context.Context, learnerID, quizID string) (bool, error)
	TotalCompletedQuizzes(ctx context.Context, learnerID string) (int, error)
	// Summary returns every quiz the learner has progress for.
	Summary(ctx context.Context, learnerID string) (map[string]QuizProgress, error)
}

// apply folds one outcome into the aggregate. Shared by both recorder
// implementations so the max-wins and append-only rules live in one place.
func (p *QuizProgress) apply(quizID string, score, total int, completedAt int64) AttemptRecord {
	rec := AttemptRecord{
		ID:             uuid.NewString(),
		QuizID:         quizID,
		Score:          score,
		TotalQuestions: total,
		Percentage:     Percentage(score, total),
		CompletedAt:    completedAt,
	}
	p.QuizID = quizID
	p.Attempts = append(p.Attempts, rec)
	if rec.Percentage > p.BestScore {
		p.BestScore = rec.Percentage
	}
	p.LastAttempt = completedAt
	p.Completed = true
	return rec
}

func nowUnix(clock func() time.Time) int64 {
	if clock == nil {
		return time.Now().Unix()
	}
	return clock().Unix()
}
