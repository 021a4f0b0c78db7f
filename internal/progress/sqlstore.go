package progress

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// SQLRecorder is the server-side recorder: one attempt_records row per
// submission plus a quiz_progress aggregate row per learner+quiz.
type SQLRecorder struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLRecorder(db *sql.DB) *SQLRecorder {
	return &SQLRecorder{db: db, now: time.Now}
}

func (s *SQLRecorder) RecordAttempt(ctx context.Context, learnerID, quizID string, score, total int) error {
	pct := Percentage(score, total)
	completedAt := nowUnix(s.now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO attempt_records
		(id,learner_id,quiz_id,score,total_questions,percentage,completed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		uuid.NewString(), learnerID, quizID, score, total, pct, completedAt)
	if err != nil {
		return err
	}

	// Aggregate row: best score only ever goes up, completed never reverts.
	_, err = tx.ExecContext(ctx, `INSERT INTO quiz_progress
		(learner_id,quiz_id,best_score,last_attempt,completed)
		VALUES ($1,$2,$3,$4,TRUE)
		ON CONFLICT (learner_id,quiz_id) DO UPDATE SET
			best_score=CASE WHEN EXCLUDED.best_score > quiz_progress.best_score
				THEN EXCLUDED.best_score ELSE quiz_progress.best_score END,
			last_attempt=EXCLUDED.last_attempt,
			completed=TRUE`,
		learnerID, quizID, pct, completedAt)
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SQLRecorder) GetProgress(ctx context.Context, learnerID, quizID string) (QuizProgress, error) {
	p := QuizProgress{QuizID: quizID, Attempts: []AttemptRecord{}}

	row := s.db.QueryRowContext(ctx, `SELECT best_score,last_attempt,completed
		FROM quiz_progress WHERE learner_id=$1 AND quiz_id=$2`, learnerID, quizID)
	if err := row.Scan(&p.BestScore, &p.LastAttempt, &p.Completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return p, nil // zero-value default: no attempts yet
		}
		return QuizProgress{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id,score,total_questions,percentage,completed_at
		FROM attempt_records WHERE learner_id=$1 AND quiz_id=$2 ORDER BY completed_at ASC, id ASC`,
		learnerID, quizID)
	if err != nil {
		return QuizProgress{}, err
	}
	defer rows.Close()
	for rows.Next() {
		rec := AttemptRecord{QuizID: quizID}
		if err := rows.Scan(&rec.ID, &rec.Score, &rec.TotalQuestions, &rec.Percentage, &rec.CompletedAt); err != nil {
			return QuizProgress{}, err
		}
		p.Attempts = append(p.Attempts, rec)
	}
	return p, rows.Err()
}

func (s *SQLRecorder) IsCompleted(ctx context.Context, learnerID, quizID string) (bool, error) {
	var completed bool
	row := s.db.QueryRowContext(ctx, `SELECT completed FROM quiz_progress
		WHERE learner_id=$1 AND quiz_id=$2`, learnerID, quizID)
	if err := row.Scan(&completed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return completed, nil
}

func (s *SQLRecorder) TotalCompletedQuizzes(ctx context.Context, learnerID string) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_progress
		WHERE learner_id=$1 AND completed`, learnerID)
	if err := row.Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *SQLRecorder) Summary(ctx context.Context, learnerID string) (map[string]QuizProgress, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT quiz_id FROM quiz_progress WHERE learner_id=$1`, learnerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make(map[string]QuizProgress, len(ids))
	for _, id := range ids {
		p, err := s.GetProgress(ctx, learnerID, id)
		if err != nil {
			return nil, err
		}
		out[id] = p
	}
	return out, nil
}
