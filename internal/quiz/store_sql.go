package quiz

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// SQLStore persists quizzes and attempts in sqlite or postgres (same
// placeholder style works for both drivers in use).
type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
	scorer Scorer
	sink   ProgressSink
	now    func() time.Time
}

func NewSQLStore(db *sql.DB, driver string, scorer Scorer, sink ProgressSink) *SQLStore {
	return &SQLStore{db: db, driver: driver, scorer: scorer, sink: sink, now: time.Now}
}

func (s *SQLStore) PutQuiz(ctx context.Context, q Quiz) error {
	qj, err := json.Marshal(q.Questions)
	if err != nil {
		return err
	}
	created := q.CreatedAt
	if created == 0 {
		created = s.now().Unix()
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO quizzes (id,title,subject,grade,questions_json,created_by,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET title=EXCLUDED.title, subject=EXCLUDED.subject,
			grade=EXCLUDED.grade, questions_json=EXCLUDED.questions_json`,
		q.ID, q.Title, q.Subject, q.Grade, string(qj), q.CreatedBy, created)
	return err
}

func (s *SQLStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := s.GetQuizFull(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return q.Sanitize(), nil
}

func (s *SQLStore) GetQuizFull(ctx context.Context, id string) (Quiz, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id,title,subject,grade,questions_json,created_by,created_at FROM quizzes WHERE id=$1`, id)
	var q Quiz
	var qjson string
	if err := row.Scan(&q.ID, &q.Title, &q.Subject, &q.Grade, &qjson, &q.CreatedBy, &q.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Quiz{}, ErrQuizNotFound
		}
		return Quiz{}, err
	}
	if err := json.Unmarshal([]byte(qjson), &q.Questions); err != nil {
		return Quiz{}, fmt.Errorf("quiz %s: bad questions payload: %w", id, err)
	}
	return q, nil
}

func (s *SQLStore) ListQuizzes(ctx context.Context, opts ListOpts) ([]QuizSummary, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id,title,subject,grade,questions_json,created_at FROM quizzes`
	args := []any{}
	if q := strings.TrimSpace(opts.Q); q != "" {
		query += ` WHERE lower(title) LIKE $1`
		args = append(args, "%"+strings.ToLower(q)+"%")
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d OFFSET %d`, limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []QuizSummary{}
	for rows.Next() {
		var sum QuizSummary
		var qjson string
		if err := rows.Scan(&sum.ID, &sum.Title, &sum.Subject, &sum.Grade, &qjson, &sum.CreatedAt); err != nil {
			return nil, err
		}
		var qs []Question
		if err := json.Unmarshal([]byte(qjson), &qs); err == nil {
			sum.QuestionCount = len(qs)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

func (s *SQLStore) NewAttempt(ctx context.Context, quizID, learnerID string) (Attempt, error) {
	q, err := s.GetQuizFull(ctx, quizID)
	if err != nil {
		return Attempt{}, err
	}
	a := Attempt{ID: uuid.NewString(), QuizID: quizID, LearnerID: learnerID}
	if err := a.Begin(len(q.Questions)); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = s.now().Unix()
	aj, _ := EncodeLedger(a.Answers)
	_, err = s.db.ExecContext(ctx, `INSERT INTO attempts
		(id,quiz_id,learner_id,state,score,total_questions,current_index,answers_json,started_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ID, a.QuizID, a.LearnerID, string(a.State), a.Score, a.TotalQuestions, a.Index, aj, a.StartedAt)
	if err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) GetAttempt(ctx context.Context, id string) (Attempt, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,quiz_id,learner_id,state,score,total_questions,
		current_index,answers_json,started_at,COALESCE(submitted_at,0)
		FROM attempts WHERE id=$1`, id)
	var a Attempt
	var state, aj string
	if err := row.Scan(&a.ID, &a.QuizID, &a.LearnerID, &state, &a.Score, &a.TotalQuestions,
		&a.Index, &aj, &a.StartedAt, &a.SubmittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Attempt{}, ErrAttemptNotFound
		}
		return Attempt{}, err
	}
	a.State = State(state)
	a.Answers = DecodeLedger(aj)
	return a, nil
}

func (s *SQLStore) SaveAnswer(ctx context.Context, attemptID, questionID string, ans Answer) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	q, err := s.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		return Attempt{}, err
	}
	if err := a.SetAnswer(q.Questions, questionID, ans); err != nil {
		return Attempt{}, err
	}
	if err := s.writeAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) Navigate(ctx context.Context, attemptID string, op NavOp) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	switch op {
	case NavNext:
		a.Next()
	case NavPrevious:
		a.Previous()
	case NavReset:
		a.Reset()
	default:
		return Attempt{}, fmt.Errorf("unknown navigation op %q", op)
	}
	if err := s.writeAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

// Submit grades the attempt and records progress. The submitting state is
// never persisted: any failure before the final update leaves the row
// in_progress, so a failed submission is retryable and is never silently
// marked completed.
func (s *SQLStore) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if err := a.BeginSubmit(); err != nil {
		return Attempt{}, err
	}
	q, err := s.GetQuizFull(ctx, a.QuizID)
	if err != nil {
		a.RevertSubmit()
		return Attempt{}, err
	}

	score := s.scorer.Score(q.Questions, a.Answers)

	if s.sink != nil {
		if err := s.sink.RecordAttempt(ctx, a.LearnerID, a.QuizID, score, len(q.Questions)); err != nil {
			a.RevertSubmit()
			return Attempt{}, fmt.Errorf("record attempt: %w", err)
		}
	}

	a.CompleteSubmit(score, s.now().Unix())
	if err := s.writeAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) Retry(ctx context.Context, attemptID string, confirmed bool) (Attempt, error) {
	a, err := s.GetAttempt(ctx, attemptID)
	if err != nil {
		return Attempt{}, err
	}
	if err := a.BeginRetry(confirmed); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = s.now().Unix()
	if err := s.writeAttempt(ctx, a); err != nil {
		return Attempt{}, err
	}
	return a, nil
}

func (s *SQLStore) ListAttempts(ctx context.Context, opts AttemptListOpts) ([]Attempt, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if opts.QuizID != "" {
		add("quiz_id=$%d", opts.QuizID)
	}
	if opts.LearnerID != "" {
		add("learner_id=$%d", opts.LearnerID)
	}
	if opts.State != "" {
		add("state=$%d", opts.State)
	}
	query := `SELECT id,quiz_id,learner_id,state,score,total_questions,current_index,answers_json,
		started_at,COALESCE(submitted_at,0) FROM attempts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY started_at DESC LIMIT %d OFFSET %d", limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Attempt{}
	for rows.Next() {
		var a Attempt
		var state, aj string
		if err := rows.Scan(&a.ID, &a.QuizID, &a.LearnerID, &state, &a.Score, &a.TotalQuestions,
			&a.Index, &aj, &a.StartedAt, &a.SubmittedAt); err != nil {
			return nil, err
		}
		a.State = State(state)
		a.Answers = DecodeLedger(aj)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLStore) writeAttempt(ctx context.Context, a Attempt) error {
	aj, err := EncodeLedger(a.Answers)
	if err != nil {
		return err
	}
	var submitted any
	if a.SubmittedAt != 0 {
		submitted = a.SubmittedAt
	}
	_, err = s.db.ExecContext(ctx, `UPDATE attempts SET state=$1, score=$2, current_index=$3,
		answers_json=$4, submitted_at=$5, started_at=$6 WHERE id=$7`,
		string(a.State), a.Score, a.Index, aj, submitted, a.StartedAt, a.ID)
	return err
}
