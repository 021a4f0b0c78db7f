package quiz

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore backs dev mode and tests. Same contract as the SQL store.
type memoryStore struct {
	mu       sync.RWMutex
	quizzes  map[string]Quiz
	attempts map[string]Attempt

	scorer Scorer
	sink   ProgressSink
	now    func() time.Time
}

func NewInMemoryStore(scorer Scorer, sink ProgressSink) Store {
	return &memoryStore{
		quizzes:  map[string]Quiz{},
		attempts: map[string]Attempt{},
		scorer:   scorer,
		sink:     sink,
		now:      time.Now,
	}
}

func (m *memoryStore) PutQuiz(_ context.Context, q Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q.CreatedAt == 0 {
		q.CreatedAt = m.now().Unix()
	}
	m.quizzes[q.ID] = q
	return nil
}

func (m *memoryStore) GetQuiz(ctx context.Context, id string) (Quiz, error) {
	q, err := m.GetQuizFull(ctx, id)
	if err != nil {
		return Quiz{}, err
	}
	return q.Sanitize(), nil
}

func (m *memoryStore) GetQuizFull(_ context.Context, id string) (Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok {
		return Quiz{}, ErrQuizNotFound
	}
	return q, nil
}

func (m *memoryStore) ListQuizzes(_ context.Context, opts ListOpts) ([]QuizSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]QuizSummary, 0, len(m.quizzes))
	needle := strings.ToLower(opts.Q)
	for _, q := range m.quizzes {
		if needle != "" && !strings.Contains(strings.ToLower(q.Title), needle) {
			continue
		}
		out = append(out, QuizSummary{
			ID:            q.ID,
			Title:         q.Title,
			Subject:       q.Subject,
			Grade:         q.Grade,
			QuestionCount: len(q.Questions),
			CreatedAt:     q.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	return paginate(out, opts.Limit, opts.Offset), nil
}

func (m *memoryStore) NewAttempt(_ context.Context, quizID, learnerID string) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[quizID]
	if !ok {
		return Attempt{}, ErrQuizNotFound
	}
	a := Attempt{ID: uuid.NewString(), QuizID: quizID, LearnerID: learnerID}
	if err := a.Begin(len(q.Questions)); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = m.now().Unix()
	m.attempts[a.ID] = a
	return a, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, id string) (Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.attempts[id]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	a.Answers = a.Answers.Clone()
	return a, nil
}

func (m *memoryStore) SaveAnswer(_ context.Context, attemptID, questionID string, ans Answer) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	q := m.quizzes[a.QuizID]
	a.Answers = a.Answers.Clone()
	if err := a.SetAnswer(q.Questions, questionID, ans); err != nil {
		return Attempt{}, err
	}
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) Navigate(_ context.Context, attemptID string, op NavOp) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	switch op {
	case NavNext:
		a.Next()
	case NavPrevious:
		a.Previous()
	case NavReset:
		a.Answers = a.Answers.Clone()
		a.Reset()
	}
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) Submit(ctx context.Context, attemptID string) (Attempt, error) {
	m.mu.Lock()
	a, ok := m.attempts[attemptID]
	if !ok {
		m.mu.Unlock()
		return Attempt{}, ErrAttemptNotFound
	}
	q := m.quizzes[a.QuizID]
	if err := a.BeginSubmit(); err != nil {
		m.mu.Unlock()
		return Attempt{}, err
	}
	m.attempts[attemptID] = a // submitting: blocks overlapping submits
	questions := q.Questions
	answers := a.Answers.Clone()
	learnerID, quizID := a.LearnerID, a.QuizID
	m.mu.Unlock()

	score := m.scorer.Score(questions, answers)

	if m.sink != nil {
		if err := m.sink.RecordAttempt(ctx, learnerID, quizID, score, len(questions)); err != nil {
			m.mu.Lock()
			a = m.attempts[attemptID]
			a.RevertSubmit()
			m.attempts[attemptID] = a
			m.mu.Unlock()
			return Attempt{}, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	a = m.attempts[attemptID]
	a.CompleteSubmit(score, m.now().Unix())
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) Retry(_ context.Context, attemptID string, confirmed bool) (Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.attempts[attemptID]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	if err := a.BeginRetry(confirmed); err != nil {
		return Attempt{}, err
	}
	a.StartedAt = m.now().Unix()
	m.attempts[attemptID] = a
	return a, nil
}

func (m *memoryStore) ListAttempts(_ context.Context, opts AttemptListOpts) ([]Attempt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Attempt, 0)
	for _, a := range m.attempts {
		if opts.QuizID != "" && a.QuizID != opts.QuizID {
			continue
		}
		if opts.LearnerID != "" && a.LearnerID != opts.LearnerID {
			continue
		}
		if opts.State != "" && string(a.State) != opts.State {
			continue
		}
		a.Answers = a.Answers.Clone()
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt > out[j].StartedAt })
	return paginate(out, opts.Limit, opts.Offset), nil
}

func paginate[T any](in []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(in) {
			return []T{}
		}
		in = in[offset:]
	}
	if limit > 0 && limit < len(in) {
		in = in[:limit]
	}
	return in
}
