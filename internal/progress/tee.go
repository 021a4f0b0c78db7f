package progress

import "context"

// TeeRecorder records into both recorders and reads from the primary. The
// secondary (the file documents in offline installs) is a supplementary
// cache; its read path is only used when the primary has nothing, so a
// rebuilt database still shows the learner's local history.
type TeeRecorder struct {
	primary   Recorder
	secondary Recorder
}

func NewTeeRecorder(primary, secondary Recorder) *TeeRecorder {
	return &TeeRecorder{primary: primary, secondary: secondary}
}

func (t *TeeRecorder) RecordAttempt(ctx context.Context, learnerID, quizID string, score, total int) error {
	if err := t.primary.RecordAttempt(ctx, learnerID, quizID, score, total); err != nil {
		return err
	}
	// The file recorder swallows its own failures; this keeps the tee's
	// error surface identical to the primary's.
	return t.secondary.RecordAttempt(ctx, learnerID, quizID, score, total)
}

func (t *TeeRecorder) GetProgress(ctx context.Context, learnerID, quizID string) (QuizProgress, error) {
	p, err := t.primary.GetProgress(ctx, learnerID, quizID)
	if err != nil {
		return QuizProgress{}, err
	}
	if !p.Completed {
		if fp, ferr := t.secondary.GetProgress(ctx, learnerID, quizID); ferr == nil && fp.Completed {
			return fp, nil
		}
	}
	return p, nil
}

func (t *TeeRecorder) IsCompleted(ctx context.Context, learnerID, quizID string) (bool, error) {
	p, err := t.GetProgress(ctx, learnerID, quizID)
	if err != nil {
		return false, err
	}
	return p.Completed, nil
}

func (t *TeeRecorder) TotalCompletedQuizzes(ctx context.Context, learnerID string) (int, error) {
	all, err := t.Summary(ctx, learnerID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, p := range all {
		if p.Completed {
			n++
		}
	}
	return n, nil
}

func (t *TeeRecorder) Summary(ctx context.Context, learnerID string) (map[string]QuizProgress, error) {
	out, err := t.primary.Summary(ctx, learnerID)
	if err != nil {
		return nil, err
	}
	if sec, ferr := t.secondary.Summary(ctx, learnerID); ferr == nil {
		for id, p := range sec {
			if _, ok := out[id]; !ok {
				out[id] = p
			}
		}
	}
	return out, nil
}
