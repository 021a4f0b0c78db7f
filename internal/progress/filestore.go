package progress

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileRecorder keeps one JSON document per learner under base, at the key
// quiz_progress_{learnerID}. This is the durable local store used in offline
// mode; it supplements, not replaces, whatever the server records.
//
// Failure policy: a missing, unreadable or corrupt document reads as empty
// progress, and write failures are logged and swallowed. Losing the local
// cache must never break the quiz-taking flow.
type FileRecorder struct {
	mu   sync.Mutex
	base string
	logf *log.Logger
	now  func() time.Time
}

func NewFileRecorder(base string, logf *log.Logger) (*FileRecorder, error) {
	if base == "" {
		base = "./data/progress"
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return nil, err
	}
	if logf == nil {
		logf = log.Default()
	}
	return &FileRecorder{base: base, logf: logf, now: time.Now}, nil
}

func (f *FileRecorder) path(learnerID string) string {
	key := "quiz_progress_" + sanitizeKey(learnerID) + ".json"
	return filepath.Join(f.base, key)
}

func sanitizeKey(s string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", "..", "_")
	return r.Replace(s)
}

func (f *FileRecorder) RecordAttempt(_ context.Context, learnerID, quizID string, score, total int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.load(learnerID)
	p := all[quizID]
	p.apply(quizID, score, total, nowUnix(f.now))
	all[quizID] = p
	if err := f.save(learnerID, all); err != nil {
		f.logf.Printf("progress: write for learner %s failed: %v", learnerID, err)
	}
	return nil
}

func (f *FileRecorder) GetProgress(_ context.Context, learnerID, quizID string) (QuizProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.load(learnerID)[quizID]
	if !ok {
		return QuizProgress{QuizID: quizID, Attempts: []AttemptRecord{}}, nil
	}
	return p, nil
}

func (f *FileRecorder) IsCompleted(ctx context.Context, learnerID, quizID string) (bool, error) {
	p, err := f.GetProgress(ctx, learnerID, quizID)
	if err != nil {
		return false, err
	}
	return p.Completed, nil
}

func (f *FileRecorder) TotalCompletedQuizzes(_ context.Context, learnerID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.load(learnerID) {
		if p.Completed {
			n++
		}
	}
	return n, nil
}

func (f *FileRecorder) Summary(_ context.Context, learnerID string) (map[string]QuizProgress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.load(learnerID), nil
}

// load never fails: anything wrong with the document degrades to empty
// progress, logged once per read.
func (f *FileRecorder) load(learnerID string) map[string]QuizProgress {
	buf, err := os.ReadFile(f.path(learnerID))
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			f.logf.Printf("progress: read for learner %s failed: %v", learnerID, err)
		}
		return map[string]QuizProgress{}
	}
	var all map[string]QuizProgress
	if err := json.Unmarshal(buf, &all); err != nil || all == nil {
		f.logf.Printf("progress: corrupt document for learner %s, starting empty", learnerID)
		return map[string]QuizProgress{}
	}
	return all
}

func (f *FileRecorder) save(learnerID string, all map[string]QuizProgress) error {
	buf, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}
	tmp := f.path(learnerID) + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(learnerID))
}
