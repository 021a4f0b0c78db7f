// Package syncx appends domain events for later reconciliation with the
// central server. The quiz engine emits one AttemptSubmitted event per
// completed attempt; a sync job can drain the log by offset.
package syncx

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const TypeAttemptSubmitted = "AttemptSubmitted"

type Event struct {
	Offset    int64  `json:"offset"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"` // natural key: attemptID
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// AttemptSubmitted is the payload forwarded to the central server when a
// site syncs.
type AttemptSubmitted struct {
	QuizID         string `json:"quiz_id"`
	Score          int    `json:"score"`
	TotalQuestions int    `json:"total_questions"`
	LearnerID      string `json:"learner_id"`
}

type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, typ, key string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(data), time.Now().Unix())
	return err
}

// ListSince returns events with offset greater than after, oldest first.
func (r *EventRepo) ListSince(ctx context.Context, after int64, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT "offset", site_id, typ, key, data, created_at FROM event_log
		 WHERE "offset" > $1 ORDER BY "offset" ASC LIMIT $2`, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
