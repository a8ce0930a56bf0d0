package syncx

import (
	"context"
	"database/sql"
	"time"
)

// Event types appended by the assignment store.
const (
	EventDraftSaved       = "DraftSaved"
	EventGameCompleted    = "GameCompleted"
	EventAttemptSubmitted = "AttemptSubmitted"
	EventAttemptGraded    = "AttemptGraded"
)

type Event struct {
	Offset    int64  `json:"offset"`
	SiteID    string `json:"site_id"`
	Type      string `json:"type"`
	Key       string `json:"key"`
	DataJSON  string `json:"data"`
	CreatedAt int64  `json:"created_at"`
}

// Execer is satisfied by both *sql.DB and *sql.Tx so events can be appended
// inside the transaction that produced them.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type EventRepo struct{ db *sql.DB }

func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	return AppendTx(ctx, r.db, e)
}

func AppendTx(ctx context.Context, ex Execer, e Event) error {
	if e.SiteID == "" {
		e.SiteID = "local"
	}
	_, err := ex.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}

// Since returns events after the given offset, oldest first.
func (r *EventRepo) Since(ctx context.Context, offset int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT log_offset, site_id, typ, key, data, created_at FROM event_log
		 WHERE log_offset > $1 ORDER BY log_offset ASC LIMIT $2`, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.Offset, &e.SiteID, &e.Type, &e.Key, &e.DataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
