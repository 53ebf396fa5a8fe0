package deadletter

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"interaction-gateway/internal/model"
)

// Querier is the part of *pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Store keeps events whose publish failed until they are replayed.
type Store struct {
	db  Querier
	now func() time.Time
}

// NewStore creates a Store on top of db.
func NewStore(db Querier) *Store {
	return &Store{db: db, now: time.Now}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS dead_letters (
	id          TEXT PRIMARY KEY,
	event_id    TEXT NOT NULL,
	user_id     TEXT NOT NULL,
	event_type  TEXT NOT NULL,
	payload     JSONB NOT NULL,
	reason      TEXT NOT NULL,
	failed_at   TIMESTAMPTZ NOT NULL,
	replayed_at TIMESTAMPTZ
)`,
	`CREATE INDEX IF NOT EXISTS dead_letters_pending_idx ON dead_letters (failed_at) WHERE replayed_at IS NULL`,
}

const (
	insertQuery = `
	INSERT INTO dead_letters (id, event_id, user_id, event_type, payload, reason, failed_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO NOTHING
`
	pendingQuery = `
	SELECT id, event_id, user_id, event_type, payload, reason, failed_at
	FROM dead_letters
	WHERE replayed_at IS NULL AND (failed_at, id) > ($1, $2)
	ORDER BY failed_at, id
	LIMIT $3
`
	markReplayedQuery = `UPDATE dead_letters SET replayed_at = $1 WHERE id = ANY($2)`
)

// EnsureSchema creates the dead-letter table if it is missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure dead-letter schema: %w", err)
		}
	}
	return nil
}

// Save records a failed event.
func (s *Store) Save(ctx context.Context, dl model.DeadLetter) error {
	_, err := s.db.Exec(ctx, insertQuery,
		dl.ID,
		dl.EventID,
		dl.UserID,
		string(dl.EventType),
		dl.Payload,
		dl.Reason,
		dl.FailedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("save dead letter %s: %w", dl.EventID, err)
	}
	return nil
}

// Pending returns up to limit records not yet replayed that sort after
// after, oldest first.
func (s *Store) Pending(ctx context.Context, after model.DeadLetterCursor, limit int) ([]model.DeadLetter, error) {
	rows, err := s.db.Query(ctx, pendingQuery, after.FailedAt.UTC(), after.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("query dead letters: %w", err)
	}
	defer rows.Close()

	var out []model.DeadLetter
	for rows.Next() {
		var (
			dl        model.DeadLetter
			eventType string
		)
		if err := rows.Scan(&dl.ID, &dl.EventID, &dl.UserID, &eventType, &dl.Payload, &dl.Reason, &dl.FailedAt); err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		dl.EventType = model.Kind(eventType)
		out = append(out, dl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dead letters: %w", err)
	}
	return out, nil
}

// MarkReplayed stamps the given records as replayed.
func (s *Store) MarkReplayed(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.db.Exec(ctx, markReplayedQuery, s.now().UTC(), ids); err != nil {
		return fmt.Errorf("mark dead letters replayed: %w", err)
	}
	return nil
}
