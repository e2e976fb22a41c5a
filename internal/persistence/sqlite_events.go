package persistence

import (
	"context"
	"database/sql"
	"time"

	"github.com/nertverse/conduct/pkg/api"
)

// SQLiteEventStore stores lifecycle events in SQLite.
type SQLiteEventStore struct {
	db *sql.DB
}

var _ EventStore = (*SQLiteEventStore)(nil)

func NewSQLiteEventStore(db *sql.DB) (*SQLiteEventStore, error) {
	s := &SQLiteEventStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteEventStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS execution_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			execution_id TEXT NOT NULL,
			workflow_id TEXT NOT NULL DEFAULT '',
			at INTEGER NOT NULL,
			type TEXT NOT NULL,
			body BLOB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_execution_events_execution_id ON execution_events(execution_id, id);
	`)
	return err
}

func (s *SQLiteEventStore) AppendEvent(ctx context.Context, ev api.ExecutionEvent) error {
	at := ev.Timestamp
	if at.IsZero() {
		at = time.Now()
	}
	body, err := EncodeJSON(ev)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_events (execution_id, workflow_id, at, type, body)
		VALUES (?, ?, ?, ?, ?)`,
		ev.ExecutionID, ev.WorkflowID, at.UnixNano(), string(ev.Type), body,
	)
	return err
}

func (s *SQLiteEventStore) ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT body FROM execution_events WHERE execution_id = ? ORDER BY id`, executionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.ExecutionEvent
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		ev, err := DecodeJSON[api.ExecutionEvent](body)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
