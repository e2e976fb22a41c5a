package taskqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// SQLiteQueue is a persistent task queue backed by SQLite, using simple
// FIFO semantics based on an auto-incrementing id. Dequeue claims a task
// in a transaction so concurrent workers never process it twice.
type SQLiteQueue struct {
	db           *sql.DB
	pollInterval time.Duration
}

// NewSQLiteQueue initializes the tasks table in the given DB and returns
// a new queue.
func NewSQLiteQueue(db *sql.DB) (*SQLiteQueue, error) {
	q := &SQLiteQueue{
		db:           db,
		pollInterval: 20 * time.Millisecond,
	}
	if err := q.initSchema(); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *SQLiteQueue) initSchema() error {
	_, err := q.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			type TEXT NOT NULL,
			workflow_id TEXT NOT NULL,
			initial_state BLOB,
			enqueued_at INTEGER NOT NULL,
			not_before INTEGER NOT NULL
		);
	`)
	return err
}

var _ Queue = (*SQLiteQueue)(nil)

func (q *SQLiteQueue) Enqueue(ctx context.Context, t Task) error {
	var state []byte
	if t.InitialState != nil {
		var err error
		state, err = json.Marshal(t.InitialState)
		if err != nil {
			return err
		}
	}

	enqueuedAt := time.Now().UnixNano()
	notBefore := enqueuedAt
	if !t.NotBefore.IsZero() {
		notBefore = t.NotBefore.UnixNano()
	}

	_, err := q.db.ExecContext(ctx, `
		INSERT INTO tasks (type, workflow_id, initial_state, enqueued_at, not_before)
		VALUES (?, ?, ?, ?, ?)`,
		string(t.Type), t.WorkflowID, state, enqueuedAt, notBefore,
	)
	return err
}

func (q *SQLiteQueue) Dequeue(ctx context.Context) (*Task, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		task, ok, err := q.tryClaim(ctx)
		if err != nil {
			return nil, err
		}
		if ok {
			return task, nil
		}

		// Nothing eligible yet: sleep a bit and retry.
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.pollInterval):
		}
	}
}

func (q *SQLiteQueue) tryClaim(ctx context.Context) (*Task, bool, error) {
	now := time.Now().UnixNano()

	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}

	var (
		id         int64
		typeStr    string
		workflowID string
		state      []byte
		enqueuedAt int64
		notBefore  int64
	)
	row := tx.QueryRowContext(ctx, `
		SELECT id, type, workflow_id, initial_state, enqueued_at, not_before
		FROM tasks
		WHERE not_before <= ?
		ORDER BY not_before, id
		LIMIT 1`, now)
	err = row.Scan(&id, &typeStr, &workflowID, &state, &enqueuedAt, &notBefore)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, false, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id); err != nil {
		_ = tx.Rollback()
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	var initialState map[string]any
	if len(state) > 0 {
		if err := json.Unmarshal(state, &initialState); err != nil {
			return nil, false, err
		}
	}

	return &Task{
		ID:           strconv.FormatInt(id, 10),
		Type:         TaskType(typeStr),
		WorkflowID:   workflowID,
		InitialState: initialState,
		EnqueuedAt:   time.Unix(0, enqueuedAt),
		NotBefore:    time.Unix(0, notBefore),
	}, true, nil
}

func (q *SQLiteQueue) Len() int {
	var n int
	if err := q.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&n); err != nil {
		return 0
	}
	return n
}
