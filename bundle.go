package conduct

import (
	"database/sql"

	"github.com/nertverse/conduct/internal/taskqueue"
	workerpkg "github.com/nertverse/conduct/pkg/worker"
)

// WorkerBundle wires together an Engine, a durable task queue, and a
// Worker that consumes tasks from that queue.
//
// For now, we only provide a SQLite-backed bundle.
type WorkerBundle struct {
	Engine Engine
	Worker *workerpkg.Worker

	// queue is kept unexported for now; it is primarily useful for internal
	// inspection and tests. The public API focuses on Engine and Worker.
	queue taskqueue.Queue
}

// NewSQLiteBundle constructs a durable Engine + Queue + Worker combo
// sharing the same SQLite database. Definitions, executions, event
// history, and queued tasks are persisted in the provided *sql.DB.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:conduct.db?_journal=WAL")
//	bundle, err := conduct.NewSQLiteBundle(reg, db)
//	// register definitions on bundle.Engine
//	// enqueue work via bundle.Worker
func NewSQLiteBundle(reg *Registry, db *sql.DB) (*WorkerBundle, error) {
	eng, err := NewSQLiteEngine(reg, db)
	if err != nil {
		return nil, err
	}

	q, err := taskqueue.NewSQLiteQueue(db)
	if err != nil {
		return nil, err
	}

	w := workerpkg.New(eng, q)

	return &WorkerBundle{
		Engine: eng,
		Worker: w,
		queue:  q,
	}, nil
}
