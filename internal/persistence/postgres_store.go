package persistence

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/nertverse/conduct/pkg/api"
)

// PostgresExecutionStore is an ExecutionStore backed by PostgreSQL.
//
// It expects an *sql.DB opened with a Postgres driver; the caller
// imports the driver, e.g.:
//
//	import _ "github.com/lib/pq"
type PostgresExecutionStore struct {
	db *sql.DB
}

var _ ExecutionStore = (*PostgresExecutionStore)(nil)

// NewPostgresExecutionStore initializes the required schema and returns
// a new PostgresExecutionStore.
func NewPostgresExecutionStore(db *sql.DB) (*PostgresExecutionStore, error) {
	s := &PostgresExecutionStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresExecutionStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			workflow_name TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step TEXT NOT NULL,
			state JSONB,
			edges JSONB,
			output JSONB,
			failure JSONB,
			started_at BIGINT NOT NULL,
			finished_at BIGINT NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_executions_workflow ON executions(workflow_id);
		CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);`,
	)
	return err
}

func (s *PostgresExecutionStore) SaveExecution(exec *api.Execution) error {
	row, err := encodeExecutionRow(exec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO executions (id, workflow_id, workflow_name, status, current_step, state, edges, output, failure, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		exec.ID, exec.WorkflowID, exec.WorkflowName, string(exec.Status), exec.CurrentStep,
		nullJSON(row.state), nullJSON(row.edges), nullJSON(row.output), nullJSON(row.failure),
		exec.StartedAt.UnixNano(), finishedAtNanos(exec),
	)
	return err
}

func (s *PostgresExecutionStore) UpdateExecution(exec *api.Execution) error {
	row, err := encodeExecutionRow(exec)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE executions
		SET status = $1, current_step = $2, state = $3, edges = $4, output = $5, failure = $6, finished_at = $7
		WHERE id = $8`,
		string(exec.Status), exec.CurrentStep,
		nullJSON(row.state), nullJSON(row.edges), nullJSON(row.output), nullJSON(row.failure),
		finishedAtNanos(exec), exec.ID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrExecutionNotFound
	}
	return nil
}

func (s *PostgresExecutionStore) GetExecution(id string) (*api.Execution, error) {
	row := s.db.QueryRow(`
		SELECT id, workflow_id, workflow_name, status, current_step, state, edges, output, failure, started_at, finished_at
		FROM executions WHERE id = $1`, id)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExecutionNotFound
	}
	return exec, err
}

func (s *PostgresExecutionStore) ListExecutions(filter ExecutionFilter) ([]*api.Execution, error) {
	query := `
		SELECT id, workflow_id, workflow_name, status, current_step, state, edges, output, failure, started_at, finished_at
		FROM executions WHERE 1=1`
	var args []any
	if filter.WorkflowID != "" {
		args = append(args, filter.WorkflowID)
		query += fmt.Sprintf(` AND workflow_id = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY started_at`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*api.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

// nullJSON maps empty payloads to SQL NULL so JSONB columns stay valid.
func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
