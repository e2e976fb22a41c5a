package persistence

import (
	"database/sql"
	"errors"
	"time"

	"github.com/nertverse/conduct/pkg/api"
)

// SQLiteStore implements DefinitionStore and ExecutionStore on SQLite.
//
// It expects an *sql.DB opened with a SQLite driver; the caller imports
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ DefinitionStore = (*SQLiteStore)(nil)
	_ ExecutionStore  = (*SQLiteStore)(nil)
)

// NewSQLiteStore initializes the required schema in the given database
// and returns a new SQLiteStore.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS definitions (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			version TEXT NOT NULL,
			body BLOB NOT NULL
		);
		CREATE TABLE IF NOT EXISTS executions (
			id TEXT PRIMARY KEY,
			workflow_id TEXT NOT NULL,
			workflow_name TEXT NOT NULL,
			status TEXT NOT NULL,
			current_step TEXT NOT NULL,
			state BLOB,
			edges BLOB,
			output BLOB,
			failure BLOB,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL DEFAULT 0
		);
		CREATE INDEX IF NOT EXISTS idx_executions_workflow ON executions(workflow_id);
		CREATE INDEX IF NOT EXISTS idx_executions_status ON executions(status);`,
	)
	return err
}

func (s *SQLiteStore) SaveDefinition(def api.FlowDefinition) error {
	body, err := EncodeJSON(def)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO definitions (id, name, version, body)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, version = excluded.version, body = excluded.body`,
		def.ID, def.Name, def.Version, body,
	)
	return err
}

func (s *SQLiteStore) GetDefinition(id string) (api.FlowDefinition, error) {
	var body []byte
	err := s.db.QueryRow(`SELECT body FROM definitions WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return api.FlowDefinition{}, ErrDefinitionNotFound
	}
	if err != nil {
		return api.FlowDefinition{}, err
	}
	return DecodeJSON[api.FlowDefinition](body)
}

func (s *SQLiteStore) ListDefinitions() ([]api.FlowDefinition, error) {
	rows, err := s.db.Query(`SELECT body FROM definitions ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []api.FlowDefinition
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		def, err := DecodeJSON[api.FlowDefinition](body)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveExecution(exec *api.Execution) error {
	row, err := encodeExecutionRow(exec)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO executions (id, workflow_id, workflow_name, status, current_step, state, edges, output, failure, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		exec.ID, exec.WorkflowID, exec.WorkflowName, string(exec.Status), exec.CurrentStep,
		row.state, row.edges, row.output, row.failure,
		exec.StartedAt.UnixNano(), finishedAtNanos(exec),
	)
	return err
}

func (s *SQLiteStore) UpdateExecution(exec *api.Execution) error {
	row, err := encodeExecutionRow(exec)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(`
		UPDATE executions
		SET status = ?, current_step = ?, state = ?, edges = ?, output = ?, failure = ?, finished_at = ?
		WHERE id = ?`,
		string(exec.Status), exec.CurrentStep,
		row.state, row.edges, row.output, row.failure,
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

func (s *SQLiteStore) GetExecution(id string) (*api.Execution, error) {
	row := s.db.QueryRow(`
		SELECT id, workflow_id, workflow_name, status, current_step, state, edges, output, failure, started_at, finished_at
		FROM executions WHERE id = ?`, id)
	exec, err := scanExecution(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExecutionNotFound
	}
	return exec, err
}

func (s *SQLiteStore) ListExecutions(filter ExecutionFilter) ([]*api.Execution, error) {
	query := `
		SELECT id, workflow_id, workflow_name, status, current_step, state, edges, output, failure, started_at, finished_at
		FROM executions WHERE 1=1`
	var args []any
	if filter.WorkflowID != "" {
		query += ` AND workflow_id = ?`
		args = append(args, filter.WorkflowID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
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

// executionRow holds the serialized BLOB columns shared by the SQL
// stores.
type executionRow struct {
	state   []byte
	edges   []byte
	output  []byte
	failure []byte
}

func encodeExecutionRow(exec *api.Execution) (executionRow, error) {
	state, err := EncodeJSON(exec.State)
	if err != nil {
		return executionRow{}, err
	}
	edges, err := EncodeJSON(exec.Edges)
	if err != nil {
		return executionRow{}, err
	}
	output, err := EncodeJSON(exec.Output)
	if err != nil {
		return executionRow{}, err
	}
	failure, err := EncodeJSON(exec.Failure)
	if err != nil {
		return executionRow{}, err
	}
	return executionRow{state: state, edges: edges, output: output, failure: failure}, nil
}

func finishedAtNanos(exec *api.Execution) int64 {
	if exec.FinishedAt.IsZero() {
		return 0
	}
	return exec.FinishedAt.UnixNano()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExecution(r rowScanner) (*api.Execution, error) {
	var (
		exec       api.Execution
		status     string
		row        executionRow
		startedAt  int64
		finishedAt int64
	)
	err := r.Scan(
		&exec.ID, &exec.WorkflowID, &exec.WorkflowName, &status, &exec.CurrentStep,
		&row.state, &row.edges, &row.output, &row.failure,
		&startedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	exec.Status = api.Status(status)
	exec.StartedAt = time.Unix(0, startedAt)
	if finishedAt != 0 {
		exec.FinishedAt = time.Unix(0, finishedAt)
	}
	if exec.State, err = DecodeJSON[map[string]any](row.state); err != nil {
		return nil, err
	}
	if exec.Edges, err = DecodeJSON[[]api.FiredEdge](row.edges); err != nil {
		return nil, err
	}
	if exec.Output, err = DecodeJSON[map[string]any](row.output); err != nil {
		return nil, err
	}
	if exec.Failure, err = DecodeJSON[*api.Failure](row.failure); err != nil {
		return nil, err
	}
	return &exec, nil
}
