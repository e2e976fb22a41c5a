package conduct

import (
	"context"
	"database/sql"

	"github.com/redis/go-redis/v9"

	"github.com/nertverse/conduct/internal/engine"
	"github.com/nertverse/conduct/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	Engine               = api.Engine
	FlowDefinition       = api.FlowDefinition
	RawStep              = api.RawStep
	Execution            = api.Execution
	ExecutionListOptions = api.ExecutionListOptions
	Status               = api.Status
	FiredEdge            = api.FiredEdge
	Failure              = api.Failure
	FailureKind          = api.FailureKind

	Node             = api.Node
	NodeMetadata     = api.NodeMetadata
	Registry         = api.Registry
	EdgeMap          = api.EdgeMap
	EdgeFunc         = api.EdgeFunc
	ExecutionContext = api.ExecutionContext

	Observer             = api.Observer
	LoggingObserver      = api.LoggingObserver
	BasicMetrics         = api.BasicMetrics
	BasicMetricsSnapshot = api.BasicMetricsSnapshot
	CompositeObserver    = api.CompositeObserver
	NoopObserver         = api.NoopObserver
)

// Re-export common helpers.

var (
	NewRegistry          = api.NewRegistry
	ParseDefinition      = api.ParseDefinition
	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver

	Fire        = api.Fire
	FireSuccess = api.FireSuccess
	FireError   = api.FireError
)

// Re-export status and failure-kind values for convenience.

const (
	StatusRunning   = api.StatusRunning
	StatusCompleted = api.StatusCompleted
	StatusFailed    = api.StatusFailed

	FailureRouted = api.FailureRouted
	FailureFatal  = api.FailureFatal
)

// Engine constructors
// These wrap the internal/engine package so external callers
// never need to import internal packages.

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine(reg *Registry) Engine {
	return engine.NewInMemoryEngine(reg)
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the given Observer.
func NewInMemoryEngineWithObserver(reg *Registry, obs Observer) Engine {
	return engine.NewInMemoryEngineWithObserver(reg, obs)
}

// NewSQLiteEngine returns an Engine that persists definitions, executions,
// and event history in a SQLite database.
func NewSQLiteEngine(reg *Registry, db *sql.DB) (Engine, error) {
	return engine.NewSQLiteEngine(reg, db)
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the given Observer.
func NewSQLiteEngineWithObserver(reg *Registry, db *sql.DB, obs Observer) (Engine, error) {
	return engine.NewSQLiteEngineWithObserver(reg, db, obs)
}

// NewPostgresEngine returns an Engine that persists executions in PostgreSQL.
func NewPostgresEngine(reg *Registry, db *sql.DB) (Engine, error) {
	return engine.NewPostgresEngine(reg, db)
}

// NewPostgresEngineWithObserver returns a Postgres-backed Engine with the given Observer.
func NewPostgresEngineWithObserver(reg *Registry, db *sql.DB, obs Observer) (Engine, error) {
	return engine.NewPostgresEngineWithObserver(reg, db, obs)
}

// NewRedisEngine returns an Engine that persists executions in Redis.
func NewRedisEngine(reg *Registry, client *redis.Client) Engine {
	return engine.NewRedisEngine(reg, client)
}

// NewRedisEngineWithObserver returns a Redis-backed Engine with the given Observer.
func NewRedisEngineWithObserver(reg *Registry, client *redis.Client, obs Observer) Engine {
	return engine.NewRedisEngineWithObserver(reg, client, obs)
}

// Convenience helpers that just forward to the underlying Engine.

// Execute runs a registered workflow synchronously.
func Execute(ctx context.Context, eng Engine, workflowID string, initialState map[string]any) (*Execution, error) {
	return eng.Execute(ctx, workflowID, initialState)
}

// GetExecution fetches an execution record by ID.
func GetExecution(ctx context.Context, eng Engine, id string) (*Execution, error) {
	return eng.GetExecution(ctx, id)
}

// ListExecutions lists execution records according to the given options.
func ListExecutions(ctx context.Context, eng Engine, opts ExecutionListOptions) ([]*Execution, error) {
	return eng.ListExecutions(ctx, opts)
}
