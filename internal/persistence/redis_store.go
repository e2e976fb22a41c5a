package persistence

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/nertverse/conduct/pkg/api"
)

// RedisExecutionStore is an ExecutionStore backed by Redis.
// It uses a simple key structure:
//
//	<prefix>exec:<id>            => JSON-encoded execution
//	<prefix>idx:all              => SET of all execution IDs
//	<prefix>idx:wf:<workflowID>  => SET of execution IDs per workflow
//	<prefix>idx:status:<status>  => SET of execution IDs per status
//
// Indexes are updated on every Save/Update; ListExecutions uses set
// operations for filtering.
type RedisExecutionStore struct {
	client *redis.Client
	prefix string
}

var _ ExecutionStore = (*RedisExecutionStore)(nil)

// NewRedisExecutionStore creates a RedisExecutionStore. prefix is
// optional but recommended (e.g. "conduct:").
func NewRedisExecutionStore(client *redis.Client, prefix string) *RedisExecutionStore {
	if prefix == "" {
		prefix = "conduct:"
	}
	return &RedisExecutionStore{client: client, prefix: prefix}
}

func (s *RedisExecutionStore) keyExecution(id string) string { return s.prefix + "exec:" + id }
func (s *RedisExecutionStore) keyAll() string                { return s.prefix + "idx:all" }
func (s *RedisExecutionStore) keyWorkflow(id string) string  { return s.prefix + "idx:wf:" + id }
func (s *RedisExecutionStore) keyStatus(st api.Status) string {
	return s.prefix + "idx:status:" + string(st)
}

func (s *RedisExecutionStore) SaveExecution(exec *api.Execution) error {
	return s.write(exec, "")
}

func (s *RedisExecutionStore) UpdateExecution(exec *api.Execution) error {
	prev, err := s.GetExecution(exec.ID)
	if err != nil {
		return err
	}
	return s.write(exec, prev.Status)
}

func (s *RedisExecutionStore) write(exec *api.Execution, prevStatus api.Status) error {
	ctx := context.Background()

	body, err := EncodeJSON(exec)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.keyExecution(exec.ID), body, 0)
	pipe.SAdd(ctx, s.keyAll(), exec.ID)
	pipe.SAdd(ctx, s.keyWorkflow(exec.WorkflowID), exec.ID)
	if prevStatus != "" && prevStatus != exec.Status {
		pipe.SRem(ctx, s.keyStatus(prevStatus), exec.ID)
	}
	pipe.SAdd(ctx, s.keyStatus(exec.Status), exec.ID)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisExecutionStore) GetExecution(id string) (*api.Execution, error) {
	ctx := context.Background()

	body, err := s.client.Get(ctx, s.keyExecution(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrExecutionNotFound
	}
	if err != nil {
		return nil, err
	}
	return DecodeJSON[*api.Execution](body)
}

func (s *RedisExecutionStore) ListExecutions(filter ExecutionFilter) ([]*api.Execution, error) {
	ctx := context.Background()

	var (
		ids []string
		err error
	)
	switch {
	case filter.WorkflowID != "" && filter.Status != "":
		ids, err = s.client.SInter(ctx, s.keyWorkflow(filter.WorkflowID), s.keyStatus(filter.Status)).Result()
	case filter.WorkflowID != "":
		ids, err = s.client.SMembers(ctx, s.keyWorkflow(filter.WorkflowID)).Result()
	case filter.Status != "":
		ids, err = s.client.SMembers(ctx, s.keyStatus(filter.Status)).Result()
	default:
		ids, err = s.client.SMembers(ctx, s.keyAll()).Result()
	}
	if err != nil {
		return nil, err
	}

	out := make([]*api.Execution, 0, len(ids))
	for _, id := range ids {
		exec, err := s.GetExecution(id)
		if errors.Is(err, ErrExecutionNotFound) {
			// Index entry outlived the record; skip it.
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, nil
}
