package taskqueue

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func newTestSQLiteQueue(t *testing.T) *SQLiteQueue {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	q, err := NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue failed: %v", err)
	}
	return q
}

func TestSQLiteQueue_EnqueueDequeueOrder(t *testing.T) {
	q := newTestSQLiteQueue(t)
	ctx := context.Background()

	for _, wf := range []string{"wf-1", "wf-2", "wf-3"} {
		task := Task{Type: TaskTypeStartExecution, WorkflowID: wf}
		if err := q.Enqueue(ctx, task); err != nil {
			t.Fatalf("Enqueue %q failed: %v", wf, err)
		}
	}

	if q.Len() != 3 {
		t.Fatalf("expected Len 3, got %d", q.Len())
	}

	for _, want := range []string{"wf-1", "wf-2", "wf-3"} {
		got, err := q.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue failed: %v", err)
		}
		if got.WorkflowID != want {
			t.Fatalf("expected %q, got %q", want, got.WorkflowID)
		}
		if got.ID == "" {
			t.Fatalf("expected a task ID assigned by the store")
		}
	}

	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got Len %d", q.Len())
	}
}

func TestSQLiteQueue_InitialStateSurvivesStorage(t *testing.T) {
	q := newTestSQLiteQueue(t)
	ctx := context.Background()

	task := Task{
		Type:         TaskTypeStartExecution,
		WorkflowID:   "wf-1",
		InitialState: map[string]any{"values": []any{1.0, 2.0}, "label": "batch"},
	}
	if err := q.Enqueue(ctx, task); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	got, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if got.InitialState["label"] != "batch" {
		t.Fatalf("initial state lost: %+v", got.InitialState)
	}
	values, ok := got.InitialState["values"].([]any)
	if !ok || len(values) != 2 {
		t.Fatalf("unexpected values: %+v", got.InitialState["values"])
	}
}

func TestSQLiteQueue_NotBeforeDelaysDelivery(t *testing.T) {
	q := newTestSQLiteQueue(t)
	ctx := context.Background()

	delayed := Task{
		Type:       TaskTypeStartExecution,
		WorkflowID: "wf-delayed",
		NotBefore:  time.Now().Add(80 * time.Millisecond),
	}
	if err := q.Enqueue(ctx, delayed); err != nil {
		t.Fatalf("Enqueue delayed failed: %v", err)
	}
	immediate := Task{Type: TaskTypeStartExecution, WorkflowID: "wf-now"}
	if err := q.Enqueue(ctx, immediate); err != nil {
		t.Fatalf("Enqueue immediate failed: %v", err)
	}

	// The immediate task must come out first even though it was
	// enqueued second.
	first, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if first.WorkflowID != "wf-now" {
		t.Fatalf("expected wf-now first, got %q", first.WorkflowID)
	}

	second, err := q.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue failed: %v", err)
	}
	if second.WorkflowID != "wf-delayed" {
		t.Fatalf("expected wf-delayed, got %q", second.WorkflowID)
	}
	if time.Now().Before(second.NotBefore) {
		t.Fatalf("delayed task delivered before NotBefore")
	}
}

func TestSQLiteQueue_DequeueRespectsContext(t *testing.T) {
	q := newTestSQLiteQueue(t)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	if _, err := q.Dequeue(ctx); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestSQLiteQueue_ConcurrentWorkersClaimOnce(t *testing.T) {
	// A :memory: database is per-connection, so concurrent access
	// needs a file-backed DB.
	dbPath := filepath.Join(t.TempDir(), "queue.db")
	db, err := sql.Open("sqlite", "file:"+dbPath)
	if err != nil {
		t.Fatalf("sql.Open failed: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	// Serialize writers at the pool level instead of relying on
	// SQLITE_BUSY retries.
	db.SetMaxOpenConns(1)
	q, err := NewSQLiteQueue(db)
	if err != nil {
		t.Fatalf("NewSQLiteQueue failed: %v", err)
	}
	ctx := context.Background()

	const total = 20
	for i := 0; i < total; i++ {
		if err := q.Enqueue(ctx, Task{Type: TaskTypeStartExecution, WorkflowID: "wf"}); err != nil {
			t.Fatalf("Enqueue failed: %v", err)
		}
	}

	ids := make(chan string, total)
	for w := 0; w < 4; w++ {
		go func() {
			for {
				dctx, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
				task, err := q.Dequeue(dctx)
				cancel()
				if err != nil {
					return
				}
				ids <- task.ID
			}
		}()
	}

	seen := make(map[string]bool, total)
	for i := 0; i < total; i++ {
		select {
		case id := <-ids:
			if seen[id] {
				t.Fatalf("task %q claimed twice", id)
			}
			seen[id] = true
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for task %d of %d", i+1, total)
		}
	}
}
