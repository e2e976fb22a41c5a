package conduct_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/nertverse/conduct"
	"github.com/nertverse/conduct/pkg/nodes"
)

// Example_definitionBuilder demonstrates defining and running a simple
// workflow using the DefinitionBuilder API and an in-memory engine.
func Example_definitionBuilder() {
	ctx := context.Background()

	reg := conduct.NewRegistry()
	if err := nodes.RegisterBuiltins(reg); err != nil {
		log.Fatal(err)
	}
	eng := conduct.NewInMemoryEngine(reg)

	err := conduct.NewDefinition("receipt", "Receipt").
		InitialState(map[string]any{"prices": []any{19.99, 5.0, 12.5}}).
		Step("aggregate", map[string]any{"items": "$.prices", "operation": "sum"}).
		Register(eng)
	if err != nil {
		log.Fatal(err)
	}

	exec, err := conduct.Execute(ctx, eng, "receipt", nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Printf("run %q finished with status %s and total %v\n",
		exec.ID, exec.Status, exec.State["aggregateResult"])
}

// Example_jsonDefinition demonstrates registering a workflow from its
// JSON wire form.
func Example_jsonDefinition() {
	ctx := context.Background()

	reg := conduct.NewRegistry()
	if err := nodes.RegisterBuiltins(reg); err != nil {
		log.Fatal(err)
	}
	eng := conduct.NewInMemoryEngine(reg)

	def, err := conduct.ParseDefinition([]byte(`{
		"id": "checksum",
		"name": "Checksum",
		"initialState": {"payload": "hello world"},
		"workflow": [
			{"hash": {"operation": "sha256", "value": "$.payload"}}
		]
	}`))
	if err != nil {
		log.Fatal(err)
	}
	if err := eng.RegisterDefinition(def); err != nil {
		log.Fatal(err)
	}

	exec, err := conduct.Execute(ctx, eng, "checksum", nil)
	if err != nil {
		log.Fatal(err)
	}

	fmt.Println(exec.State["hashResult"])
	// Output: b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9
}

// Example_localRunner demonstrates using LocalRunner to execute
// workflows with an in-process engine, queue, and worker.
func Example_localRunner() {
	ctx := context.Background()

	reg := conduct.NewRegistry()
	if err := nodes.RegisterBuiltins(reg); err != nil {
		log.Fatal(err)
	}
	runner := conduct.NewLocalRunner(reg)

	conduct.NewDefinition("tokenize", "Tokenize").
		Step("hash", map[string]any{"operation": "token"}).
		MustRegister(runner.Engine)

	if err := runner.StartWorkers(ctx, 1); err != nil {
		log.Fatal(err)
	}
	defer runner.Stop()

	if err := runner.StartExecutionAsync(ctx, "tokenize", nil); err != nil {
		log.Fatal(err)
	}

	// In a real application you'd poll GetExecution or consume events;
	// for example purposes, just give the worker a moment to run.
	time.Sleep(200 * time.Millisecond)
}
