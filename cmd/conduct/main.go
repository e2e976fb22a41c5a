// Command conduct runs workflow definitions from the command line.
//
// Usage:
//
//	conduct run <workflow.json> [--config conduct.yaml] [--state k=v ...]
//	conduct validate <workflow.json>
//	conduct work [--config conduct.yaml]
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	_ "modernc.org/sqlite"

	"github.com/nertverse/conduct"
	"github.com/nertverse/conduct/internal/config"
	"github.com/nertverse/conduct/pkg/api"
	"github.com/nertverse/conduct/pkg/nodes"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = runCmd(os.Args[2:])
	case "validate":
		err = validateCmd(os.Args[2:])
	case "work":
		err = workCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage:
  conduct run <workflow.json> [--config conduct.yaml] [--state k=v ...]
  conduct validate <workflow.json>
  conduct work [--config conduct.yaml]`)
}

// stateFlags collects repeatable --state k=v overrides.
type stateFlags map[string]any

func (s stateFlags) String() string { return "" }

func (s stateFlags) Set(v string) error {
	k, raw, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected k=v, got %q", v)
	}
	// Values parse as JSON when possible, so --state n=3 is a number and
	// --state name=alice is the string "alice".
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		decoded = raw
	}
	s[k] = decoded
	return nil
}

func runCmd(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	overrides := stateFlags{}
	fs.Var(overrides, "state", "initial state override, k=v (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("run expects exactly one workflow file")
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	def, err := loadDefinition(fs.Arg(0))
	if err != nil {
		return err
	}

	reg := api.NewRegistry()
	if err := nodes.RegisterBuiltins(reg); err != nil {
		return err
	}

	eng, cleanup, err := buildEngine(cfg, reg, conduct.NewLoggingObserver(logger))
	if err != nil {
		return err
	}
	defer cleanup()

	if err := eng.RegisterDefinition(def); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	exec, err := eng.Execute(ctx, def.ID, overrides)
	if err != nil && exec == nil {
		return err
	}
	return printExecution(exec)
}

func validateCmd(args []string) error {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("validate expects exactly one workflow file")
	}

	def, err := loadDefinition(fs.Arg(0))
	if err != nil {
		return err
	}

	reg := api.NewRegistry()
	if err := nodes.RegisterBuiltins(reg); err != nil {
		return err
	}

	eng := conduct.NewInMemoryEngine(reg)
	if err := eng.RegisterDefinition(def); err != nil {
		return err
	}
	fmt.Printf("%s: ok (%d steps)\n", def.ID, len(def.Workflow))
	return nil
}

// workCmd runs queue workers against a shared SQLite database. Tasks
// enqueued by another process (or a previous run) are picked up and
// executed until the process receives SIGINT or SIGTERM. Definitions
// are loaded from the same database, so workers need no workflow files.
func workCmd(args []string) error {
	fs := flag.NewFlagSet("work", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.Default()
	if *configPath != "" {
		var err error
		cfg, err = config.Load(*configPath)
		if err != nil {
			return err
		}
	}
	if cfg.Backend != config.BackendSQLite {
		return fmt.Errorf("work requires the sqlite backend, got %q", cfg.Backend)
	}

	level, err := cfg.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	db, err := sql.Open("sqlite", cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("opening sqlite: %w", err)
	}
	defer db.Close()

	reg := api.NewRegistry()
	if err := nodes.RegisterBuiltins(reg); err != nil {
		return err
	}
	bundle, err := conduct.NewSQLiteBundle(reg, db)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("workers starting", "count", cfg.Workers, "db", cfg.SQLitePath)

	var wg sync.WaitGroup
	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for {
				processed, err := bundle.Worker.ProcessOne(ctx)
				if errors.Is(err, context.Canceled) {
					return
				}
				if err != nil {
					logger.Error("task failed", "worker", id, "error", err)
					continue
				}
				if processed {
					logger.Info("task processed", "worker", id)
				}
			}
		}(i)
	}
	wg.Wait()
	return nil
}

func loadDefinition(path string) (conduct.FlowDefinition, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return conduct.FlowDefinition{}, fmt.Errorf("reading workflow: %w", err)
	}
	return conduct.ParseDefinition(raw)
}

// buildEngine constructs an engine for the configured backend. The
// returned cleanup closes whatever connection the backend opened.
func buildEngine(cfg config.Config, reg *api.Registry, obs conduct.Observer) (conduct.Engine, func(), error) {
	noop := func() {}

	switch cfg.Backend {
	case config.BackendMemory:
		return conduct.NewInMemoryEngineWithObserver(reg, obs), noop, nil

	case config.BackendSQLite:
		db, err := sql.Open("sqlite", cfg.SQLitePath)
		if err != nil {
			return nil, noop, fmt.Errorf("opening sqlite: %w", err)
		}
		eng, err := conduct.NewSQLiteEngineWithObserver(reg, db, obs)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return eng, func() { db.Close() }, nil

	case config.BackendPostgres:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, noop, fmt.Errorf("opening postgres: %w", err)
		}
		eng, err := conduct.NewPostgresEngineWithObserver(reg, db, obs)
		if err != nil {
			db.Close()
			return nil, noop, err
		}
		return eng, func() { db.Close() }, nil

	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		eng := conduct.NewRedisEngineWithObserver(reg, client, obs)
		return eng, func() { client.Close() }, nil

	default:
		return nil, noop, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

func printExecution(exec *conduct.Execution) error {
	if exec == nil {
		return fmt.Errorf("no execution record")
	}

	fmt.Printf("execution %s: %s (%s)\n", exec.ID, exec.Status, exec.Duration())
	for _, e := range exec.Edges {
		fmt.Printf("  %s [%s] -> %s\n", e.StepID, e.NodeID, e.Edge)
	}
	if exec.Failure != nil {
		fmt.Printf("failure: %s node=%s edge=%s: %s\n",
			exec.Failure.Kind, exec.Failure.NodeID, exec.Failure.Edge, exec.Failure.Message)
	}

	state, err := json.MarshalIndent(visibleState(exec.State), "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("state: %s\n", state)

	if exec.Status == conduct.StatusFailed {
		os.Exit(1)
	}
	return nil
}

// visibleState hides reserved bookkeeping keys from the printed snapshot.
func visibleState(state map[string]any) map[string]any {
	out := make(map[string]any, len(state))
	for k, v := range state {
		if api.IsReservedStateKey(k) {
			continue
		}
		out[k] = v
	}
	return out
}
