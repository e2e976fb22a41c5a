// Package worker provides the task-processing side of the conduct
// engine: a Worker pulls start-execution tasks from a queue and drives
// the engine synchronously for each one.
//
// Workers are plain goroutine loops around ProcessOne; run as many as
// you need against a shared queue. The LocalRunner in the root package
// bundles an in-memory engine, queue, and workers for development and
// tests.
package worker
