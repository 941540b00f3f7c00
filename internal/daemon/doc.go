// Package daemon coordinates the long-running scribeq process.
//
// It wires configuration, the queue store and service, and the job
// orchestrator into a single lifecycle with flock-based locking to prevent
// multiple instances against one data directory. Startup repairs crash
// leftovers before the HTTP API comes up; the API exposes the queue (list,
// enqueue, describe, cancel, retry), job processing, stats, and health over
// /api endpoints guarded by an optional bearer token.
//
// Keep high level coordination here: queue semantics live in internal/queue
// and job lifecycle logic in internal/workflow.
package daemon
