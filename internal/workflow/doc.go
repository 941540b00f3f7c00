// Package workflow orchestrates the lifecycle of submitted transcription
// jobs.
//
// One job runs at a time behind a cooperative single-flight lock; rapid
// repeats are debounced and identical payloads are deduplicated inside a
// short window. The patient and clinical context is snapshotted at
// submission time so later edits cannot leak into the created note. A
// submitted job is polled at a fixed interval until the engine reports a
// terminal status or the overall budget elapses, and every negative outcome
// passes through the reconciliation guard before it is accepted, because a
// note may exist even when the observed job result is negative.
//
// The orchestrator also owns the local persistence hand-off: audio blobs and
// the pending-recording snapshot are written on intake and released once a
// job completes or is cancelled.
package workflow
