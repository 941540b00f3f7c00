// Package queue implements the durable transcription work queue: a SQLite
// store of recordings with priority and position ordering, an enforced status
// transition table, a bounded retry policy, and retention cleanup.
package queue
