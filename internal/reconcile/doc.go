// Package reconcile checks the note service for evidence that an apparently
// failed or timed-out transcription job actually produced a note.
package reconcile
