package transcription

import (
	"context"
	"io"
)

// JobStatus is the collaborator-side lifecycle of a submitted job.
type JobStatus string

const (
	JobQueued     JobStatus = "QUEUED"
	JobInProgress JobStatus = "IN_PROGRESS"
	JobCompleted  JobStatus = "COMPLETED"
	JobFailed     JobStatus = "FAILED"
)

// Active reports whether the status means the engine is still working.
func (s JobStatus) Active() bool {
	return s == JobQueued || s == JobInProgress
}

// Submission describes one audio payload handed to the engine.
type Submission struct {
	Audio       io.Reader
	Filename    string
	MimeType    string
	PatientHint string
	Language    string
}

// Result is a finished transcript.
type Result struct {
	Transcript      string  `json:"transcript"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// SubmitResponse is returned by Submit. Either JobID is set and the caller
// polls, or Result is set for an immediate synchronous transcription.
type SubmitResponse struct {
	JobID  string  `json:"job_id"`
	Result *Result `json:"result"`
}

// PollResponse reports the current state of an asynchronous job.
type PollResponse struct {
	Status     JobStatus `json:"status"`
	Transcript string    `json:"transcript"`
	Error      string    `json:"error"`
}

// Engine is the transcription collaborator contract the orchestrator
// consumes. The production implementation is Client.
type Engine interface {
	Submit(ctx context.Context, sub Submission) (SubmitResponse, error)
	Poll(ctx context.Context, jobID string) (PollResponse, error)
}
