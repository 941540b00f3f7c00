package notes

import (
	"context"
	"time"
)

// Draft carries the data a finished transcription turns into a note. The
// clinical fields are captured at submission time, never re-read from
// mutable UI state afterward.
type Draft struct {
	PatientName     string `json:"patient_name,omitempty"`
	ClinicalContext string `json:"clinical_context,omitempty"`
	Transcript      string `json:"transcript"`
	Language        string `json:"language,omitempty"`
	// CorrelationID ties the note back to the originating queue item so
	// reconciliation can match exactly instead of by time window.
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Note is a created medical note as the listing endpoint reports it.
type Note struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	PatientName   string    `json:"patient_name"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}

// Creator creates notes from finished transcriptions.
type Creator interface {
	CreateNote(ctx context.Context, draft Draft) (Note, error)
}

// Lister pages through recently created notes, newest first. Used by
// reconciliation only.
type Lister interface {
	ListRecentNotes(ctx context.Context, page, limit int) ([]Note, error)
}

// Service is the full note-creation collaborator contract.
type Service interface {
	Creator
	Lister
}
