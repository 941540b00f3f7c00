package persistence

import (
	"context"
	"io"
	"time"
)

// BlobRef describes a stored audio payload.
type BlobRef struct {
	Key      string `json:"key"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// BlobStore holds audio payloads keyed by blob key so queued recordings
// survive a restart. Implementations must be safe for concurrent use.
type BlobStore interface {
	Save(ctx context.Context, key, mimeType string, r io.Reader) (BlobRef, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Remove(ctx context.Context, key string) error
}

// PendingRecording is the snapshot record for a queued-but-not-yet-submitted
// recording.
type PendingRecording struct {
	ItemID    int64     `json:"item_id"`
	OwnerID   string    `json:"owner_id"`
	BlobKey   string    `json:"blob_key"`
	MimeType  string    `json:"mime_type"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// SnapshotStore persists the pending-recording listing as one JSON document.
// The snapshot is a crash-recovery cache, never a second source of truth;
// on startup it is reconciled against the queue database.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, recordings []PendingRecording) error
	LoadSnapshot(ctx context.Context) ([]PendingRecording, error)
}

// Bridge combines both stores behind one dependency.
type Bridge interface {
	BlobStore
	SnapshotStore
}
