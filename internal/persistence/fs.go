package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FSBridge stores blobs as files in a directory and the pending snapshot as
// a JSON document, both written atomically via rename.
type FSBridge struct {
	blobDir      string
	snapshotPath string
	mu           sync.Mutex
}

var _ Bridge = (*FSBridge)(nil)

// NewFSBridge creates a filesystem-backed bridge rooted at blobDir with the
// snapshot at snapshotPath.
func NewFSBridge(blobDir, snapshotPath string) (*FSBridge, error) {
	if strings.TrimSpace(blobDir) == "" {
		return nil, errors.New("blob directory required")
	}
	if strings.TrimSpace(snapshotPath) == "" {
		return nil, errors.New("snapshot path required")
	}
	if err := os.MkdirAll(blobDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure blob directory: %w", err)
	}
	return &FSBridge{blobDir: blobDir, snapshotPath: snapshotPath}, nil
}

// Save writes a payload under key, replacing any previous blob for it.
func (b *FSBridge) Save(_ context.Context, key, mimeType string, r io.Reader) (BlobRef, error) {
	var ref BlobRef
	if err := validateKey(key); err != nil {
		return ref, err
	}

	target := filepath.Join(b.blobDir, key)
	tmp, err := os.CreateTemp(b.blobDir, key+".tmp-*")
	if err != nil {
		return ref, fmt.Errorf("create temp blob: %w", err)
	}
	size, err := io.Copy(tmp, r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return ref, fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		_ = os.Remove(tmp.Name())
		return ref, fmt.Errorf("publish blob %s: %w", key, err)
	}

	return BlobRef{Key: key, Path: target, Size: size, MimeType: mimeType}, nil
}

// Open returns a reader over a stored payload.
func (b *FSBridge) Open(_ context.Context, key string) (io.ReadCloser, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(b.blobDir, key))
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", key, err)
	}
	return f, nil
}

// Remove deletes a stored payload. Removing a missing blob is not an error.
func (b *FSBridge) Remove(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(b.blobDir, key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove blob %s: %w", key, err)
	}
	return nil
}

// SaveSnapshot replaces the pending-recording snapshot atomically.
func (b *FSBridge) SaveSnapshot(_ context.Context, recordings []PendingRecording) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if recordings == nil {
		recordings = []PendingRecording{}
	}
	data, err := json.MarshalIndent(recordings, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(b.snapshotPath), 0o755); err != nil {
		return fmt.Errorf("ensure snapshot directory: %w", err)
	}
	tmp := b.snapshotPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, b.snapshotPath); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("publish snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot reads the pending-recording snapshot. A missing file is an
// empty snapshot.
func (b *FSBridge) LoadSnapshot(_ context.Context) ([]PendingRecording, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	data, err := os.ReadFile(b.snapshotPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	var recordings []PendingRecording
	if err := json.Unmarshal(data, &recordings); err != nil {
		return nil, fmt.Errorf("parse snapshot: %w", err)
	}
	return recordings, nil
}

func validateKey(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("blob key required")
	}
	if key != filepath.Base(key) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("blob key %q must be a plain file name", key)
	}
	return nil
}
