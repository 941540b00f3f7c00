package persistence

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
)

// MemoryBridge is an in-memory Bridge used in tests.
type MemoryBridge struct {
	mu       sync.Mutex
	blobs    map[string][]byte
	mimes    map[string]string
	snapshot []PendingRecording
}

var _ Bridge = (*MemoryBridge)(nil)

// NewMemoryBridge creates an empty in-memory bridge.
func NewMemoryBridge() *MemoryBridge {
	return &MemoryBridge{
		blobs: make(map[string][]byte),
		mimes: make(map[string]string),
	}
}

func (b *MemoryBridge) Save(_ context.Context, key, mimeType string, r io.Reader) (BlobRef, error) {
	var ref BlobRef
	if err := validateKey(key); err != nil {
		return ref, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return ref, fmt.Errorf("read blob %s: %w", key, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[key] = data
	b.mimes[key] = mimeType
	return BlobRef{Key: key, Size: int64(len(data)), MimeType: mimeType}, nil
}

func (b *MemoryBridge) Open(_ context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.blobs[key]
	if !ok {
		return nil, fmt.Errorf("blob %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *MemoryBridge) Remove(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blobs, key)
	delete(b.mimes, key)
	return nil
}

func (b *MemoryBridge) SaveSnapshot(_ context.Context, recordings []PendingRecording) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshot = append([]PendingRecording(nil), recordings...)
	return nil
}

func (b *MemoryBridge) LoadSnapshot(_ context.Context) ([]PendingRecording, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]PendingRecording(nil), b.snapshot...), nil
}
