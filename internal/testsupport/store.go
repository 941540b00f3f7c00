package testsupport

import (
	"context"
	"testing"

	"scribeq/internal/config"
	"scribeq/internal/logging"
	"scribeq/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewService builds a queue.Service over a fresh store.
func NewService(t testing.TB, cfg *config.Config) *queue.Service {
	t.Helper()
	return queue.NewService(MustOpenStore(t, cfg), cfg, logging.NewNop())
}

// Enqueue adds a recording for tests using the provided service.
func Enqueue(t testing.TB, svc *queue.Service, req queue.EnqueueRequest) *queue.Item {
	t.Helper()

	item, err := svc.Enqueue(context.Background(), req)
	if err != nil {
		t.Fatalf("svc.Enqueue: %v", err)
	}
	return item
}

// Recording returns a minimal valid enqueue request for tests.
func Recording(owner string) queue.EnqueueRequest {
	return queue.EnqueueRequest{
		OwnerID:     owner,
		PayloadPath: "blobs/" + owner + "-recording.webm",
		PayloadSize: 4096,
		PayloadMime: "audio/webm",
	}
}
