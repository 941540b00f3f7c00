package persistence_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"scribeq/internal/persistence"
)

func newFSBridge(t *testing.T) *persistence.FSBridge {
	t.Helper()
	dir := t.TempDir()
	bridge, err := persistence.NewFSBridge(filepath.Join(dir, "blobs"), filepath.Join(dir, "pending.json"))
	if err != nil {
		t.Fatalf("NewFSBridge failed: %v", err)
	}
	return bridge
}

func TestFSBridgeSaveAndOpenRoundTrip(t *testing.T) {
	bridge := newFSBridge(t)
	ctx := context.Background()

	payload := strings.Repeat("audio", 100)
	ref, err := bridge.Save(ctx, "rec-1.m4a", "audio/mp4", strings.NewReader(payload))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ref.Size != int64(len(payload)) {
		t.Fatalf("expected size %d, got %d", len(payload), ref.Size)
	}
	if ref.MimeType != "audio/mp4" {
		t.Fatalf("unexpected mime type %q", ref.MimeType)
	}
	if _, err := os.Stat(ref.Path); err != nil {
		t.Fatalf("blob file missing: %v", err)
	}

	r, err := bridge.Open(ctx, "rec-1.m4a")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read blob failed: %v", err)
	}
	if string(data) != payload {
		t.Fatal("blob content mismatch")
	}
}

func TestFSBridgeSaveReplacesExistingBlob(t *testing.T) {
	bridge := newFSBridge(t)
	ctx := context.Background()

	if _, err := bridge.Save(ctx, "rec-1.m4a", "audio/mp4", strings.NewReader("first")); err != nil {
		t.Fatalf("first Save failed: %v", err)
	}
	if _, err := bridge.Save(ctx, "rec-1.m4a", "audio/mp4", strings.NewReader("second")); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	r, err := bridge.Open(ctx, "rec-1.m4a")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "second" {
		t.Fatalf("expected replacement content, got %q", data)
	}
}

func TestFSBridgeRejectsUnsafeKeys(t *testing.T) {
	bridge := newFSBridge(t)
	ctx := context.Background()

	for _, key := range []string{"", "  ", "../escape", "nested/key", ".hidden"} {
		if _, err := bridge.Save(ctx, key, "audio/mp4", strings.NewReader("x")); err == nil {
			t.Fatalf("expected Save to reject key %q", key)
		}
	}
}

func TestFSBridgeRemoveMissingBlobIsNotAnError(t *testing.T) {
	bridge := newFSBridge(t)
	ctx := context.Background()

	if _, err := bridge.Save(ctx, "rec-1.m4a", "audio/mp4", strings.NewReader("x")); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := bridge.Remove(ctx, "rec-1.m4a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := bridge.Remove(ctx, "rec-1.m4a"); err != nil {
		t.Fatalf("repeat Remove should be a no-op: %v", err)
	}
	if _, err := bridge.Open(ctx, "rec-1.m4a"); err == nil {
		t.Fatal("expected Open to fail for removed blob")
	}
}

func TestFSBridgeSnapshotRoundTrip(t *testing.T) {
	bridge := newFSBridge(t)
	ctx := context.Background()

	loaded, err := bridge.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot on empty store failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected empty snapshot, got %d entries", len(loaded))
	}

	recordings := []persistence.PendingRecording{
		{ItemID: 1, OwnerID: "clinician-a", BlobKey: "rec-1.m4a", MimeType: "audio/mp4", Size: 2048, CreatedAt: time.Now().UTC().Truncate(time.Second)},
		{ItemID: 2, OwnerID: "clinician-b", BlobKey: "rec-2.m4a", MimeType: "audio/mp4", Size: 4096, CreatedAt: time.Now().UTC().Truncate(time.Second)},
	}
	if err := bridge.SaveSnapshot(ctx, recordings); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}

	loaded, err = bridge.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(loaded))
	}
	if loaded[0].ItemID != 1 || loaded[0].BlobKey != "rec-1.m4a" {
		t.Fatalf("unexpected first entry: %+v", loaded[0])
	}
	if loaded[1].OwnerID != "clinician-b" {
		t.Fatalf("unexpected second entry: %+v", loaded[1])
	}
}

func TestFSBridgeSnapshotReplacedNotAppended(t *testing.T) {
	bridge := newFSBridge(t)
	ctx := context.Background()

	first := []persistence.PendingRecording{{ItemID: 1, OwnerID: "a", BlobKey: "rec-1.m4a"}}
	if err := bridge.SaveSnapshot(ctx, first); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if err := bridge.SaveSnapshot(ctx, nil); err != nil {
		t.Fatalf("SaveSnapshot with nil failed: %v", err)
	}

	loaded, err := bridge.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(loaded) != 0 {
		t.Fatalf("expected snapshot cleared, got %d entries", len(loaded))
	}
}

func TestMemoryBridgeMatchesFSSemantics(t *testing.T) {
	bridge := persistence.NewMemoryBridge()
	ctx := context.Background()

	ref, err := bridge.Save(ctx, "rec-1.m4a", "audio/mp4", strings.NewReader("hello"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if ref.Size != 5 {
		t.Fatalf("expected size 5, got %d", ref.Size)
	}

	r, err := bridge.Open(ctx, "rec-1.m4a")
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := io.ReadAll(r)
	r.Close()
	if string(data) != "hello" {
		t.Fatalf("unexpected blob content %q", data)
	}

	if err := bridge.Remove(ctx, "rec-1.m4a"); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if err := bridge.Remove(ctx, "rec-1.m4a"); err != nil {
		t.Fatalf("repeat Remove should be a no-op: %v", err)
	}

	if err := bridge.SaveSnapshot(ctx, []persistence.PendingRecording{{ItemID: 7, BlobKey: "rec-7.m4a"}}); err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	loaded, err := bridge.LoadSnapshot(ctx)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ItemID != 7 {
		t.Fatalf("unexpected snapshot: %+v", loaded)
	}
}
