package workflow

import (
	"context"
	"path/filepath"

	"scribeq/internal/logging"
	"scribeq/internal/persistence"
)

// appendSnapshot adds one pending recording to the crash-recovery snapshot.
// Snapshot faults are logged, never fatal: the queue database is the source
// of truth.
func (o *Orchestrator) appendSnapshot(ctx context.Context, rec persistence.PendingRecording) {
	o.snapMu.Lock()
	defer o.snapMu.Unlock()

	recordings, err := o.bridge.LoadSnapshot(ctx)
	if err != nil {
		o.logger.Warn("pending snapshot unreadable", logging.Error(err))
		recordings = nil
	}
	recordings = append(recordings, rec)
	if err := o.bridge.SaveSnapshot(ctx, recordings); err != nil {
		o.logger.Warn("pending snapshot not saved", logging.Error(err))
	}
}

// pruneSnapshot drops one item from the crash-recovery snapshot.
func (o *Orchestrator) pruneSnapshot(ctx context.Context, itemID int64) {
	o.snapMu.Lock()
	defer o.snapMu.Unlock()

	recordings, err := o.bridge.LoadSnapshot(ctx)
	if err != nil {
		o.logger.Warn("pending snapshot unreadable", logging.Error(err))
		return
	}
	kept := recordings[:0]
	for _, rec := range recordings {
		if rec.ItemID != itemID {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(recordings) {
		return
	}
	if err := o.bridge.SaveSnapshot(ctx, kept); err != nil {
		o.logger.Warn("pending snapshot not saved", logging.Error(err))
	}
}

// releaseArtifacts drops the local leftovers of a finished item. Both calls
// are idempotent, so repeating the release is harmless.
func (o *Orchestrator) releaseArtifacts(ctx context.Context, itemID int64, blobKey string) {
	if err := o.bridge.Remove(ctx, blobKey); err != nil {
		o.logger.Warn("blob not released",
			logging.Int64(logging.FieldItemID, itemID),
			logging.Error(err),
		)
	}
	o.pruneSnapshot(ctx, itemID)
}

// CancelRecording cancels a pending item and releases its local artifacts.
// Items past pending cannot be cancelled; the in-flight transcription call
// has no cancel primitive, so the safety timer and poll budget govern those.
func (o *Orchestrator) CancelRecording(ctx context.Context, id int64) error {
	item, err := o.queue.Get(ctx, id)
	if err != nil {
		return err
	}
	var blobKey string
	if item != nil {
		blobKey = filepath.Base(item.PayloadPath)
	}
	if err := o.queue.Cancel(ctx, id); err != nil {
		return err
	}
	if blobKey != "" {
		o.releaseArtifacts(ctx, id, blobKey)
	}
	return nil
}

// RecoverStartup repairs state left behind by a crash: items stuck in
// processing are re-queued as pending, and the pending
// snapshot is reconciled against the store, dropping entries (and blobs) for
// items that no longer await processing.
func (o *Orchestrator) RecoverStartup(ctx context.Context) error {
	reset, err := o.queue.Store().ResetStuckProcessing(ctx)
	if err != nil {
		return err
	}
	if reset > 0 {
		o.logger.Warn("reset items stuck in processing", logging.Int64("count", reset))
	}

	o.snapMu.Lock()
	defer o.snapMu.Unlock()

	recordings, err := o.bridge.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	kept := make([]persistence.PendingRecording, 0, len(recordings))
	for _, rec := range recordings {
		item, err := o.queue.Get(ctx, rec.ItemID)
		if err != nil {
			return err
		}
		if item != nil && !item.Status.IsTerminal() {
			kept = append(kept, rec)
			continue
		}
		if err := o.bridge.Remove(ctx, rec.BlobKey); err != nil {
			o.logger.Warn("stale blob not released",
				logging.Int64(logging.FieldItemID, rec.ItemID),
				logging.Error(err),
			)
		}
	}
	if len(kept) != len(recordings) {
		o.logger.Info("pending snapshot reconciled",
			logging.Int("kept", len(kept)),
			logging.Int("dropped", len(recordings)-len(kept)),
		)
		if err := o.bridge.SaveSnapshot(ctx, kept); err != nil {
			return err
		}
	}
	return nil
}
