package reconcile_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"scribeq/internal/reconcile"
	"scribeq/internal/services/notes"
)

type fakeLister struct {
	notes []notes.Note
	err   error
}

func (f *fakeLister) ListRecentNotes(_ context.Context, _, _ int) ([]notes.Note, error) {
	return f.notes, f.err
}

func TestReconcileMatchesByCorrelationID(t *testing.T) {
	now := time.Now().UTC()
	lister := &fakeLister{notes: []notes.Note{
		{ID: "note-3", CorrelationID: "item-7", CreatedAt: now.Add(-30 * time.Second)},
		{ID: "note-2", CreatedAt: now.Add(-time.Minute)},
	}}
	guard := reconcile.NewGuard(lister, 10, 5*time.Minute, nil)

	match, err := guard.Reconcile(context.Background(), "item-7", now.Add(-2*time.Minute))
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if match == nil || match.ID != "note-3" {
		t.Fatalf("expected correlation match, got %#v", match)
	}
}

func TestReconcileFallsBackToTimeWindow(t *testing.T) {
	now := time.Now().UTC()
	submitted := now.Add(-2 * time.Minute)
	lister := &fakeLister{notes: []notes.Note{
		{ID: "note-new", CreatedAt: submitted.Add(90 * time.Second)},
		{ID: "note-old", CreatedAt: submitted.Add(-time.Hour)},
	}}
	guard := reconcile.NewGuard(lister, 10, 5*time.Minute, nil)

	match, err := guard.Reconcile(context.Background(), "item-9", submitted)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if match == nil || match.ID != "note-new" {
		t.Fatalf("expected time-window match, got %#v", match)
	}
}

func TestReconcileIgnoresNotesBeforeSubmission(t *testing.T) {
	now := time.Now().UTC()
	lister := &fakeLister{notes: []notes.Note{
		{ID: "note-old", CreatedAt: now.Add(-time.Minute)},
	}}
	guard := reconcile.NewGuard(lister, 10, 5*time.Minute, nil)

	match, err := guard.Reconcile(context.Background(), "", now)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if match != nil {
		t.Fatalf("expected no match for pre-submission note, got %#v", match)
	}
}

func TestReconcileIgnoresNotesOutsideTrailingWindow(t *testing.T) {
	now := time.Now().UTC()
	submitted := now.Add(-time.Hour)
	lister := &fakeLister{notes: []notes.Note{
		{ID: "note-stale", CreatedAt: submitted.Add(time.Minute)},
	}}
	guard := reconcile.NewGuard(lister, 10, 5*time.Minute, nil)

	match, err := guard.Reconcile(context.Background(), "", submitted)
	if err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if match != nil {
		t.Fatalf("expected stale note to be ignored, got %#v", match)
	}
}

func TestReconcilePropagatesListingError(t *testing.T) {
	boom := errors.New("listing down")
	guard := reconcile.NewGuard(&fakeLister{err: boom}, 10, 5*time.Minute, nil)

	match, err := guard.Reconcile(context.Background(), "item-1", time.Now())
	if !errors.Is(err, boom) {
		t.Fatalf("expected listing error, got %v", err)
	}
	if match != nil {
		t.Fatalf("expected no match on error, got %#v", match)
	}
}
