package notes_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"scribeq/internal/services"
	"scribeq/internal/services/notes"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *notes.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := notes.New("test-key", server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestCreateNote(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/notes" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var draft notes.Draft
		if err := json.NewDecoder(r.Body).Decode(&draft); err != nil {
			t.Errorf("decode draft: %v", err)
		}
		if draft.CorrelationID != "item-12" {
			t.Errorf("expected correlation id, got %q", draft.CorrelationID)
		}
		_ = json.NewEncoder(w).Encode(notes.Note{ID: "note-1", CreatedAt: time.Now().UTC()})
	})

	note, err := client.CreateNote(context.Background(), notes.Draft{
		Transcript:    "patient presents with cough",
		CorrelationID: "item-12",
	})
	if err != nil {
		t.Fatalf("CreateNote: %v", err)
	}
	if note.ID != "note-1" {
		t.Fatalf("unexpected note: %#v", note)
	}
}

func TestCreateNoteRequiresTranscript(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	})

	_, err := client.CreateNote(context.Background(), notes.Draft{})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestListRecentNotes(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("limit") != "10" {
			t.Errorf("expected limit 10, got %q", r.URL.Query().Get("limit"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"notes": []notes.Note{
				{ID: "note-2", CreatedAt: time.Now().UTC()},
				{ID: "note-1", CreatedAt: time.Now().UTC().Add(-time.Hour)},
			},
		})
	})

	listing, err := client.ListRecentNotes(context.Background(), 1, 10)
	if err != nil {
		t.Fatalf("ListRecentNotes: %v", err)
	}
	if len(listing) != 2 || listing[0].ID != "note-2" {
		t.Fatalf("unexpected listing: %#v", listing)
	}
}

func TestListTransientOnServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	_, err := client.ListRecentNotes(context.Background(), 1, 10)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}
