package transcription_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"scribeq/internal/services"
	"scribeq/internal/services/transcription"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *transcription.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := transcription.New("test-key", server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestSubmitReturnsJobID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/transcriptions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("missing bearer token, got %q", got)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("language") != "en" {
			t.Errorf("expected language field, got %q", r.FormValue("language"))
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"job_id": "job-1"})
	})

	resp, err := client.Submit(context.Background(), transcription.Submission{
		Audio:    strings.NewReader("audio-bytes"),
		Filename: "visit.webm",
		MimeType: "audio/webm",
		Language: "en",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.JobID != "job-1" || resp.Result != nil {
		t.Fatalf("unexpected response: %#v", resp)
	}
}

func TestSubmitImmediateResult(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"transcript": "patient presents with cough"},
		})
	})

	resp, err := client.Submit(context.Background(), transcription.Submission{
		Audio: strings.NewReader("short"),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if resp.Result == nil || resp.Result.Transcript != "patient presents with cough" {
		t.Fatalf("expected immediate result, got %#v", resp)
	}
}

func TestPollMapsStatuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transcriptions/job-2" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "IN_PROGRESS"})
	})

	resp, err := client.Poll(context.Background(), "job-2")
	if err != nil {
		t.Fatalf("Poll: %v", err)
	}
	if resp.Status != transcription.JobInProgress || !resp.Status.Active() {
		t.Fatalf("unexpected status: %#v", resp)
	}
}

func TestPollNotFoundIsFatal(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.Poll(context.Background(), "job-gone")
	if !errors.Is(err, services.ErrUnknownJob) {
		t.Fatalf("expected ErrUnknownJob, got %v", err)
	}
	if !services.IsFatal(err) {
		t.Fatal("unknown job must be fatal")
	}
}

func TestPollServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusBadGateway)
	})

	_, err := client.Poll(context.Background(), "job-3")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
	if services.IsFatal(err) {
		t.Fatal("5xx must not be fatal")
	}
}
