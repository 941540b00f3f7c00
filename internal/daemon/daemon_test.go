package daemon_test

import (
	"context"
	"testing"
	"time"

	"scribeq/internal/daemon"
	"scribeq/internal/logging"
	"scribeq/internal/persistence"
	"scribeq/internal/queue"
	"scribeq/internal/reconcile"
	"scribeq/internal/services/notes"
	"scribeq/internal/services/transcription"
	"scribeq/internal/testsupport"
	"scribeq/internal/workflow"
)

type idleEngine struct{}

func (idleEngine) Submit(context.Context, transcription.Submission) (transcription.SubmitResponse, error) {
	return transcription.SubmitResponse{JobID: "job-1"}, nil
}

func (idleEngine) Poll(context.Context, string) (transcription.PollResponse, error) {
	return transcription.PollResponse{Status: transcription.JobInProgress}, nil
}

type noNotes struct{}

func (noNotes) CreateNote(context.Context, notes.Draft) (notes.Note, error) {
	return notes.Note{ID: "note-1"}, nil
}

func (noNotes) ListRecentNotes(context.Context, int, int) ([]notes.Note, error) {
	return nil, nil
}

func newDaemon(t *testing.T) *daemon.Daemon {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	svc := queue.NewService(store, cfg, logging.NewNop())
	guard := reconcile.NewGuard(noNotes{}, 10, 5*time.Minute, logging.NewNop())
	orch := workflow.NewOrchestrator(svc, idleEngine{}, noNotes{}, guard, persistence.NewMemoryBridge(), cfg, logging.NewNop())

	d, err := daemon.New(cfg, store, svc, orch, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	return d
}

func TestDaemonStartStop(t *testing.T) {
	d := newDaemon(t)
	t.Cleanup(func() { d.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status(ctx)
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if d.APIAddr() == "" {
		t.Fatal("expected a bound api address")
	}

	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	status = d.Status(ctx)
	if status.Running {
		t.Fatal("expected daemon to report stopped")
	}
}

func TestDaemonStartRecoversStuckItems(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	store := testsupport.MustOpenStore(t, cfg)
	svc := queue.NewService(store, cfg, logging.NewNop())
	ctx := context.Background()

	item := testsupport.Enqueue(t, svc, testsupport.Recording("clinician-a"))
	if _, err := svc.Transition(ctx, item.ID, queue.StatusProcessing, nil); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}

	guard := reconcile.NewGuard(noNotes{}, 10, 5*time.Minute, logging.NewNop())
	orch := workflow.NewOrchestrator(svc, idleEngine{}, noNotes{}, guard, persistence.NewMemoryBridge(), cfg, logging.NewNop())
	d, err := daemon.New(cfg, store, svc, orch, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New failed: %v", err)
	}
	t.Cleanup(func() { d.Stop() })

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	recovered, err := svc.Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if recovered.Status != queue.StatusPending {
		t.Fatalf("expected the stuck item re-queued, got %s", recovered.Status)
	}
}
