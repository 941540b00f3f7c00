package workflow

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"scribeq/internal/config"
	"scribeq/internal/logging"
	"scribeq/internal/persistence"
	"scribeq/internal/queue"
	"scribeq/internal/reconcile"
	"scribeq/internal/services/notes"
	"scribeq/internal/services/transcription"
)

var (
	// ErrBusy is returned when Process is called while another job holds the
	// single-flight lock.
	ErrBusy = errors.New("a transcription job is already in flight")
	// ErrDuplicate is returned when a submission is suppressed by the
	// debounce or deduplication window.
	ErrDuplicate = errors.New("duplicate submission suppressed")
)

// Outcome is the orchestrator-level terminal result of one processed job.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	// OutcomeTimeout means the polling budget elapsed without a definitive
	// answer. The queue item is persisted as failed with the timeout recorded
	// in its error details; the transcription may still finish server-side.
	OutcomeTimeout Outcome = "timeout"
)

// Report summarizes how one Process call ended.
type Report struct {
	ItemID  int64   `json:"item_id"`
	Outcome Outcome `json:"outcome"`
	NoteID  string  `json:"note_id,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

// SubmissionContext is the patient and clinical data captured at the moment
// of submission. It is copied once and never re-read afterward, so edits made
// while the job is in flight cannot leak into the created note.
type SubmissionContext struct {
	PatientName     string `json:"patient_name,omitempty"`
	ClinicalContext string `json:"clinical_context,omitempty"`
}

// Orchestrator owns the lifecycle of one submitted transcription job at a
// time: duplicate suppression, the single-flight lock, submission, polling,
// reconciliation, and the note-creation hand-off.
type Orchestrator struct {
	queue  *queue.Service
	engine transcription.Engine
	notes  notes.Service
	guard  *reconcile.Guard
	bridge persistence.Bridge
	cfg    *config.Config
	logger *slog.Logger

	pollInterval  time.Duration
	pollBudget    time.Duration
	safetyTimeout time.Duration
	debounce      time.Duration
	dedupWindow   time.Duration

	mu       sync.Mutex
	busy     bool
	activeID int64
	safety   *time.Timer

	attempts    map[int64]time.Time
	submissions map[string]time.Time

	snapMu sync.Mutex
}

// NewOrchestrator wires the orchestrator from its collaborators. Timing knobs
// come from the config.
func NewOrchestrator(
	queueSvc *queue.Service,
	engine transcription.Engine,
	noteSvc notes.Service,
	guard *reconcile.Guard,
	bridge persistence.Bridge,
	cfg *config.Config,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		queue:         queueSvc,
		engine:        engine,
		notes:         noteSvc,
		guard:         guard,
		bridge:        bridge,
		cfg:           cfg,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		pollInterval:  time.Duration(cfg.Transcription.PollIntervalSeconds) * time.Second,
		pollBudget:    time.Duration(cfg.Transcription.PollBudgetSeconds) * time.Second,
		safetyTimeout: time.Duration(cfg.Transcription.SafetyTimeoutSeconds) * time.Second,
		debounce:      time.Duration(cfg.Queue.DebounceMillis) * time.Millisecond,
		dedupWindow:   time.Duration(cfg.Queue.DedupWindowSeconds) * time.Second,
		attempts:      make(map[int64]time.Time),
		submissions:   make(map[string]time.Time),
	}
}

// Busy reports whether a job currently holds the single-flight lock and, if
// so, which item it is processing.
func (o *Orchestrator) Busy() (bool, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.busy, o.activeID
}

// acquire takes the single-flight lock for an item after the debounce check.
func (o *Orchestrator) acquire(id int64, now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for k, last := range o.attempts {
		if k != id && now.Sub(last) >= o.debounce {
			delete(o.attempts, k)
		}
	}
	if last, ok := o.attempts[id]; ok && now.Sub(last) < o.debounce {
		return fmt.Errorf("%w: item %d submitted %s ago", ErrDuplicate, id, now.Sub(last).Round(time.Millisecond))
	}
	o.attempts[id] = now

	if o.busy {
		return fmt.Errorf("%w: item %d", ErrBusy, o.activeID)
	}
	o.busy = true
	o.activeID = id
	return nil
}

// release drops the single-flight lock if this item still holds it and stops
// the safety timer. Safe to call more than once.
func (o *Orchestrator) release(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.busy || o.activeID != id {
		return
	}
	o.busy = false
	o.activeID = 0
	if o.safety != nil {
		o.safety.Stop()
		o.safety = nil
	}
}

// armSafety starts the liveness timer that force-releases the lock if the
// job never reaches a terminal state. The item keeps its own processing
// record; only the lock is freed.
func (o *Orchestrator) armSafety(id int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.safety != nil {
		o.safety.Stop()
	}
	o.safety = time.AfterFunc(o.safetyTimeout, func() {
		o.forceRelease(id)
	})
}

func (o *Orchestrator) forceRelease(id int64) {
	o.mu.Lock()
	released := o.busy && o.activeID == id
	if released {
		o.busy = false
		o.activeID = 0
		o.safety = nil
	}
	o.mu.Unlock()
	if released {
		o.logger.Warn("safety timer released the single-flight lock",
			logging.Int64(logging.FieldItemID, id),
			logging.Duration("after", o.safetyTimeout),
		)
	}
}

// dedupKey identifies a payload across repeated submission attempts.
func dedupKey(item *queue.Item) string {
	return fmt.Sprintf("%s|%s|%d", item.OwnerID, item.PayloadPath, item.PayloadSize)
}

// checkDedup rejects a payload fingerprint seen within the dedup window and
// records this attempt. Stale fingerprints are pruned as a side effect.
func (o *Orchestrator) checkDedup(key string, now time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	for k, seen := range o.submissions {
		if now.Sub(seen) >= o.dedupWindow {
			delete(o.submissions, k)
		}
	}
	if seen, ok := o.submissions[key]; ok {
		return fmt.Errorf("%w: same payload submitted %s ago", ErrDuplicate, now.Sub(seen).Round(time.Second))
	}
	o.submissions[key] = now
	return nil
}
