package workflow

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"scribeq/internal/logging"
	"scribeq/internal/persistence"
	"scribeq/internal/queue"
	"scribeq/internal/services"
	"scribeq/internal/services/transcription"
)

// Recording is an audio capture handed to the intake path.
type Recording struct {
	OwnerID          string
	OrgID            string
	Filename         string
	MimeType         string
	Audio            io.Reader
	Priority         queue.Priority
	ImmediateUrgency bool
	EmergencyVisit   bool
}

// job carries the in-flight state of one submitted transcription.
type job struct {
	item          *queue.Item
	snapshot      SubmissionContext
	correlationID string
	blobKey       string
	engineJobID   string
	submittedAt   time.Time
	immediate     *transcription.Result
}

// EnqueueRecording persists the audio payload through the blob store,
// enqueues the queue item, and records it in the pending snapshot so it
// survives a restart.
func (o *Orchestrator) EnqueueRecording(ctx context.Context, rec Recording) (*queue.Item, error) {
	key := uuid.NewString()
	if ext := filepath.Ext(rec.Filename); ext != "" {
		key += ext
	}
	ref, err := o.bridge.Save(ctx, key, rec.MimeType, rec.Audio)
	if err != nil {
		return nil, services.Wrap(services.ErrInvalidPayload, "workflow", "enqueue", "store audio payload", err)
	}

	payloadPath := ref.Path
	if payloadPath == "" {
		payloadPath = ref.Key
	}
	item, err := o.queue.Enqueue(ctx, queue.EnqueueRequest{
		OwnerID:          rec.OwnerID,
		OrgID:            rec.OrgID,
		PayloadPath:      payloadPath,
		PayloadSize:      ref.Size,
		PayloadMime:      ref.MimeType,
		Priority:         rec.Priority,
		ImmediateUrgency: rec.ImmediateUrgency,
		EmergencyVisit:   rec.EmergencyVisit,
	})
	if err != nil {
		_ = o.bridge.Remove(ctx, key)
		return nil, err
	}

	o.appendSnapshot(ctx, persistence.PendingRecording{
		ItemID:    item.ID,
		OwnerID:   item.OwnerID,
		BlobKey:   key,
		MimeType:  ref.MimeType,
		Size:      ref.Size,
		CreatedAt: item.CreatedAt,
	})
	return item, nil
}

// Process runs one queue item through the full transcription lifecycle and
// blocks until it reaches a terminal outcome. A second call while a job is
// in flight returns ErrBusy immediately.
func (o *Orchestrator) Process(ctx context.Context, id int64, sub SubmissionContext) (*Report, error) {
	jb, err := o.begin(ctx, id, sub)
	if err != nil {
		return nil, err
	}
	if jb.immediate != nil {
		return o.finishCompleted(ctx, jb, jb.immediate.Transcript, nil)
	}
	return o.poll(ctx, jb)
}

// ProcessAsync begins a job synchronously so duplicate and busy rejections
// reach the caller, then finishes it in the background. The report is logged
// when the job reaches its terminal outcome.
func (o *Orchestrator) ProcessAsync(ctx context.Context, id int64, sub SubmissionContext) error {
	jb, err := o.begin(ctx, id, sub)
	if err != nil {
		return err
	}
	go func() {
		bg := context.Background()
		var report *Report
		var runErr error
		if jb.immediate != nil {
			report, runErr = o.finishCompleted(bg, jb, jb.immediate.Transcript, nil)
		} else {
			report, runErr = o.poll(bg, jb)
		}
		if runErr != nil {
			o.logger.Error("background job failed",
				logging.Int64(logging.FieldItemID, id),
				logging.Error(runErr),
			)
			return
		}
		o.logger.Info("background job finished",
			logging.Int64(logging.FieldItemID, report.ItemID),
			logging.String("outcome", string(report.Outcome)),
		)
	}()
	return nil
}

// begin performs every synchronous step of a submission: debounce, lock
// acquisition, eligibility checks, dedup, the submission snapshot, the
// pending -> processing transition, and the Submit call itself.
func (o *Orchestrator) begin(ctx context.Context, id int64, sub SubmissionContext) (*job, error) {
	if err := o.acquire(id, time.Now()); err != nil {
		return nil, err
	}
	jb, err := o.prepare(ctx, id, sub)
	if err != nil {
		o.release(id)
		return nil, err
	}
	return jb, nil
}

func (o *Orchestrator) prepare(ctx context.Context, id int64, sub SubmissionContext) (*job, error) {
	item, err := o.queue.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, services.Wrap(services.ErrValidation, "workflow", "process", fmt.Sprintf("item %d not found", id), nil)
	}
	if item.Status != queue.StatusPending {
		return nil, services.Wrap(services.ErrInvalidTransition, "workflow", "process",
			fmt.Sprintf("item %d is %s, only pending items can be processed", id, item.Status), nil)
	}
	if item.PayloadSize < o.cfg.Transcription.MinPayloadBytes {
		ferr := services.Wrap(services.ErrInvalidPayload, "workflow", "process",
			fmt.Sprintf("payload is %d bytes, minimum is %d", item.PayloadSize, o.cfg.Transcription.MinPayloadBytes), nil)
		o.persistFailure(ctx, item.ID, "payload below minimum size", ferr)
		return nil, ferr
	}
	if err := o.checkDedup(dedupKey(item), time.Now()); err != nil {
		return nil, err
	}

	jb := &job{
		item:          item,
		snapshot:      sub,
		correlationID: uuid.NewString(),
		blobKey:       filepath.Base(item.PayloadPath),
	}

	if _, err := o.queue.Transition(ctx, item.ID, queue.StatusProcessing, nil); err != nil {
		return nil, err
	}

	audio, err := o.bridge.Open(ctx, jb.blobKey)
	if err != nil {
		ferr := services.Wrap(services.ErrInvalidPayload, "workflow", "process", "audio payload unreadable", err)
		o.persistFailure(ctx, item.ID, "audio payload unreadable", ferr)
		return nil, ferr
	}
	defer audio.Close()

	resp, err := o.engine.Submit(ctx, transcription.Submission{
		Audio:       audio,
		Filename:    jb.blobKey,
		MimeType:    item.PayloadMime,
		PatientHint: sub.PatientName,
		Language:    o.cfg.Transcription.Language,
	})
	jb.submittedAt = time.Now().UTC()
	if err != nil {
		o.persistFailure(ctx, item.ID, "transcription submission failed", err)
		return nil, err
	}

	switch {
	case resp.Result != nil:
		jb.immediate = resp.Result
	case strings.TrimSpace(resp.JobID) != "":
		jb.engineJobID = resp.JobID
		o.armSafety(item.ID)
	default:
		ferr := services.Wrap(services.ErrConfiguration, "workflow", "process", "engine returned neither job id nor result", nil)
		o.persistFailure(ctx, item.ID, "malformed engine response", ferr)
		return nil, ferr
	}

	o.logger.Info("transcription submitted",
		logging.Int64(logging.FieldItemID, item.ID),
		logging.String(logging.FieldJobID, jb.engineJobID),
		logging.Bool("immediate", jb.immediate != nil),
	)
	return jb, nil
}

// persistFailure records a processing failure on the item, tolerating items
// that never made it past pending.
func (o *Orchestrator) persistFailure(ctx context.Context, id int64, reason string, cause error) {
	data := &queue.TransitionData{LastError: reason}
	if cause != nil {
		data.ErrorDetails = cause.Error()
	}
	item, err := o.queue.Get(ctx, id)
	if err != nil || item == nil {
		return
	}
	if item.Status == queue.StatusPending {
		if _, err := o.queue.Transition(ctx, id, queue.StatusProcessing, nil); err != nil {
			o.logger.Warn("could not stamp failure", logging.Int64(logging.FieldItemID, id), logging.Error(err))
			return
		}
	}
	if _, err := o.queue.Transition(ctx, id, queue.StatusFailed, data); err != nil {
		o.logger.Warn("could not stamp failure", logging.Int64(logging.FieldItemID, id), logging.Error(err))
	}
}
