package workflow

import (
	"context"
	"time"

	"scribeq/internal/logging"
	"scribeq/internal/queue"
	"scribeq/internal/services"
	"scribeq/internal/services/notes"
	"scribeq/internal/services/transcription"
)

// poll drives an asynchronous job to a terminal outcome. The interval is
// fixed; jobs are expected to finish well inside the budget, so there is no
// backoff. Both timers stop as soon as a terminal path is taken.
func (o *Orchestrator) poll(ctx context.Context, jb *job) (*Report, error) {
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()
	budget := time.NewTimer(o.pollBudget)
	defer budget.Stop()

	for {
		select {
		case <-pollCtx.Done():
			return o.finishFailed(context.Background(), jb, "processing interrupted", pollCtx.Err())

		case <-budget.C:
			return o.finishTimeout(ctx, jb)

		case <-ticker.C:
			resp, err := o.engine.Poll(pollCtx, jb.engineJobID)
			if err != nil {
				if services.IsFatal(err) {
					// The engine does not know this job; there is no note
					// to reconcile against.
					return o.finishFailed(ctx, jb, "transcription job not recognized", err)
				}
				o.logger.Debug("transient poll failure",
					logging.Int64(logging.FieldItemID, jb.item.ID),
					logging.Error(err),
				)
				continue
			}

			switch resp.Status {
			case transcription.JobCompleted:
				return o.finishCompleted(ctx, jb, resp.Transcript, nil)
			case transcription.JobFailed:
				return o.finishReportedFailure(ctx, jb, resp.Error)
			default:
				// QUEUED / IN_PROGRESS: re-arm and keep waiting.
			}
		}
	}
}

// finishReportedFailure handles an explicit FAILED poll status. The engine
// and the note service are not transactionally linked, so the guard checks
// for a note before the failure is accepted.
func (o *Orchestrator) finishReportedFailure(ctx context.Context, jb *job, engineError string) (*Report, error) {
	note, err := o.guard.Reconcile(ctx, jb.correlationID, jb.submittedAt)
	if err == nil && note != nil {
		o.logger.Info("engine reported failure but a matching note exists",
			logging.Int64(logging.FieldItemID, jb.item.ID),
			logging.String("note_id", note.ID),
		)
		return o.finishCompleted(ctx, jb, "", note)
	}
	reason := "transcription failed"
	if engineError != "" {
		reason = "transcription failed: " + engineError
	}
	return o.finishFailed(ctx, jb, reason, nil)
}

// finishTimeout handles an exhausted polling budget. Reconciliation runs
// first; without a match the item is persisted as failed with the timeout
// recorded, and the distinct timeout outcome is reported to the caller.
func (o *Orchestrator) finishTimeout(ctx context.Context, jb *job) (*Report, error) {
	note, err := o.guard.Reconcile(ctx, jb.correlationID, jb.submittedAt)
	if err == nil && note != nil {
		o.logger.Info("poll budget elapsed but a matching note exists",
			logging.Int64(logging.FieldItemID, jb.item.ID),
			logging.String("note_id", note.ID),
		)
		return o.finishCompleted(ctx, jb, "", note)
	}

	defer o.release(jb.item.ID)
	o.persistFailure(ctx, jb.item.ID, "transcription timed out", services.Wrap(services.ErrTransient,
		"workflow", "poll", "poll budget exhausted without a terminal status", nil))
	o.logger.Warn("job timed out",
		logging.Int64(logging.FieldItemID, jb.item.ID),
		logging.String(logging.FieldJobID, jb.engineJobID),
		logging.Duration("budget", o.pollBudget),
	)
	return &Report{ItemID: jb.item.ID, Outcome: OutcomeTimeout, Reason: "poll budget exhausted"}, nil
}

// finishCompleted creates the note from the submission snapshot (unless
// reconciliation already found one), stamps the completed transition, and
// drops the local artifacts. The durable record stays for stats until the
// retention cleanup removes it.
func (o *Orchestrator) finishCompleted(ctx context.Context, jb *job, transcript string, existing *notes.Note) (*Report, error) {
	defer o.release(jb.item.ID)

	var note notes.Note
	if existing != nil {
		note = *existing
	} else {
		created, err := o.notes.CreateNote(ctx, notes.Draft{
			PatientName:     jb.snapshot.PatientName,
			ClinicalContext: jb.snapshot.ClinicalContext,
			Transcript:      transcript,
			Language:        o.cfg.Transcription.Language,
			CorrelationID:   jb.correlationID,
		})
		if err != nil {
			o.persistFailure(ctx, jb.item.ID, "note creation failed", err)
			return &Report{ItemID: jb.item.ID, Outcome: OutcomeFailed, Reason: "note creation failed"}, err
		}
		note = created
	}

	if _, err := o.queue.Transition(ctx, jb.item.ID, queue.StatusCompleted, &queue.TransitionData{
		ResultRef:     jb.engineJobID,
		CreatedNoteID: note.ID,
	}); err != nil {
		return &Report{ItemID: jb.item.ID, Outcome: OutcomeFailed, Reason: "completion could not be recorded"}, err
	}

	o.releaseArtifacts(ctx, jb.item.ID, jb.blobKey)
	o.logger.Info("job completed",
		logging.Int64(logging.FieldItemID, jb.item.ID),
		logging.String("note_id", note.ID),
	)
	return &Report{ItemID: jb.item.ID, Outcome: OutcomeCompleted, NoteID: note.ID}, nil
}

// finishFailed persists a failure. The item and its blob stay visible so the
// owner can retry manually.
func (o *Orchestrator) finishFailed(ctx context.Context, jb *job, reason string, cause error) (*Report, error) {
	defer o.release(jb.item.ID)
	o.persistFailure(ctx, jb.item.ID, reason, cause)
	o.logger.Warn("job failed",
		logging.Int64(logging.FieldItemID, jb.item.ID),
		logging.String(logging.FieldErrorHint, reason),
	)
	return &Report{ItemID: jb.item.ID, Outcome: OutcomeFailed, Reason: reason}, nil
}
