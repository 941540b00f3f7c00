package reconcile

import (
	"context"
	"log/slog"
	"time"

	"scribeq/internal/logging"
	"scribeq/internal/services/notes"
)

// Guard is the safety net consulted before a job is finalized as failed or
// timed out: the transcription engine and the note service are not
// transactionally linked, so a note may exist even when the client-observed
// job outcome is negative.
type Guard struct {
	lister   notes.Lister
	pageSize int
	window   time.Duration
	logger   *slog.Logger
}

// NewGuard constructs a reconciliation guard over the recent-notes listing.
func NewGuard(lister notes.Lister, pageSize int, window time.Duration, logger *slog.Logger) *Guard {
	if pageSize < 1 {
		pageSize = 10
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Guard{
		lister:   lister,
		pageSize: pageSize,
		window:   window,
		logger:   logging.NewComponentLogger(logger, "reconcile"),
	}
}

// Reconcile searches the newest-first recent-notes page for a note created
// by this job. A correlation id match wins outright; otherwise the first
// note created after submittedAt and within the trailing window of now is
// returned. The time-window fallback can false-positive when two jobs for
// the same patient run inside the window; callers surface that caveat.
// A nil result means the negative outcome stands.
func (g *Guard) Reconcile(ctx context.Context, correlationID string, submittedAt time.Time) (*notes.Note, error) {
	if g == nil || g.lister == nil {
		return nil, nil
	}

	listing, err := g.lister.ListRecentNotes(ctx, 1, g.pageSize)
	if err != nil {
		// Listing failure leaves the outcome ambiguous; the original
		// negative result stands.
		g.logger.Warn("recent-notes listing failed during reconciliation", logging.Error(err))
		return nil, err
	}

	now := time.Now().UTC()
	var fallback *notes.Note
	for i := range listing {
		note := listing[i]
		if correlationID != "" && note.CorrelationID == correlationID {
			g.logger.Info("reconciliation matched by correlation id",
				logging.String("note_id", note.ID),
			)
			return &note, nil
		}
		if fallback == nil &&
			note.CreatedAt.After(submittedAt) &&
			now.Sub(note.CreatedAt) <= g.window {
			fallback = &note
		}
	}
	if fallback != nil {
		g.logger.Info("reconciliation matched by time window",
			logging.String("note_id", fallback.ID),
			logging.Duration("age", now.Sub(fallback.CreatedAt)),
		)
	}
	return fallback, nil
}
