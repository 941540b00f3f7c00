package queue

import (
	"context"
	"fmt"
	"time"

	"scribeq/internal/services"
)

// Transition applies a status change, enforcing the transition table. There
// is no other write path for status. StartedAt is stamped on entry to
// processing, CompletedAt on entry to completed or failed.
func (s *Store) Transition(ctx context.Context, id int64, to Status, data *TransitionData) (*Item, error) {
	ctx = ensureContext(ctx)
	if _, ok := statusSet[to]; !ok {
		return nil, services.Wrap(services.ErrInvalidTransition, "queue", "transition", fmt.Sprintf("unknown status %q", to), nil)
	}

	var updated *Item
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transition tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
		item, err := scanItem(row)
		if err != nil {
			return fmt.Errorf("load item %d: %w", id, err)
		}
		if !CanTransition(item.Status, to) {
			return services.Wrap(services.ErrInvalidTransition, "queue", "transition",
				fmt.Sprintf("item %d: %s -> %s", id, item.Status, to), nil)
		}

		now := time.Now().UTC()
		timestamp := now.Format(time.RFC3339Nano)
		item.Status = to
		item.UpdatedAt = now
		if to == StatusProcessing {
			item.StartedAt = &now
		}
		if to == StatusCompleted || to == StatusFailed {
			item.CompletedAt = &now
		}
		if data != nil {
			if data.LastError != "" {
				item.LastError = data.LastError
			}
			if data.ErrorDetails != "" {
				item.ErrorDetails = data.ErrorDetails
			}
			if data.ResultRef != "" {
				item.ResultRef = data.ResultRef
			}
			if data.CreatedNoteID != "" {
				item.CreatedNoteID = data.CreatedNoteID
			}
		}

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE queue_items
             SET status = ?, last_error = ?, error_details = ?, result_ref = ?,
                 created_note_id = ?, started_at = ?, completed_at = ?, updated_at = ?
             WHERE id = ?`,
			item.Status,
			nullableString(item.LastError),
			nullableString(item.ErrorDetails),
			nullableString(item.ResultRef),
			nullableString(item.CreatedNoteID),
			nullableTime(item.StartedAt),
			nullableTime(item.CompletedAt),
			timestamp,
			item.ID,
		); err != nil {
			return fmt.Errorf("persist transition: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit transition: %w", err)
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RetryItem moves a failed item back to pending with a fresh position at the
// back of the owner's queue. Items whose retry budget is spent stay failed
// and the call returns ErrRetryExhausted.
func (s *Store) RetryItem(ctx context.Context, id int64) (*Item, error) {
	ctx = ensureContext(ctx)

	var updated *Item
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin retry tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		row := tx.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
		item, err := scanItem(row)
		if err != nil {
			return fmt.Errorf("load item %d: %w", id, err)
		}
		if item.Status != StatusFailed {
			return services.Wrap(services.ErrInvalidTransition, "queue", "retry",
				fmt.Sprintf("item %d is %s, only failed items can be retried", id, item.Status), nil)
		}
		if item.RetryCount >= item.MaxRetries {
			return services.Wrap(services.ErrRetryExhausted, "queue", "retry",
				fmt.Sprintf("item %d used %d of %d retries", id, item.RetryCount, item.MaxRetries), nil)
		}

		position, err := nextPosition(ctx, tx, item.OwnerID, item.OrgID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		item.Status = StatusPending
		item.Position = position
		item.RetryCount++
		item.LastError = ""
		item.ErrorDetails = ""
		item.StartedAt = nil
		item.CompletedAt = nil
		item.UpdatedAt = now

		if _, err := tx.ExecContext(
			ctx,
			`UPDATE queue_items
             SET status = ?, position = ?, retry_count = ?, last_error = NULL,
                 error_details = NULL, started_at = NULL, completed_at = NULL, updated_at = ?
             WHERE id = ?`,
			item.Status,
			item.Position,
			item.RetryCount,
			now.Format(time.RFC3339Nano),
			item.ID,
		); err != nil {
			return fmt.Errorf("persist retry: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit retry: %w", err)
		}
		updated = item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}
