package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Insert persists a new pending item, assigning the next position for the
// request's owner scope inside a single transaction.
func (s *Store) Insert(ctx context.Context, req EnqueueRequest, maxRetries, expiryDays int) (*Item, error) {
	ctx = ensureContext(ctx)
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	expires := now.AddDate(0, 0, expiryDays).Format(time.RFC3339Nano)
	priority := req.EffectivePriority()

	var id int64
	err := retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin enqueue tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		position, err := nextPosition(ctx, tx, req.OwnerID, req.OrgID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(
			ctx,
			`INSERT INTO queue_items (
                owner_id, org_id, payload_path, payload_size, payload_mime,
                priority, priority_rank, status, position, retry_count, max_retries,
                created_at, updated_at, expires_at
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			req.OwnerID,
			nullableString(req.OrgID),
			req.PayloadPath,
			req.PayloadSize,
			nullableString(req.PayloadMime),
			priority,
			priority.Rank(),
			StatusPending,
			position,
			0,
			maxRetries,
			timestamp,
			timestamp,
			expires,
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// nextPosition reserves the next position for an owner scope. Counters are
// kept in a separate table so positions never repeat after deletions.
func nextPosition(ctx context.Context, tx *sql.Tx, ownerID, orgID string) (int64, error) {
	var position int64
	err := tx.QueryRowContext(
		ctx,
		`SELECT next_position FROM queue_positions WHERE owner_id = ? AND org_id = ?`,
		ownerID, orgID,
	).Scan(&position)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		position = 1
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO queue_positions (owner_id, org_id, next_position) VALUES (?, ?, ?)`,
			ownerID, orgID, position+1,
		); err != nil {
			return 0, fmt.Errorf("init position counter: %w", err)
		}
	case err != nil:
		return 0, fmt.Errorf("read position counter: %w", err)
	default:
		if _, err := tx.ExecContext(
			ctx,
			`UPDATE queue_positions SET next_position = ? WHERE owner_id = ? AND org_id = ?`,
			position+1, ownerID, orgID,
		); err != nil {
			return 0, fmt.Errorf("advance position counter: %w", err)
		}
	}
	return position, nil
}

// GetByID fetches a queue item by identifier.
func (s *Store) GetByID(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM queue_items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// NextItem returns the eligible pending item with the best priority rank and,
// within a tie, the lowest position. Items past their expiry are never
// returned regardless of status.
func (s *Store) NextItem(ctx context.Context, scope Scope) (*Item, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := `SELECT ` + itemColumns + ` FROM queue_items WHERE status = ? AND expires_at > ?`
	args := []any{StatusPending, now}
	if scope.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, scope.OwnerID)
	}
	if scope.OrgID != "" {
		query += ` AND org_id = ?`
		args = append(args, scope.OrgID)
	}
	query += ` ORDER BY priority_rank, position LIMIT 1`

	row := s.db.QueryRowContext(ctx, query, args...)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("next item: %w", err)
	}
	return item, nil
}

// List returns queue items filtered by status set (or all items when no
// status is provided), ordered by priority then position.
func (s *Store) List(ctx context.Context, scope Scope, statuses ...Status) ([]*Item, error) {
	query := `SELECT ` + itemColumns + ` FROM queue_items`
	var clauses []string
	var args []any

	if len(statuses) > 0 {
		placeholders := makePlaceholders(len(statuses))
		for _, status := range statuses {
			args = append(args, status)
		}
		clauses = append(clauses, `status IN (`+placeholders+`)`)
	}
	if scope.OwnerID != "" {
		clauses = append(clauses, `owner_id = ?`)
		args = append(args, scope.OwnerID)
	}
	if scope.OrgID != "" {
		clauses = append(clauses, `org_id = ?`)
		args = append(args, scope.OrgID)
	}
	for i, clause := range clauses {
		if i == 0 {
			query += ` WHERE ` + clause
		} else {
			query += ` AND ` + clause
		}
	}
	query += ` ORDER BY priority_rank, position`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list queue items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Remove deletes an item by identifier.
func (s *Store) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM queue_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete item: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

const itemColumns = "id, owner_id, org_id, payload_path, payload_size, payload_mime, priority, status, position, retry_count, max_retries, last_error, error_details, result_ref, created_note_id, started_at, completed_at, created_at, updated_at, expires_at"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id           int64
		ownerID      string
		orgID        sql.NullString
		payloadPath  string
		payloadSize  int64
		payloadMime  sql.NullString
		priorityStr  string
		statusStr    string
		position     int64
		retryCount   int
		maxRetries   int
		lastError    sql.NullString
		errorDetails sql.NullString
		resultRef    sql.NullString
		noteID       sql.NullString
		startedRaw   sql.NullString
		completedRaw sql.NullString
		createdRaw   string
		updatedRaw   string
		expiresRaw   string
	)

	if err := scanner.Scan(
		&id,
		&ownerID,
		&orgID,
		&payloadPath,
		&payloadSize,
		&payloadMime,
		&priorityStr,
		&statusStr,
		&position,
		&retryCount,
		&maxRetries,
		&lastError,
		&errorDetails,
		&resultRef,
		&noteID,
		&startedRaw,
		&completedRaw,
		&createdRaw,
		&updatedRaw,
		&expiresRaw,
	); err != nil {
		return nil, err
	}

	item := &Item{
		ID:            id,
		OwnerID:       ownerID,
		OrgID:         orgID.String,
		PayloadPath:   payloadPath,
		PayloadSize:   payloadSize,
		PayloadMime:   payloadMime.String,
		Priority:      Priority(priorityStr),
		Status:        Status(statusStr),
		Position:      position,
		RetryCount:    retryCount,
		MaxRetries:    maxRetries,
		LastError:     lastError.String,
		ErrorDetails:  errorDetails.String,
		ResultRef:     resultRef.String,
		CreatedNoteID: noteID.String,
	}

	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			item.StartedAt = &started
		}
	}
	if completedRaw.Valid {
		if completed, err := parseTimeString(completedRaw.String); err == nil {
			item.CompletedAt = &completed
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	if expires, err := parseTimeString(expiresRaw); err == nil {
		item.ExpiresAt = expires
	}
	return item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}
