package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// StatusCounts returns a count of items grouped by status for a scope.
func (s *Store) StatusCounts(ctx context.Context, scope Scope) (map[Status]int, error) {
	query := `SELECT status, COUNT(1) FROM queue_items`
	var args []any
	var clauses []string
	if scope.OwnerID != "" {
		clauses = append(clauses, `owner_id = ?`)
		args = append(args, scope.OwnerID)
	}
	if scope.OrgID != "" {
		clauses = append(clauses, `org_id = ?`)
		args = append(args, scope.OrgID)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, ` AND `)
	}
	query += ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("queue status counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// CompletedDurations returns (started, completed, created) triples for
// completed items in a scope, for aggregate timing stats.
func (s *Store) CompletedDurations(ctx context.Context, scope Scope) ([][3]time.Time, error) {
	query := `SELECT started_at, completed_at, created_at FROM queue_items WHERE status = ?`
	args := []any{StatusCompleted}
	if scope.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, scope.OwnerID)
	}
	if scope.OrgID != "" {
		query += ` AND org_id = ?`
		args = append(args, scope.OrgID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("completed durations: %w", err)
	}
	defer rows.Close()

	var result [][3]time.Time
	for rows.Next() {
		var startedRaw, completedRaw sql.NullString
		var createdRaw string
		if err := rows.Scan(&startedRaw, &completedRaw, &createdRaw); err != nil {
			return nil, err
		}
		var triple [3]time.Time
		if startedRaw.Valid {
			if t, err := parseTimeString(startedRaw.String); err == nil {
				triple[0] = t
			}
		}
		if completedRaw.Valid {
			if t, err := parseTimeString(completedRaw.String); err == nil {
				triple[1] = t
			}
		}
		if t, err := parseTimeString(createdRaw); err == nil {
			triple[2] = t
		}
		result = append(result, triple)
	}
	return result, rows.Err()
}

// Cleanup deletes terminal items whose last update is older than the
// retention window, plus any item past its hard TTL. pending and processing
// items inside their TTL are never touched regardless of age.
func (s *Store) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -retentionDays).Format(time.RFC3339Nano)
	res, err := s.execWithRetry(
		ctx,
		`DELETE FROM queue_items
         WHERE (status IN (?, ?, ?) AND updated_at < ?) OR expires_at <= ?`,
		StatusCompleted,
		StatusFailed,
		StatusCancelled,
		cutoff,
		now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("cleanup queue: %w", err)
	}
	return res.RowsAffected()
}

// ResetStuckProcessing returns processing items to pending. Used on startup
// recovery when a previous run died mid-flight.
func (s *Store) ResetStuckProcessing(ctx context.Context) (int64, error) {
	res, err := s.execWithRetry(
		ctx,
		`UPDATE queue_items
         SET status = ?, started_at = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending,
		time.Now().UTC().Format(time.RFC3339Nano),
		StatusProcessing,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck items: %w", err)
	}
	return res.RowsAffected()
}

// Health aggregates queue state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	counts, err := s.StatusCounts(ctx, Scope{})
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for status, count := range counts {
		health.Total += count
		switch status {
		case StatusPending:
			health.Pending += count
		case StatusProcessing:
			health.Processing += count
		case StatusFailed:
			health.Failed += count
		case StatusCompleted:
			health.Completed += count
		case StatusCancelled:
			health.Cancelled += count
		}
	}
	return health, nil
}

// CheckHealth returns diagnostic information about the queue database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("queue database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat queue database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("queue database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("queue database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping queue database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'queue_items'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		colsRows, err := s.db.QueryContext(connCtx, "PRAGMA table_info(queue_items)")
		if err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("table info: %w", err)
		}
		defer colsRows.Close()

		var columns []string
		for colsRows.Next() {
			var (
				cid     int
				name    string
				typeStr string
				notNull int
				dflt    any
				pk      int
			)
			if err := colsRows.Scan(&cid, &name, &typeStr, &notNull, &dflt, &pk); err != nil {
				health.Error = err.Error()
				return health, fmt.Errorf("scan table info: %w", err)
			}
			columns = append(columns, name)
		}
		if err := colsRows.Err(); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("iterate table info: %w", err)
		}
		health.ColumnsPresent = append(health.ColumnsPresent, columns...)

		expected := strings.Split(itemColumns, ", ")
		missingMap := make(map[string]struct{}, len(expected))
		for _, col := range expected {
			missingMap[col] = struct{}{}
		}
		for _, col := range columns {
			delete(missingMap, col)
		}
		for col := range missingMap {
			health.MissingColumns = append(health.MissingColumns, col)
		}

		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM queue_items")
		if err := row.Scan(&health.TotalItems); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count queue items: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}
