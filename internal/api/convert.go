package api

import (
	"time"

	"scribeq/internal/queue"
)

// FromItem converts a stored queue item into its transport form.
func FromItem(item *queue.Item) QueueItem {
	if item == nil {
		return QueueItem{}
	}
	return QueueItem{
		ID:            item.ID,
		OwnerID:       item.OwnerID,
		OrgID:         item.OrgID,
		PayloadPath:   item.PayloadPath,
		PayloadSize:   item.PayloadSize,
		PayloadMime:   item.PayloadMime,
		Priority:      string(item.Priority),
		Status:        string(item.Status),
		Position:      item.Position,
		RetryCount:    item.RetryCount,
		MaxRetries:    item.MaxRetries,
		LastError:     item.LastError,
		ErrorDetails:  item.ErrorDetails,
		ResultRef:     item.ResultRef,
		CreatedNoteID: item.CreatedNoteID,
		StartedAt:     formatOptionalTime(item.StartedAt),
		CompletedAt:   formatOptionalTime(item.CompletedAt),
		CreatedAt:     formatTime(item.CreatedAt),
		UpdatedAt:     formatTime(item.UpdatedAt),
		ExpiresAt:     formatTime(item.ExpiresAt),
	}
}

// FromItems converts a listing.
func FromItems(items []*queue.Item) []QueueItem {
	out := make([]QueueItem, 0, len(items))
	for _, item := range items {
		out = append(out, FromItem(item))
	}
	return out
}

// FromStats converts queue statistics.
func FromStats(stats queue.Stats) Stats {
	byStatus := make(map[string]int, len(stats.ByStatus))
	for status, count := range stats.ByStatus {
		byStatus[string(status)] = count
	}
	return Stats{
		Total:               stats.Total,
		ByStatus:            byStatus,
		AvgProcessingMillis: stats.AvgProcessingTime.Milliseconds(),
		AvgQueueMillis:      stats.AvgQueueTime.Milliseconds(),
	}
}

// FromDatabaseHealth converts database diagnostics.
func FromDatabaseHealth(health queue.DatabaseHealth) DatabaseHealth {
	return DatabaseHealth{
		DBPath:           health.DBPath,
		DatabaseExists:   health.DatabaseExists,
		DatabaseReadable: health.DatabaseReadable,
		TableExists:      health.TableExists,
		ColumnsPresent:   health.ColumnsPresent,
		MissingColumns:   health.MissingColumns,
		IntegrityCheck:   health.IntegrityCheck,
		TotalItems:       health.TotalItems,
		Error:            health.Error,
	}
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.UTC().Format(time.RFC3339)
}

func formatOptionalTime(value *time.Time) string {
	if value == nil {
		return ""
	}
	return formatTime(*value)
}
