package main

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"scribeq/internal/api"
)

func renderItemsTable(items []api.QueueItem) string {
	rows := make([]table.Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, table.Row{
			item.ID,
			item.OwnerID,
			filepath.Base(item.PayloadPath),
			formatPayloadSize(item.PayloadSize),
			item.Priority,
			item.Status,
			item.Position,
			formatRetries(item),
			shortTime(item.CreatedAt),
		})
	}
	return renderTable(
		table.Row{"ID", "Owner", "Recording", "Size", "Priority", "Status", "Pos", "Retries", "Created"},
		rows,
		1, 4, 7,
	)
}

func renderStatsTable(stats api.Stats) string {
	statuses := make([]string, 0, len(stats.ByStatus))
	for status := range stats.ByStatus {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	rows := make([]table.Row, 0, len(statuses)+3)
	for _, status := range statuses {
		rows = append(rows, table.Row{status, stats.ByStatus[status]})
	}
	rows = append(rows,
		table.Row{"total", stats.Total},
		table.Row{"avg queue wait", formatMillis(stats.AvgQueueMillis)},
		table.Row{"avg processing", formatMillis(stats.AvgProcessingMillis)},
	)
	return renderTable(table.Row{"Metric", "Value"}, rows, 2)
}

func printItemDetail(cmd *cobra.Command, item api.QueueItem) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Item:      %d\n", item.ID)
	fmt.Fprintf(out, "Owner:     %s\n", item.OwnerID)
	if item.OrgID != "" {
		fmt.Fprintf(out, "Org:       %s\n", item.OrgID)
	}
	fmt.Fprintf(out, "Recording: %s (%s, %s)\n", item.PayloadPath, item.PayloadMime, formatPayloadSize(item.PayloadSize))
	fmt.Fprintf(out, "Priority:  %s\n", item.Priority)
	fmt.Fprintf(out, "Status:    %s\n", item.Status)
	fmt.Fprintf(out, "Position:  %d\n", item.Position)
	fmt.Fprintf(out, "Retries:   %s\n", formatRetries(item))
	if item.LastError != "" {
		fmt.Fprintf(out, "Error:     %s\n", item.LastError)
	}
	if item.ErrorDetails != "" {
		fmt.Fprintf(out, "Details:   %s\n", item.ErrorDetails)
	}
	if item.CreatedNoteID != "" {
		fmt.Fprintf(out, "Note:      %s\n", item.CreatedNoteID)
	}
	if item.ResultRef != "" {
		fmt.Fprintf(out, "Result:    %s\n", item.ResultRef)
	}
	fmt.Fprintf(out, "Created:   %s\n", shortTime(item.CreatedAt))
	if item.StartedAt != "" {
		fmt.Fprintf(out, "Started:   %s\n", shortTime(item.StartedAt))
	}
	if item.CompletedAt != "" {
		fmt.Fprintf(out, "Completed: %s\n", shortTime(item.CompletedAt))
	}
	if item.ExpiresAt != "" {
		fmt.Fprintf(out, "Expires:   %s\n", shortTime(item.ExpiresAt))
	}
}

func formatPayloadSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(size)/float64(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(size)/float64(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}

func formatRetries(item api.QueueItem) string {
	return fmt.Sprintf("%d/%d", item.RetryCount, item.MaxRetries)
}

func formatMillis(millis int64) string {
	if millis <= 0 {
		return "-"
	}
	return (time.Duration(millis) * time.Millisecond).Round(100 * time.Millisecond).String()
}

// shortTime turns an RFC 3339 timestamp into a compact local time. The
// raw value is shown as-is when it does not parse.
func shortTime(raw string) string {
	if raw == "" {
		return "-"
	}
	parsed, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return parsed.Local().Format("2006-01-02 15:04:05")
}
