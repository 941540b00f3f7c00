package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"scribeq/internal/api"
	"scribeq/internal/queue"
)

var mimeByExtension = map[string]string{
	".m4a":  "audio/mp4",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".wav":  "audio/wav",
	".webm": "audio/webm",
}

func newEnqueueCommand(ctx *commandContext) *cobra.Command {
	var owner, org, priority string
	var urgent, emergency bool

	cmd := &cobra.Command{
		Use:   "enqueue <audio-file>",
		Short: "Add a recording to the transcription queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			path := args[0]
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("open recording: %w", err)
			}
			defer file.Close()

			item, err := client.Enqueue(cmd.Context(), api.EnqueueUpload{
				OwnerID:          owner,
				OrgID:            org,
				Filename:         filepath.Base(path),
				MimeType:         mimeForFile(path),
				Audio:            file,
				Priority:         priority,
				ImmediateUrgency: urgent,
				EmergencyVisit:   emergency,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d enqueued at position %d (%s)\n", item.ID, item.Position, item.Priority)
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner (clinician) id")
	cmd.Flags().StringVar(&org, "org", "", "Organization id")
	cmd.Flags().StringVar(&priority, "priority", "", "Priority (urgent, high, normal, low)")
	cmd.Flags().BoolVar(&urgent, "urgent", false, "Escalate for immediate medical urgency")
	cmd.Flags().BoolVar(&emergency, "emergency", false, "Escalate for an emergency visit type")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var owner, org string
	var statuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued recordings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			filters := make([]queue.Status, 0, len(statuses))
			for _, raw := range statuses {
				status, ok := queue.ParseStatus(raw)
				if !ok {
					return fmt.Errorf("unknown status %q", raw)
				}
				filters = append(filters, status)
			}
			items, err := client.List(cmd.Context(), queue.Scope{OwnerID: owner, OrgID: org}, filters...)
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderItemsTable(items))
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner id")
	cmd.Flags().StringVar(&org, "org", "", "Filter by organization id")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "Filter by status (repeatable)")
	return cmd
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue item in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseItemID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			item, err := client.Describe(cmd.Context(), id)
			if err != nil {
				return err
			}
			printItemDetail(cmd, item)
			return nil
		},
	}
	return cmd
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var owner, org string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show queue statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			stats, err := client.Stats(cmd.Context(), queue.Scope{OwnerID: owner, OrgID: org})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderStatsTable(stats))
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Filter by owner id")
	cmd.Flags().StringVar(&org, "org", "", "Filter by organization id")
	return cmd
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "retry <id>...",
		Short: "Re-queue failed recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			for _, arg := range args {
				id, err := parseItemID(arg)
				if err != nil {
					return err
				}
				item, err := client.Retry(cmd.Context(), id)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d: %v\n", id, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d re-queued at position %d (attempt %d of %d)\n",
					item.ID, item.Position, item.RetryCount, item.MaxRetries)
			}
			return nil
		},
	}
	return cmd
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <id>...",
		Short: "Cancel pending recordings",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			for _, arg := range args {
				id, err := parseItemID(arg)
				if err != nil {
					return err
				}
				if err := client.Cancel(cmd.Context(), id); err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "Item %d: %v\n", id, err)
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Item %d removed\n", id)
			}
			return nil
		},
	}
	return cmd
}

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Delete old terminal items and expired recordings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			removed, err := client.Cleanup(cmd.Context(), days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d item(s)\n", removed)
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 0, "Retention window override in days (0 uses the configured value)")
	return cmd
}

func parseItemID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid item id %q", arg)
	}
	return id, nil
}

func mimeForFile(path string) string {
	if mime, ok := mimeByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return mime
	}
	return "application/octet-stream"
}
