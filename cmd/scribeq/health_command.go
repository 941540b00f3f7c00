package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribeq/internal/api"
	"scribeq/internal/queue"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var local bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check queue database health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var report api.DatabaseHealth

			if local {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				store, err := queue.Open(cfg)
				if err != nil {
					return fmt.Errorf("open queue store: %w", err)
				}
				defer store.Close()
				health, err := store.CheckHealth(cmd.Context())
				if err != nil {
					return err
				}
				report = api.FromDatabaseHealth(health)
			} else {
				client, err := ctx.client()
				if err != nil {
					return err
				}
				report, err = client.Health(cmd.Context())
				if err != nil {
					return fmt.Errorf("daemon health check failed (try --local): %w", err)
				}
			}

			printDatabaseHealth(cmd, report)
			if report.Error != "" || !report.IntegrityCheck {
				return fmt.Errorf("queue database is unhealthy")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&local, "local", false, "Inspect the database directly instead of asking the daemon")
	return cmd
}

func printDatabaseHealth(cmd *cobra.Command, health api.DatabaseHealth) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Database:  %s\n", health.DBPath)
	fmt.Fprintf(out, "Exists:    %t\n", health.DatabaseExists)
	fmt.Fprintf(out, "Readable:  %t\n", health.DatabaseReadable)
	fmt.Fprintf(out, "Schema:    %t\n", health.TableExists)
	fmt.Fprintf(out, "Integrity: %t\n", health.IntegrityCheck)
	fmt.Fprintf(out, "Items:     %d\n", health.TotalItems)
	if len(health.MissingColumns) > 0 {
		fmt.Fprintf(out, "Missing:   %v\n", health.MissingColumns)
	}
	if health.Error != "" {
		fmt.Fprintf(out, "Error:     %s\n", health.Error)
	}
}
