package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scribeq/internal/daemon"
	"scribeq/internal/logging"
	"scribeq/internal/queue"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the queue daemon in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return fmt.Errorf("open queue store: %w", err)
			}
			defer store.Close()

			queueSvc := queue.NewService(store, cfg, logger)
			orchestrator, err := buildOrchestrator(cfg, queueSvc, logger)
			if err != nil {
				return fmt.Errorf("build orchestrator: %w", err)
			}

			d, err := daemon.New(cfg, store, queueSvc, orchestrator, logger)
			if err != nil {
				return fmt.Errorf("build daemon: %w", err)
			}
			if err := d.Start(signalCtx); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}
			defer d.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "scribeq daemon listening on %s (ctrl-c to stop)\n", d.APIAddr())
			<-signalCtx.Done()
			fmt.Fprintln(cmd.OutOrStdout(), "Shutting down")
			return nil
		},
	}
	return cmd
}
