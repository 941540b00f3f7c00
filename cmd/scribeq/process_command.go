package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"scribeq/internal/api"
)

func newProcessCommand(ctx *commandContext) *cobra.Command {
	var patient, clinical string

	cmd := &cobra.Command{
		Use:   "process <id>",
		Short: "Start transcription for a pending recording",
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
			err = client.Process(cmd.Context(), id, api.ProcessRequest{
				PatientName:     patient,
				ClinicalContext: clinical,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Item %d processing started\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&patient, "patient", "", "Patient name to attach to the clinical note")
	cmd.Flags().StringVar(&clinical, "context", "", "Clinical context to attach to the note")
	return cmd
}
