package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"quill/internal/deps"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon health, active backend and tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			client, err := ctx.client()
			if err != nil {
				return err
			}

			health, err := client.Health(cmd.Context())
			if err != nil {
				fmt.Fprintf(out, "daemon: unreachable (%v)\n", err)
			} else {
				fmt.Fprintf(out, "daemon: %s (version %s)\n", health.Status, health.Version)
				backend, berr := client.Backend(cmd.Context())
				if berr == nil {
					fmt.Fprintf(out, "backend: %s (%.1fx realtime, device=%s)\n",
						backend.Backend, backend.RealtimeFactor, backend.DeviceSetting)
				}
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.Requirements(cfg))
			rows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				availability := "ok"
				if !status.Available {
					availability = status.Detail
					if status.Optional {
						availability += " (optional)"
					}
				}
				rows = append(rows, []string{status.Name, status.Command, availability})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Status"},
				rows,
				nil,
			))
			return nil
		},
	}
}
