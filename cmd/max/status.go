package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxdata-sh/max/internal/supervise"
)

func newStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the health of the targeted node",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext(flags)
			if err != nil {
				return err
			}
			defer app.Close()

			var status supervise.HealthStatus
			switch {
			case app.target.Installation != "":
				inst, err := app.Installation()
				if err != nil {
					return err
				}
				status = inst.Health(cmd.Context())
			case app.target.Workspace != "":
				ws, err := app.Workspace()
				if err != nil {
					return err
				}
				status = ws.Health(cmd.Context())
			default:
				status = app.Global().Health(cmd.Context())
			}

			line := string(status.State)
			if status.Reason != "" {
				line += " (" + status.Reason + ")"
			}
			switch status.State {
			case supervise.Healthy:
				fmt.Fprintln(cmd.OutOrStdout(), line)
			case supervise.Degraded:
				fmt.Fprintln(cmd.OutOrStdout(), colorize(ansiYellow, line))
			default:
				fmt.Fprintln(cmd.OutOrStdout(), colorize(ansiRed, line))
			}
			return nil
		},
	}
}
