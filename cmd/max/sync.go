package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maxdata-sh/max/internal/executor"
)

func newSyncCmd(flags *rootFlags) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Start a sync on the targeted installation",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext(flags)
			if err != nil {
				return err
			}
			defer app.Close()

			inst, err := app.Installation()
			if err != nil {
				return err
			}
			info, err := inst.Sync(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sync %s started\n", info.SyncID)

			if !wait {
				return nil
			}
			completion, err := inst.SyncCompletion(cmd.Context(), info.SyncID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sync %s %s: %d completed, %d failed in %dms\n",
				info.SyncID, completion.Status, completion.TasksCompleted,
				completion.TasksFailed, completion.Duration)
			if completion.Status != executor.StatusCompleted {
				return fmt.Errorf("sync %s ended %s", info.SyncID, completion.Status)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", true, "Wait for the sync to settle")
	return cmd
}
