package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose bool
	target  string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "max",
		Short:         "Max syncs entities from SaaS connectors into a local queryable store",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVar(&flags.target, "target", "", "Target node URL (max://~[/<workspace>[/<installation>]])")

	cmd.AddCommand(newStatusCmd(flags))
	cmd.AddCommand(newSyncCmd(flags))
	cmd.AddCommand(newInstallationsCmd(flags))
	cmd.AddCommand(newWorkspacesCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
