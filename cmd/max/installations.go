package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInstallationsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "installations",
		Short: "Manage the targeted workspace's installations",
	}
	cmd.AddCommand(newInstallationsListCmd(flags))
	return cmd
}

func newInstallationsListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installations of the targeted workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext(flags)
			if err != nil {
				return err
			}
			defer app.Close()

			ws, err := app.Workspace()
			if err != nil {
				return err
			}
			list, err := ws.ListInstallations(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCONNECTOR\tCONNECTED")
			for _, inst := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					inst.ID, inst.Name, inst.Connector,
					inst.ConnectedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
}
