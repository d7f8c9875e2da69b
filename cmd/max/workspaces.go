package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newWorkspacesCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workspaces",
		Short: "Manage workspaces known to the global node",
	}
	cmd.AddCommand(newWorkspacesListCmd(flags))
	return cmd
}

func newWorkspacesListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newAppContext(flags)
			if err != nil {
				return err
			}
			defer app.Close()

			list, err := app.Global().ListWorkspaces(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tPROJECT")
			for _, ws := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\n", ws.ID, ws.Name, ws.ProjectRoot)
			}
			return w.Flush()
		},
	}
}
