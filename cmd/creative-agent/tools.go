package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Connect to every tool server and list the tools",
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := setupLogging()
		ctx, stop := signal.NotifyContext(ensureContext(cmd.Context()), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rt, err := setup(ctx, logger)
		if err != nil {
			return err
		}
		defer rt.close()

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TOOL\tSERVER\tDESCRIPTION")
		for _, t := range rt.agent.ListTools() {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.ServerName, t.Description)
		}
		return w.Flush()
	},
}
