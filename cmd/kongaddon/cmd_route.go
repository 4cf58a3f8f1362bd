package main

import (
	"fmt"

	"kongaddon/internal/route"

	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route [url]",
	Short: "Print the page id of a portal URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := route.PageID(args[0])
		if route.IsGamePage(args[0]) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s (game page)\n", id)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), id)
		return nil
	},
}
