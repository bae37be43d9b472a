package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cache2k25/internal/catalog"
)

func newEventsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "List fest events and whether registration is open",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := a.client().Catalog(cmd.Context())
			if err != nil {
				return fmt.Errorf("fetch events: %w", err)
			}

			now := a.now()
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tDEADLINE\tSTATUS")
			for _, e := range cat.All() {
				status := "open"
				if !catalog.IsOpen(e, now) {
					status = "closed"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%s\t%s\n", e.ID, e.Name, e.Category, e.Price, e.Deadline, status)
			}
			return w.Flush()
		},
	}
}
