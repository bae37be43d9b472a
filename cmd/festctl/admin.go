package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cache2k25/internal/admin"
)

type adminFlags struct {
	email    string
	password string
}

func newAdminCmd(a *app) *cobra.Command {
	var af adminFlags

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Organiser view: stats, search and export",
	}
	cmd.PersistentFlags().StringVar(&af.email, "email", "", "Admin email")
	cmd.PersistentFlags().StringVar(&af.password, "password", "", "Admin password")

	creds := func() admin.Credentials {
		return admin.Credentials{Email: a.cfg.AdminEmail, Password: a.cfg.AdminPassword}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show registration counts and revenue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := openDashboard(cmd, a, creds(), af)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Total registrations: %d\n", d.Stats.Total)
			fmt.Fprintf(out, "Technical events:    %d\n", d.Stats.Technical)
			fmt.Fprintf(out, "Non-technical:       %d\n", d.Stats.NonTechnical)
			fmt.Fprintf(out, "Total revenue:       %.2f\n", d.Stats.Revenue)
			return nil
		},
	})

	var filter admin.Filter
	list := &cobra.Command{
		Use:   "list",
		Short: "List registrations, optionally filtered",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := openDashboard(cmd, a, creds(), af)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "REGISTRATION ID\tEVENT\tNAME\tEMAIL\tAMOUNT\tSTATUS\tDATE")
			for _, r := range d.Search(filter) {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
					r.RegistrationID, r.EventName, r.ParticipantName, r.Email, r.TotalAmount,
					r.PaymentStatus, r.TransactionDate.Local().Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	list.Flags().StringVarP(&filter.Query, "search", "s", "", "Match name, email or registration id")
	list.Flags().StringVar(&filter.EventID, "event", admin.AllEvents, "Only this event id")
	cmd.AddCommand(list)

	var outPath string
	export := &cobra.Command{
		Use:   "export",
		Short: "Download all registrations as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v := admin.NewView(creds(), a.client(), nil)
			if err := v.Login(af.email, af.password); err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			n, err := v.Export(cmd.Context(), w)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			if outPath != "" && outPath != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d registrations to %s\n", n, outPath)
			}
			return nil
		},
	}
	export.Flags().StringVarP(&outPath, "output", "o", "", "Output file (default stdout)")
	cmd.AddCommand(export)

	return cmd
}

// openDashboard fetches the catalog first since stats split by event category.
func openDashboard(cmd *cobra.Command, a *app, creds admin.Credentials, af adminFlags) (*admin.Dashboard, error) {
	client := a.client()
	cat, err := client.Catalog(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	return admin.NewView(creds, client, cat).Open(cmd.Context(), af.email, af.password)
}
