package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/job-dispatcher/shared/database"
)

func newMigrateCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the jobs schema",
		Long: `Apply, roll back or inspect the embedded schema migrations.

Examples:
  jobctl migrate up       # Apply every pending migration
  jobctl migrate down     # Roll back the latest migration
  jobctl migrate status   # Show applied and pending migrations`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			applied, err := database.Migrate(ctx, s.client.GetDB().DB, s.client.Driver())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				pterm.Fprintln(out, pterm.Gray("Schema is up to date"))
				return nil
			}
			for _, version := range applied {
				pterm.Fprintln(out, pterm.Green("✓ Applied"), version)
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the latest migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			version, err := database.MigrateDown(ctx, s.client.GetDB().DB, s.client.Driver())
			if err != nil {
				return err
			}
			pterm.Fprintln(cmd.OutOrStdout(), pterm.Yellow("↺ Rolled back"), version)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			statuses, err := database.Status(ctx, s.client.GetDB().DB, s.client.Driver())
			if err != nil {
				return err
			}

			data := pterm.TableData{{"Version", "Migration", "State"}}
			for _, st := range statuses {
				state := pterm.Yellow("pending")
				if st.Applied {
					state = pterm.Green("applied")
				}
				data = append(data, []string{fmt.Sprintf("%d", st.Version), st.Path, state})
			}
			return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
		},
	})

	return cmd
}
