package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/query"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show job counts per status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			counts, err := query.NewService(s.store).Aggregate(ctx)
			if err != nil {
				return err
			}

			data := pterm.TableData{
				{"Status", "Jobs"},
				{pterm.Yellow("pending"), fmt.Sprint(counts.Pending)},
				{pterm.Cyan("running"), fmt.Sprint(counts.Running)},
				{pterm.Green("completed"), fmt.Sprint(counts.Completed)},
				{pterm.Red("failed"), fmt.Sprint(counts.Failed)},
				{pterm.Bold.Sprint("total"), pterm.Bold.Sprint(counts.Total)},
			}
			return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
		},
	}
}
