package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/seed"
)

func newSeedCmd(opts *options) *cobra.Command {
	var (
		count    int
		seedFlag uint64
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample pending jobs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			if seedFlag == 0 {
				seedFlag = uint64(time.Now().UnixNano())
			}

			jobs, err := seed.NewGenerator(seedFlag, nil).Generate(count)
			if err != nil {
				return err
			}

			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			n, err := seed.Insert(ctx, s.store, jobs)
			if err != nil {
				return err
			}

			pterm.Fprintln(cmd.OutOrStdout(), pterm.Green("✓ Seeded"), n, "jobs")
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", seed.DefaultCount, "Number of jobs to insert")
	cmd.Flags().Uint64Var(&seedFlag, "seed", 0, "Random seed for generated fields (0 picks one)")

	return cmd
}
