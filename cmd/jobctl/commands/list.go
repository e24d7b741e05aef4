package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
	"github.com/cuongbtq/job-dispatcher/internal/jobs/query"
)

func newListCmd(opts *options) *cobra.Command {
	var filter query.Filter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.open(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := opts.context(cmd)
			defer cancel()

			page, err := query.NewService(s.store).List(ctx, filter)
			if err != nil {
				if domain.IsValidation(err) {
					return fmt.Errorf("invalid filter: %s", domain.ValidationMessage(err))
				}
				return err
			}

			out := cmd.OutOrStdout()
			if len(page.Items) == 0 {
				pterm.Fprintln(out, pterm.Gray("No jobs found"))
				return nil
			}

			data := pterm.TableData{{"ID", "Task", "Priority", "Status", "Updated"}}
			for _, job := range page.Items {
				data = append(data, []string{
					job.ID,
					job.TaskName,
					string(job.Priority),
					colorStatus(job.Status),
					job.UpdatedAt.Local().Format("2006-01-02 15:04:05"),
				})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(data).Render(); err != nil {
				return err
			}

			pterm.Fprintln(out, pterm.Gray(fmt.Sprintf("page %d of %d (%d jobs)", page.Page, max(page.TotalPages, 1), page.Total)))
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status (pending, running, completed, failed)")
	cmd.Flags().StringVar(&filter.Priority, "priority", "", "Filter by priority (low, medium, high)")
	cmd.Flags().StringVarP(&filter.Query, "query", "q", "", "Case-insensitive task name search (min 3 characters)")
	cmd.Flags().IntVar(&filter.Page, "page", query.DefaultPage, "Page number")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "l", query.DefaultLimit, "Jobs per page (max 100)")

	return cmd
}

func colorStatus(s domain.Status) string {
	switch s {
	case domain.StatusPending:
		return pterm.Yellow(s)
	case domain.StatusRunning:
		return pterm.Cyan(s)
	case domain.StatusCompleted:
		return pterm.Green(s)
	case domain.StatusFailed:
		return pterm.Red(s)
	default:
		return string(s)
	}
}
