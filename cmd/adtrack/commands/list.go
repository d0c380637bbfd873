package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adtrack/adtrack/pkg/tracker"
)

func newListCommand() *cobra.Command {
	var (
		archivePath string
		opType      string
		status      string
		limit       int
		offset      int
		sortBy      string
		ascending   bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List archived operations",
		Long: `List operations recorded in the archive.

Results are sorted by start time, newest first, unless overridden.
The status filter accepts the dashboard spelling in_progress as well
as the canonical running.`,
		Example: `  # List the most recent operations
  adtrack list --limit 20

  # List failed campaign clones
  adtrack list --type campaign_clone --status failed

  # List in-progress operations as JSON
  adtrack list --status in_progress --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			filter := tracker.ListFilter{
				Type:   opType,
				Limit:  limit,
				Offset: offset,
				SortBy: sortBy,
			}
			if ascending {
				filter.SortDirection = tracker.SortAsc
			}
			if status != "" {
				parsed, err := tracker.ParseStatus(status)
				if err != nil {
					return err
				}
				filter.Status = parsed
			}

			arch, err := openArchive(ctx, archivePath)
			if err != nil {
				return err
			}
			defer func() { _ = arch.Close() }()

			ops, err := arch.ListOperations(ctx, filter)
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(ops)
			}

			if len(ops) == 0 {
				fmt.Println("No operations found")
				return nil
			}

			fmt.Printf("%-36s  %-24s  %-11s  %8s  %-20s\n",
				"ID", "TYPE", "STATUS", "PROGRESS", "STARTED")
			for _, op := range ops {
				started := "-"
				if op.StartedAt != nil {
					started = op.StartedAt.Format(time.RFC3339)
				}
				fmt.Printf("%-36s  %-24s  %-11s  %7.0f%%  %-20s\n",
					op.ID, op.Type, op.Status.Dashboard(), op.Progress, started)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive path (overrides config)")
	cmd.Flags().StringVarP(&opType, "type", "t", "", "filter by operation type")
	cmd.Flags().StringVarP(&status, "status", "s", "", "filter by status")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "maximum operations to list (0 = all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "skip this many operations")
	cmd.Flags().StringVar(&sortBy, "sort", tracker.SortByStartedAt, "sort key (started_at, created_at, progress)")
	cmd.Flags().BoolVar(&ascending, "asc", false, "sort ascending instead of descending")

	return cmd
}
