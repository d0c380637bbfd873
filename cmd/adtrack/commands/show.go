package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/adtrack/adtrack/pkg/tracker"
)

func newShowCommand() *cobra.Command {
	var (
		archivePath string
		showLogs    bool
		showPoints  bool
	)

	cmd := &cobra.Command{
		Use:   "show <operation-id>",
		Short: "Show an archived operation",
		Long: `Show one operation from the archive: status, progress, timing,
error details, and optionally its log entries and restore points.`,
		Example: `  # Show an operation
  adtrack show 6f1e8a2c-...

  # Include logs and restore points
  adtrack show 6f1e8a2c-... --logs --restore-points

  # Full record as JSON
  adtrack show 6f1e8a2c-... --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			arch, err := openArchive(ctx, archivePath)
			if err != nil {
				return err
			}
			defer func() { _ = arch.Close() }()

			op, err := arch.GetOperation(ctx, args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(op)
			}

			printOperation(op)
			if showLogs {
				fmt.Println()
				printLogs(op.Logs)
			}
			if showPoints {
				fmt.Println()
				printRestorePoints(op.RestorePoints)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive path (overrides config)")
	cmd.Flags().BoolVar(&showLogs, "logs", false, "include log entries")
	cmd.Flags().BoolVar(&showPoints, "restore-points", false, "include restore points")

	return cmd
}

func printOperation(op *tracker.Operation) {
	fmt.Printf("ID:        %s\n", op.ID)
	fmt.Printf("Type:      %s\n", op.Type)
	fmt.Printf("Status:    %s\n", op.Status.Dashboard())
	fmt.Printf("Progress:  %.0f%%\n", op.Progress)
	fmt.Printf("Created:   %s\n", op.CreatedAt.Format(time.RFC3339))
	if op.StartedAt != nil {
		fmt.Printf("Started:   %s\n", op.StartedAt.Format(time.RFC3339))
	}
	if op.CompletedAt != nil {
		fmt.Printf("Completed: %s\n", op.CompletedAt.Format(time.RFC3339))
	}
	if d := op.Duration(); d > 0 {
		fmt.Printf("Duration:  %s\n", d.Round(time.Millisecond))
	}
	if op.Error != nil {
		if op.Error.Code != "" {
			fmt.Printf("Error:     [%s] %s\n", op.Error.Code, op.Error.Message)
		} else {
			fmt.Printf("Error:     %s\n", op.Error.Message)
		}
	}
	if len(op.Metadata) > 0 {
		fmt.Println("Metadata:")
		for k, v := range op.Metadata {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
	fmt.Printf("Logs:      %d entries\n", len(op.Logs))
	fmt.Printf("Restore points: %d\n", len(op.RestorePoints))
}

func printLogs(logs []tracker.LogEntry) {
	if len(logs) == 0 {
		fmt.Println("No log entries")
		return
	}
	for _, entry := range logs {
		fmt.Printf("%s  %-7s  %s\n",
			entry.Timestamp.Format(time.RFC3339), entry.Level, entry.Message)
		for k, v := range entry.Details {
			fmt.Printf("%41s%s: %v\n", "", k, v)
		}
	}
}

func printRestorePoints(points []tracker.RestorePoint) {
	if len(points) == 0 {
		fmt.Println("No restore points")
		return
	}
	for _, rp := range points {
		fmt.Printf("%s  %-20s  %s\n",
			rp.Timestamp.Format(time.RFC3339), rp.Type, rp.ID)
		if rp.Metadata != nil && rp.Metadata.Name != "" {
			fmt.Printf("%43s%s\n", "", rp.Metadata.Name)
		}
	}
}
