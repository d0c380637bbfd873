package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/adtrack/adtrack/pkg/diagnose"
)

func newRetryCommand() *cobra.Command {
	var (
		serverURL string
		newType   string
		chunkSize int
		items     []string
		fixType   string
	)

	cmd := &cobra.Command{
		Use:   "retry <operation-id>",
		Short: "Derive a retry operation from a failed one",
		Long: `Ask a running AdTrack service to derive a retry operation.

Retries must go through the live service: the new operation has to be
tracked, published, and archived like any other. A plain retry copies
the original's metadata and links both operations; --fix applies one
of the diagnostic auto-fixes instead.`,
		Example: `  # Plain retry with a derived type
  adtrack retry 6f1e8a2c-...

  # Retry with an explicit type
  adtrack retry 6f1e8a2c-... --type campaign_clone

  # Apply the reduce-chunk-size fix
  adtrack retry 6f1e8a2c-... --fix reduce_chunk_size --chunk-size 2

  # Retry only the failed campaigns
  adtrack retry 6f1e8a2c-... --fix retry_failed_items --item 123 --item 456`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{}
			if newType != "" {
				req["type"] = newType
			}
			switch fixType {
			case "":
			case diagnose.FixReduceChunkSize:
				if chunkSize < 1 {
					return fmt.Errorf("--chunk-size must be at least 1")
				}
				req["fix"] = diagnose.AutoFix{Type: fixType, ProposedChunkSize: chunkSize}
			case diagnose.FixRetryFailedItems:
				if len(items) == 0 {
					return fmt.Errorf("--item is required with %s", fixType)
				}
				req["fix"] = diagnose.AutoFix{Type: fixType, Items: items}
			default:
				return fmt.Errorf("unknown fix type: %s", fixType)
			}

			body, err := json.Marshal(req)
			if err != nil {
				return err
			}

			url := fmt.Sprintf("%s/api/operations/%s/retry",
				strings.TrimRight(serverURL, "/"), args[0])
			httpReq, err := http.NewRequestWithContext(cmd.Context(),
				http.MethodPost, url, bytes.NewReader(body))
			if err != nil {
				return err
			}
			httpReq.Header.Set("Content-Type", "application/json")

			client := &http.Client{Timeout: 30 * time.Second}
			resp, err := client.Do(httpReq)
			if err != nil {
				return fmt.Errorf("failed to reach service at %s: %w", serverURL, err)
			}
			defer func() { _ = resp.Body.Close() }()

			data, err := io.ReadAll(resp.Body)
			if err != nil {
				return err
			}
			if resp.StatusCode != http.StatusCreated {
				return fmt.Errorf("retry failed: %s: %s", resp.Status, strings.TrimSpace(string(data)))
			}

			var result struct {
				OperationID string `json:"operation_id"`
			}
			if err := json.Unmarshal(data, &result); err != nil {
				return err
			}

			if jsonOutput {
				return printJSON(result)
			}
			fmt.Printf("Retry operation created: %s\n", result.OperationID)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "http://127.0.0.1:8980", "AdTrack service URL")
	cmd.Flags().StringVarP(&newType, "type", "t", "", "type for the retry operation")
	cmd.Flags().StringVar(&fixType, "fix", "", "auto-fix to apply (reduce_chunk_size, retry_failed_items)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "chunk size for reduce_chunk_size")
	cmd.Flags().StringSliceVar(&items, "item", nil, "failed item for retry_failed_items (repeatable)")

	return cmd
}
