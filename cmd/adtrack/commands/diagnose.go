package commands

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/adtrack/adtrack/pkg/diagnose"
)

func newDiagnoseCommand() *cobra.Command {
	var (
		archivePath string
		policyDir   string
	)

	cmd := &cobra.Command{
		Use:   "diagnose <operation-id>",
		Short: "Analyze an archived operation for known failure causes",
		Long: `Run the diagnostic rules against one archived operation.

Diagnostics classify findings such as:
  - API rate limiting (suggests retrying with a smaller chunk size)
  - Partial completion (suggests retrying only the failed items)
  - Unconfirmed negative keyword copies
  - Default naming template in use

Operator-supplied Rego policies extend the builtin rules. Findings
marked auto-fixable can be applied with the retry command.`,
		Example: `  # Diagnose a failed operation
  adtrack diagnose 6f1e8a2c-...

  # Include custom Rego diagnostic policies
  adtrack diagnose 6f1e8a2c-... --policies ./policies

  # Findings as JSON
  adtrack diagnose 6f1e8a2c-... --json`,
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

			rules := diagnose.BuiltinRules()
			if policyDir != "" {
				policyRules, err := diagnose.LoadPolicyRules(ctx, policyDir, zerolog.Nop())
				if err != nil {
					return err
				}
				rules = append(rules, policyRules...)
			}
			findings := diagnose.NewAnalyzer(zerolog.Nop(), rules...).Analyze(op)

			if jsonOutput {
				return printJSON(findings)
			}

			if len(findings) == 0 {
				fmt.Println("No findings")
				return nil
			}

			for _, f := range findings {
				fmt.Printf("[%s] %s\n", f.Severity, f.Type)
				fmt.Printf("  %s\n", f.Description)
				fmt.Printf("  Resolution: %s\n", f.Resolution)
				if f.AutoFixable && f.Fix != nil {
					switch f.Fix.Type {
					case diagnose.FixReduceChunkSize:
						fmt.Printf("  Auto-fix: %s (chunk size %d)\n", f.Fix.Type, f.Fix.ProposedChunkSize)
					case diagnose.FixRetryFailedItems:
						fmt.Printf("  Auto-fix: %s (%d items)\n", f.Fix.Type, len(f.Fix.Items))
					default:
						fmt.Printf("  Auto-fix: %s\n", f.Fix.Type)
					}
				}
				fmt.Println()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&archivePath, "archive", "", "SQLite archive path (overrides config)")
	cmd.Flags().StringVar(&policyDir, "policies", "", "directory of Rego diagnostic policies")

	return cmd
}
