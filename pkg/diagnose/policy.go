package diagnose

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/open-policy-agent/opa/rego"
	"github.com/rs/zerolog"

	"github.com/adtrack/adtrack/pkg/tracker"
)

// PolicyRule is a diagnostic rule expressed in Rego instead of Go. It lets
// operators ship account-specific checks (budget conventions, naming
// schemes, mandatory metadata) as .rego files without rebuilding the
// service. The policy receives the operation snapshot as input and emits a
// set of violations:
//
//	package adtrack.diagnostics
//
//	import rego.v1
//
//	deny contains violation if {
//		input.status == "failed"
//		not input.metadata.customerId
//		violation := {
//			"type": "missing_customer_id",
//			"message": "Failed operation carries no customer id",
//			"severity": "medium",
//			"resolution": "Tag operations with customerId at creation",
//		}
//	}
//
// Violations may also be plain strings; they map to a low-severity finding.
type PolicyRule struct {
	name  string
	query rego.PreparedEvalQuery
}

// CompilePolicy compiles Rego source into an evaluable diagnostic rule. The
// deny set is read from the policy's own package.
func CompilePolicy(ctx context.Context, name, source string) (*PolicyRule, error) {
	pkg := extractPackageName(source)
	r := rego.New(
		rego.Module(name, source),
		rego.Query(fmt.Sprintf("data.%s.deny", pkg)),
	)
	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile policy %s: %w", name, err)
	}
	return &PolicyRule{name: name, query: query}, nil
}

// Name identifies the rule by its policy name.
func (p *PolicyRule) Name() string { return p.name }

// Evaluate runs the policy against the snapshot and converts deny results
// into findings. Evaluation errors produce no findings; a policy that fails
// to evaluate must not mask the builtin rules.
func (p *PolicyRule) Evaluate(op *tracker.Operation) []Finding {
	input, err := operationInput(op)
	if err != nil {
		return nil
	}

	results, err := p.query.Eval(context.Background(), rego.EvalInput(input))
	if err != nil {
		return nil
	}

	var findings []Finding
	for _, result := range results {
		for _, expr := range result.Expressions {
			denySet, ok := expr.Value.([]interface{})
			if !ok {
				continue
			}
			for _, d := range denySet {
				findings = append(findings, p.toFinding(d))
			}
		}
	}
	return findings
}

// toFinding maps one deny result to a finding. Policies emit either a bare
// message string or an object with type, message, severity, and resolution.
func (p *PolicyRule) toFinding(result interface{}) Finding {
	f := Finding{
		Type:     "policy_" + p.name,
		Severity: SeverityLow,
	}

	switch v := result.(type) {
	case string:
		f.Description = v
	case map[string]interface{}:
		if ft, ok := v["type"].(string); ok && ft != "" {
			f.Type = ft
		}
		if msg, ok := v["message"].(string); ok {
			f.Description = msg
		}
		if sev, ok := v["severity"].(string); ok {
			f.Severity = parseSeverity(sev)
		}
		if res, ok := v["resolution"].(string); ok {
			f.Resolution = res
		}
	default:
		f.Description = fmt.Sprintf("%v", result)
	}
	return f
}

// LoadPolicyRules compiles every .rego file under dir into a diagnostic
// rule. A file that fails to compile is skipped with a warning so one bad
// policy does not take down the rest.
func LoadPolicyRules(ctx context.Context, dir string, logger zerolog.Logger) ([]Rule, error) {
	var rules []Rule

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".rego") {
			return nil
		}

		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read policy file %s: %w", path, err)
		}

		name := strings.TrimSuffix(filepath.Base(path), ".rego")
		rule, err := CompilePolicy(ctx, name, string(source))
		if err != nil {
			logger.Warn().Err(err).Str("path", path).Msg("Skipping invalid policy file")
			return nil
		}
		rules = append(rules, rule)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk policy directory: %w", err)
	}

	logger.Info().Int("count", len(rules)).Str("dir", dir).Msg("Diagnostic policies loaded")
	return rules, nil
}

// operationInput converts the snapshot to plain JSON data for Rego.
func operationInput(op *tracker.Operation) (interface{}, error) {
	raw, err := json.Marshal(op)
	if err != nil {
		return nil, err
	}
	var input interface{}
	if err := json.Unmarshal(raw, &input); err != nil {
		return nil, err
	}
	return input, nil
}

// extractPackageName reads the package declaration from Rego source.
func extractPackageName(source string) string {
	for _, line := range strings.Split(source, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "package ") {
			parts := strings.Fields(trimmed)
			if len(parts) >= 2 {
				return parts[1]
			}
		}
	}
	return "adtrack.diagnostics"
}

func parseSeverity(v string) Severity {
	switch Severity(v) {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return Severity(v)
	default:
		return SeverityLow
	}
}
