package diagnose

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/adtrack/adtrack/pkg/tracker"
)

// Analyzer runs an ordered rule set against operation snapshots.
type Analyzer struct {
	rules  []Rule
	logger zerolog.Logger
}

// NewAnalyzer creates an analyzer. With no rules it uses the builtin set.
func NewAnalyzer(logger zerolog.Logger, rules ...Rule) *Analyzer {
	if len(rules) == 0 {
		rules = BuiltinRules()
	}
	return &Analyzer{
		rules:  rules,
		logger: logger.With().Str("component", "diagnose").Logger(),
	}
}

// Analyze evaluates every rule against the snapshot and returns the
// accumulated findings in rule order. It performs no I/O and mutates
// nothing; calling it repeatedly on the same snapshot is idempotent.
func (a *Analyzer) Analyze(op *tracker.Operation) []Finding {
	if op == nil {
		return nil
	}

	findings := []Finding{}
	for _, rule := range a.rules {
		results := rule.Evaluate(op)
		if len(results) > 0 {
			a.logger.Debug().
				Str("operation_id", op.ID).
				Str("rule", rule.Name()).
				Int("findings", len(results)).
				Msg("Rule matched")
		}
		findings = append(findings, results...)
	}
	return findings
}

// AnalyzeByID fetches the snapshot from the tracker and analyzes it.
func (a *Analyzer) AnalyzeByID(t *tracker.Tracker, id string) ([]Finding, error) {
	op, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	return a.Analyze(op), nil
}

// ApplyFix turns an auto-fix descriptor into a retry operation via the
// retry engine: it computes the narrowed work-set and adjusted parameters
// and derives a new operation of type "retry_<originalType>". The caller is
// expected to have obtained explicit user confirmation first.
func ApplyFix(engine *tracker.RetryEngine, op *tracker.Operation, fix *AutoFix) (string, error) {
	if fix == nil {
		return "", tracker.NewValidationError("no fix descriptor supplied")
	}

	metadata := map[string]any{}
	if customer := CustomerID(op); customer != "" {
		metadata[KeyCustomerID] = customer
	}
	if tpl := NamingTemplate(op); tpl != "" {
		metadata[KeyNamingTemplate] = tpl
	}

	switch fix.Type {
	case FixReduceChunkSize:
		metadata[KeyChunkSize] = fix.ProposedChunkSize
		// Keep the full work-set; only the batching changes.
		if campaigns := Campaigns(op); len(campaigns) > 0 {
			metadata[KeyCampaigns] = campaigns
		}
	case FixRetryFailedItems:
		metadata[KeyCampaigns] = fix.Items
		if chunk, ok := ChunkSize(op); ok {
			metadata[KeyChunkSize] = chunk
		}
	default:
		return "", tracker.NewValidationError(fmt.Sprintf("unknown fix type: %s", fix.Type))
	}

	return engine.Retry(op.ID, "retry_"+op.Type, metadata)
}
