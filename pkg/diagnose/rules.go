package diagnose

import (
	"fmt"
	"strings"

	"github.com/adtrack/adtrack/pkg/tracker"
)

// Rule classifies one failure signature on an operation snapshot.
type Rule interface {
	// Name identifies the rule.
	Name() string

	// Evaluate inspects the snapshot and returns zero or more findings.
	// It must not mutate the snapshot.
	Evaluate(op *tracker.Operation) []Finding
}

// BuiltinRules returns the default rule set, in evaluation order. The set
// is heuristic, not exhaustive; extend it by appending rules.
func BuiltinRules() []Rule {
	return []Rule{
		rateLimitRule{},
		partialCompletionRule{},
		negativeKeywordsRule{},
		namingTemplateRule{},
	}
}

// rateLimitSignatures are lowercase substrings of error messages that
// indicate throttling or quota exhaustion by the advertising API.
var rateLimitSignatures = []string{
	"rate limit",
	"rate-limit",
	"resource_exhausted",
	"quota",
	"too many requests",
	"throttl",
}

// rateLimitRule detects API throttling from error-level log entries and
// proposes halving the batch size.
type rateLimitRule struct{}

func (rateLimitRule) Name() string { return "rate-limit" }

func (rateLimitRule) Evaluate(op *tracker.Operation) []Finding {
	var hit string
	for _, entry := range op.Logs {
		if entry.Level != tracker.LevelError {
			continue
		}
		msg := strings.ToLower(entry.Message)
		for _, sig := range rateLimitSignatures {
			if strings.Contains(msg, sig) {
				hit = entry.Message
				break
			}
		}
		if hit != "" {
			break
		}
	}
	if hit == "" {
		return nil
	}

	chunk, ok := ChunkSize(op)
	if !ok {
		chunk = 0
	}
	proposed := chunk / 2
	if proposed < 1 {
		proposed = 1
	}

	return []Finding{{
		Type: FindingRateLimit,
		Description: fmt.Sprintf(
			"The advertising API rejected requests due to rate limiting: %q", hit),
		Severity: SeverityHigh,
		Resolution: fmt.Sprintf(
			"Retry with a smaller batch size (%d instead of %d) to stay under the API quota.",
			proposed, chunk),
		AutoFixable: true,
		Fix: &AutoFix{
			Type:              FixReduceChunkSize,
			ProposedChunkSize: proposed,
		},
	}}
}

// partialCompletionRule detects failed operations that recorded a non-empty
// failed sub-item set and proposes retrying only those items.
type partialCompletionRule struct{}

func (partialCompletionRule) Name() string { return "partial-completion" }

func (partialCompletionRule) Evaluate(op *tracker.Operation) []Finding {
	if op.Status != tracker.StatusFailed {
		return nil
	}
	failed := FailedCampaigns(op)
	if len(failed) == 0 {
		return nil
	}

	total := len(Campaigns(op))
	desc := fmt.Sprintf("%d campaigns failed", len(failed))
	if total > 0 {
		desc = fmt.Sprintf("%d of %d campaigns failed", len(failed), total)
	}

	return []Finding{{
		Type:        FindingPartialCompletion,
		Description: desc + "; the rest completed.",
		Severity:    SeverityMedium,
		Resolution:  "Retry only the failed campaigns instead of re-running the whole set.",
		AutoFixable: true,
		Fix: &AutoFix{
			Type:  FixRetryFailedItems,
			Items: failed,
		},
	}}
}

// negativeKeywordsRule flags operations configured to add negative keywords
// when no log entry confirms they were applied.
type negativeKeywordsRule struct{}

func (negativeKeywordsRule) Name() string { return "negative-keywords" }

func (negativeKeywordsRule) Evaluate(op *tracker.Operation) []Finding {
	if !NegativeKeywordsRequested(op) {
		return nil
	}
	for _, entry := range op.Logs {
		if strings.Contains(strings.ToLower(entry.Message), "negative keyword") {
			return nil
		}
	}

	return []Finding{{
		Type:        FindingNegativeKeywordsUnconfirmed,
		Description: "Negative keywords were requested but no log entry confirms they were applied.",
		Severity:    SeverityLow,
		Resolution:  "Verify the cloned campaigns carry the expected negative keyword lists.",
		AutoFixable: false,
	}}
}

// namingTemplateRule flags campaigns cloned with the default naming
// template, which usually means the user forgot to configure one.
type namingTemplateRule struct{}

func (namingTemplateRule) Name() string { return "naming-template" }

func (namingTemplateRule) Evaluate(op *tracker.Operation) []Finding {
	tpl := NamingTemplate(op)
	if tpl != "" && tpl != DefaultNamingTemplate {
		return nil
	}
	// Only meaningful for operations that carry clone configuration at all.
	if _, hasChunk := ChunkSize(op); !hasChunk && len(Campaigns(op)) == 0 {
		return nil
	}

	return []Finding{{
		Type:        FindingDefaultNamingTemplate,
		Description: "The default naming template was used for cloned campaigns.",
		Severity:    SeverityLow,
		Resolution:  "Configure a naming template to keep cloned campaign names distinguishable.",
		AutoFixable: false,
	}}
}
