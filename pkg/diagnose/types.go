// Package diagnose inspects an operation's logs and metadata, classifies
// known failure signatures, and proposes automated remediations consumable
// by the retry engine. It is read-only and idempotent: analyzing the same
// operation twice yields the same findings and mutates nothing.
package diagnose

import (
	"encoding/json"
)

// Severity represents how serious a finding is.
type Severity string

const (
	// SeverityLow is for advisory findings that need no action.
	SeverityLow Severity = "low"

	// SeverityMedium is for findings that likely explain a partial failure.
	SeverityMedium Severity = "medium"

	// SeverityHigh is for findings that explain a hard failure.
	SeverityHigh Severity = "high"
)

// Finding type labels emitted by the builtin rules.
const (
	// FindingRateLimit indicates the advertising API throttled the operation.
	FindingRateLimit = "api_rate_limit"

	// FindingPartialCompletion indicates some sub-items failed while others
	// succeeded.
	FindingPartialCompletion = "partial_completion"

	// FindingNegativeKeywordsUnconfirmed indicates negative keywords were
	// requested but no log entry confirms they were applied.
	FindingNegativeKeywordsUnconfirmed = "negative_keywords_unconfirmed"

	// FindingDefaultNamingTemplate indicates the operation ran with the
	// default naming template.
	FindingDefaultNamingTemplate = "default_naming_template"
)

// AutoFix type labels.
const (
	// FixReduceChunkSize halves the batch size on retry.
	FixReduceChunkSize = "reduce_chunk_size"

	// FixRetryFailedItems retries only the failed sub-items.
	FixRetryFailedItems = "retry_failed_items"
)

// Finding is one classified failure cause, optionally paired with a
// machine-actionable remediation. The dashboard renders Description and
// Resolution directly and offers an auto-fix action when AutoFixable is
// true; the fix runs only after explicit user confirmation.
type Finding struct {
	// Type is the category label of the finding.
	Type string `json:"type"`

	// Description explains what was detected.
	Description string `json:"description"`

	// Severity is low, medium, or high.
	Severity Severity `json:"severity"`

	// Resolution is the suggested remediation in human terms.
	Resolution string `json:"resolution"`

	// AutoFixable reports whether Fix can be applied automatically.
	AutoFixable bool `json:"auto_fixable"`

	// Fix is the remediation descriptor, present only when AutoFixable.
	Fix *AutoFix `json:"fix,omitempty"`
}

// AutoFix describes a machine-actionable remediation consumable by the
// retry engine.
type AutoFix struct {
	// Type is the remediation kind.
	Type string `json:"type"`

	// ProposedChunkSize is the new batch size for reduce_chunk_size fixes.
	ProposedChunkSize int `json:"proposed_chunk_size,omitempty"`

	// Items is the narrowed work-set for retry_failed_items fixes.
	Items []string `json:"items,omitempty"`
}

// String renders the finding as a compact JSON object for logs.
func (f Finding) String() string {
	b, err := json.Marshal(f)
	if err != nil {
		return f.Type
	}
	return string(b)
}
