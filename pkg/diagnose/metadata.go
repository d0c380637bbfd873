package diagnose

import (
	"github.com/adtrack/adtrack/pkg/tracker"
)

// Metadata keys the diagnostic rules read. The tracking core treats the
// metadata bag as opaque; this package defines the narrow typed view over
// the subset of keys the campaign-clone workflows populate, so rules never
// index the map ad hoc.
const (
	// KeyChunkSize is the batch size the workflow used against the API.
	KeyChunkSize = "chunkSize"

	// KeyCampaigns is the work-set of campaign ids the operation covers.
	KeyCampaigns = "campaigns"

	// KeyFailedCampaigns lists the campaign ids that failed.
	KeyFailedCampaigns = "failedCampaigns"

	// KeyCustomerID is the Google Ads customer account id.
	KeyCustomerID = "customerId"

	// KeyAddNegativeKeywords marks that negative keywords were requested.
	KeyAddNegativeKeywords = "addNegativeKeywords"

	// KeyNamingTemplate is the template used to name cloned campaigns.
	KeyNamingTemplate = "namingTemplate"
)

// DefaultNamingTemplate is the template applied when the user configures none.
const DefaultNamingTemplate = "{original} - Copy"

// ChunkSize returns the batch size recorded in the operation metadata, or
// false if absent or not numeric.
func ChunkSize(op *tracker.Operation) (int, bool) {
	return intValue(op.Metadata[KeyChunkSize])
}

// Campaigns returns the operation's work-set of campaign ids.
func Campaigns(op *tracker.Operation) []string {
	return stringSlice(op.Metadata[KeyCampaigns])
}

// FailedCampaigns returns the campaign ids recorded as failed.
func FailedCampaigns(op *tracker.Operation) []string {
	return stringSlice(op.Metadata[KeyFailedCampaigns])
}

// CustomerID returns the customer account id, or empty if absent.
func CustomerID(op *tracker.Operation) string {
	s, _ := op.Metadata[KeyCustomerID].(string)
	return s
}

// NegativeKeywordsRequested reports whether the operation was configured to
// add negative keywords.
func NegativeKeywordsRequested(op *tracker.Operation) bool {
	b, _ := op.Metadata[KeyAddNegativeKeywords].(bool)
	return b
}

// NamingTemplate returns the naming template, or empty if absent.
func NamingTemplate(op *tracker.Operation) string {
	s, _ := op.Metadata[KeyNamingTemplate].(string)
	return s
}

// intValue coerces the numeric representations that survive a JSON round
// trip: metadata persisted through the archive comes back as float64.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

// stringSlice coerces []string or the []any a JSON round trip produces.
func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out
	case []any:
		out := make([]string, 0, len(s))
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
