package tracker

import (
	"time"
)

// Metadata keys maintained by the retry engine on derived operations. The
// link is bidirectional: the new operation's metadata points back at the
// original, and the original's log records the new operation id.
const (
	// MetaOriginalOperationID is the id of the operation being retried.
	MetaOriginalOperationID = "originalOperationId"

	// MetaOriginalType is the type of the operation being retried.
	MetaOriginalType = "originalType"

	// MetaRetryOf duplicates the original id under the dashboard's key.
	MetaRetryOf = "retryOf"

	// MetaRetryTime is when the retry operation was derived.
	MetaRetryTime = "retryTime"
)

// RetryEngine derives new operations from failed (or partially failed)
// ones, preserving traceability. What the carried-forward work-set means is
// domain logic layered on top; the engine only merges metadata and wires
// the cross-references.
type RetryEngine struct {
	tracker *Tracker
}

// NewRetryEngine creates a retry engine over the given tracker.
func NewRetryEngine(t *Tracker) *RetryEngine {
	return &RetryEngine{tracker: t}
}

// Retry creates a new pending operation of newType that references the
// original. Caller-supplied metadata is merged over the engine's linkage
// keys, caller keys winning on conflict. Both operations get a log entry
// referencing the other, and both notifications fire.
//
// Returns a not-found error if the original id does not resolve; unlike the
// best-effort lifecycle mutators this is always explicit, because the
// caller needs the new id.
func (r *RetryEngine) Retry(originalID, newType string, metadata map[string]any) (string, error) {
	original, err := r.tracker.Get(originalID)
	if err != nil {
		return "", err
	}

	merged := map[string]any{
		MetaOriginalOperationID: originalID,
		MetaOriginalType:        original.Type,
		MetaRetryOf:             originalID,
		MetaRetryTime:           time.Now().Format(time.RFC3339),
	}
	for k, v := range metadata {
		merged[k] = v
	}

	newID := r.tracker.Create(newType, merged)

	// Forward and back references; AddLog cannot fail here since both ids
	// were just resolved and operations are never deleted.
	_ = r.tracker.AddLog(newID, LevelInfo,
		"Created as retry of operation "+originalID,
		map[string]any{"original_operation_id": originalID})
	_ = r.tracker.AddLog(originalID, LevelInfo,
		"Retry operation created: "+newID,
		map[string]any{"retry_operation_id": newID})

	if r.tracker.metrics != nil {
		r.tracker.metrics.RecordRetryCreated(newType)
	}
	r.tracker.logger.Info().
		Str("operation_id", originalID).
		Str("retry_operation_id", newID).
		Str("retry_type", newType).
		Msg("Retry operation derived")

	return newID, nil
}
