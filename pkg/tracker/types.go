package tracker

import (
	"time"
)

// Operation is the unit of trackable asynchronous work: a campaign clone, a
// bulk copy, or a retry derived from a failed run. The store owns the
// canonical instance; everything handed to callers is a defensive copy.
type Operation struct {
	// ID is the unique identifier, assigned at creation and immutable.
	ID string `json:"id"`

	// Type is a free-form domain tag such as "campaign_clone" or
	// "bulk_campaign_clone". New operation types are added without touching
	// the tracking core, so this is deliberately not a closed enum.
	Type string `json:"type"`

	// Status is the current lifecycle status.
	Status Status `json:"status"`

	// Progress is a percentage in [0, 100].
	Progress float64 `json:"progress"`

	// StartedAt is set on the transition into running.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is set on any terminal transition.
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error is present only when the operation failed.
	Error *OperationError `json:"error,omitempty"`

	// Logs is the append-only log sequence. Entries are never mutated or
	// removed, only appended.
	Logs []LogEntry `json:"logs"`

	// RestorePoints is the append-only sequence of captured prior states.
	RestorePoints []RestorePoint `json:"restore_points"`

	// Metadata is an open, domain-specific bag (customer id, chunk size,
	// failed sub-item lists). The tracking core does not interpret it.
	Metadata map[string]any `json:"metadata,omitempty"`

	// CreatedAt is when the operation record was created.
	CreatedAt time.Time `json:"created_at"`

	// seq is the insertion sequence number, used to break sort ties in
	// insertion order.
	seq uint64
}

// LogEntry is a single append-only log record attached to an operation.
type LogEntry struct {
	// Timestamp is when the entry was appended.
	Timestamp time.Time `json:"timestamp"`

	// Level is the entry severity.
	Level Level `json:"level"`

	// Message is the human-readable log message.
	Message string `json:"message"`

	// Details contains additional structured context, if any.
	Details map[string]any `json:"details,omitempty"`
}

// RestorePoint captures prior state sufficient to reverse a single
// side-effecting step taken during an operation.
type RestorePoint struct {
	// ID is the unique identifier of the restore point.
	ID string `json:"id"`

	// Timestamp is when the restore point was captured.
	Timestamp time.Time `json:"timestamp"`

	// Type is the kind of reversible action.
	Type RestorePointType `json:"type"`

	// Data is whatever the rollback executor needs to reverse the action,
	// such as previous field values or created resource ids. The tracking
	// core stores it opaquely.
	Data map[string]any `json:"data,omitempty"`

	// Metadata carries optional display and lookup attributes.
	Metadata *RestorePointMeta `json:"metadata,omitempty"`
}

// RestorePointMeta holds optional display attributes for a restore point.
type RestorePointMeta struct {
	Name         string `json:"name,omitempty"`
	Description  string `json:"description,omitempty"`
	ResourceID   string `json:"resource_id,omitempty"`
	ResourceType string `json:"resource_type,omitempty"`
}

// OperationError records the failure of the tracked work itself. It is data
// held on the operation, not an error of the tracking core.
type OperationError struct {
	// Message is the human-readable failure message.
	Message string `json:"message"`

	// Code is an optional error code for programmatic handling.
	Code string `json:"code,omitempty"`

	// Details contains additional failure context.
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

// SortDirection controls list ordering.
type SortDirection string

const (
	// SortAsc sorts in ascending order.
	SortAsc SortDirection = "asc"

	// SortDesc sorts in descending order.
	SortDesc SortDirection = "desc"
)

// Sort keys accepted by ListFilter.SortBy. An unknown key falls back to
// insertion order.
const (
	SortByStartedAt = "started_at"
	SortByCreatedAt = "created_at"
	SortByProgress  = "progress"
)

// ListFilter selects, orders, and paginates operations returned by List.
type ListFilter struct {
	// Type restricts results to one operation type. Empty matches all.
	Type string

	// Status restricts results to one status. Empty matches all.
	Status Status

	// Limit caps the number of results. Zero means no limit.
	Limit int

	// Offset skips results after sorting.
	Offset int

	// SortBy is the sort key. Defaults to started_at. Unknown keys keep
	// insertion order.
	SortBy string

	// SortDirection defaults to descending.
	SortDirection SortDirection
}

// Clone returns a deep copy of the operation. Logs, restore points, and
// metadata are copied so callers can never mutate the canonical record.
func (o *Operation) Clone() *Operation {
	if o == nil {
		return nil
	}

	dup := *o

	if o.StartedAt != nil {
		t := *o.StartedAt
		dup.StartedAt = &t
	}
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		dup.CompletedAt = &t
	}
	if o.Error != nil {
		e := *o.Error
		e.Details = cloneMap(o.Error.Details)
		dup.Error = &e
	}

	dup.Logs = make([]LogEntry, len(o.Logs))
	for i, entry := range o.Logs {
		dup.Logs[i] = entry
		dup.Logs[i].Details = cloneMap(entry.Details)
	}

	dup.RestorePoints = make([]RestorePoint, len(o.RestorePoints))
	for i, rp := range o.RestorePoints {
		dup.RestorePoints[i] = rp
		dup.RestorePoints[i].Data = cloneMap(rp.Data)
		if rp.Metadata != nil {
			m := *rp.Metadata
			dup.RestorePoints[i].Metadata = &m
		}
	}

	dup.Metadata = cloneMap(o.Metadata)

	return &dup
}

// Duration returns how long the operation has been running, or its total
// runtime once terminal. Zero if the operation never started.
func (o *Operation) Duration() time.Duration {
	if o.StartedAt == nil {
		return 0
	}
	if o.CompletedAt != nil {
		return o.CompletedAt.Sub(*o.StartedAt)
	}
	return time.Since(*o.StartedAt)
}

// cloneMap shallow-copies a metadata bag. Values are domain-owned and
// treated as immutable by convention; only the map structure is defended.
func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	dup := make(map[string]any, len(m))
	for k, v := range m {
		dup[k] = v
	}
	return dup
}
