package stores

import (
	"context"

	"github.com/adtrack/adtrack/pkg/tracker"
)

// Archive is the persistent view of the operation registry. The in-memory
// tracking core stays pure; persistence is layered behind this interface
// and fed by a notification bus subscriber, so the dashboard and CLI keep a
// durable view across process restarts.
type Archive interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// SaveOperation upserts the operation row and appends any log entries
	// and restore points not yet persisted. Logs are append-only, so the
	// tail beyond the archived count is exactly the delta.
	SaveOperation(ctx context.Context, op *tracker.Operation) error

	// GetOperation returns an archived operation with its logs and restore
	// points, or a not-found error.
	GetOperation(ctx context.Context, id string) (*tracker.Operation, error)

	// ListOperations returns filtered, sorted, paginated archived
	// operations without their logs and restore points.
	ListOperations(ctx context.Context, filter tracker.ListFilter) ([]*tracker.Operation, error)

	// GetLogs returns the archived log sequence for an operation.
	GetLogs(ctx context.Context, id string) ([]tracker.LogEntry, error)

	// GetRestorePoints returns the archived restore points for an operation.
	GetRestorePoints(ctx context.Context, id string) ([]tracker.RestorePoint, error)

	// HealthCheck verifies the archive is reachable.
	HealthCheck(ctx context.Context) error
}
