package tracker

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/adtrack/adtrack/pkg/events"
	"github.com/adtrack/adtrack/pkg/telemetry"
)

// Config configures a Tracker.
type Config struct {
	// Strict makes mutators return a not-found error for unknown operation
	// ids instead of silently no-opping. Lenient mode is the production
	// default: mutation calls run inside best-effort progress-reporting
	// paths that must never crash the operation they report on. Strict mode
	// exists so test suites catch caller bugs early.
	Strict bool

	// Logger is the structured logger. Optional.
	Logger *telemetry.Logger

	// Metrics is the metrics collector. Optional.
	Metrics *telemetry.Metrics
}

// Tracker is the operation lifecycle API: the only component that mutates
// operation records. It enforces the state machine
//
//	pending -> running -> {completed, failed, cancelled}
//
// where terminal states are absorbing, and it publishes a fresh snapshot to
// the notification bus after every mutation.
//
// Invalid transitions (completing a cancelled operation, starting one
// twice) are no-ops: the call is logged and the record is untouched. This
// is a documented choice, not an oversight; see the Config.Strict note for
// the unknown-id counterpart.
type Tracker struct {
	store   Store
	bus     *events.Bus[*Operation]
	logger  zerolog.Logger
	metrics *telemetry.Metrics
	strict  bool
}

// New creates a Tracker over the given store. Construct one per process at
// startup and inject it into every component that reports or observes
// operations; fresh instances per test give full isolation.
func New(store Store, cfg Config) *Tracker {
	var zlog zerolog.Logger
	if cfg.Logger != nil {
		zlog = cfg.Logger.NewComponentLogger("tracker").Zerolog()
	} else {
		zlog = zerolog.Nop()
	}

	t := &Tracker{
		store:   store,
		logger:  zlog,
		metrics: cfg.Metrics,
		strict:  cfg.Strict,
	}
	t.bus = events.NewBus[*Operation](store.Get, zlog)
	if cfg.Metrics != nil {
		t.bus.OnPanic = cfg.Metrics.RecordSubscriberPanic
	}
	return t
}

// Create allocates a new operation with status pending, progress 0, and
// empty logs and restore points. It never fails; the returned id is unique
// for the lifetime of the store.
func (t *Tracker) Create(opType string, metadata map[string]any) string {
	now := time.Now()
	op := &Operation{
		ID:        uuid.New().String(),
		Type:      opType,
		Status:    StatusPending,
		Progress:  0,
		Logs:      []LogEntry{},
		Metadata:  cloneMap(metadata),
		CreatedAt: now,
	}
	t.store.Insert(op)

	t.logger.Info().
		Str("operation_id", op.ID).
		Str("operation_type", opType).
		Msg("Operation created")
	if t.metrics != nil {
		t.metrics.RecordOperationCreated(opType)
	}

	t.notify(op.ID)
	return op.ID
}

// Start transitions an operation from pending to running, stamps the start
// time, resets progress to 0, and appends an info log. Starting an
// operation that is not pending is a no-op.
func (t *Tracker) Start(id string) error {
	var started bool
	var opType string

	ok := t.store.Update(id, func(op *Operation) {
		if op.Status != StatusPending {
			t.logger.Warn().
				Str("operation_id", id).
				Str("status", string(op.Status)).
				Msg("Ignoring start of non-pending operation")
			return
		}
		now := time.Now()
		op.Status = StatusRunning
		op.StartedAt = &now
		op.Progress = 0
		appendLog(op, LevelInfo, "Operation started", nil)
		started = true
		opType = op.Type
	})
	if !ok {
		return t.unknownID(id, "start")
	}

	if started {
		t.logger.Info().Str("operation_id", id).Msg("Operation started")
		if t.metrics != nil {
			t.metrics.RecordOperationStarted(opType)
		}
	}

	t.notify(id)
	return nil
}

// UpdateProgress records a progress percentage, clamped to [0, 100]. It is
// valid only while the operation is running; anything else is a no-op.
// Progress is not required to be monotonic: a caller reporting a backward
// correction is recorded as-is.
func (t *Tracker) UpdateProgress(id string, value float64) error {
	ok := t.store.Update(id, func(op *Operation) {
		if op.Status != StatusRunning {
			return
		}
		op.Progress = clampProgress(value)
	})
	if !ok {
		return t.unknownID(id, "update progress")
	}

	t.notify(id)
	return nil
}

// Complete transitions a running operation to completed, forces progress to
// 100, stamps the end time, and appends an info log.
func (t *Tracker) Complete(id string) error {
	return t.finish(id, StatusCompleted, func(op *Operation) bool {
		if op.Status != StatusRunning {
			return false
		}
		op.Status = StatusCompleted
		op.Progress = 100
		appendLog(op, LevelInfo, "Operation completed", nil)
		return true
	})
}

// Fail transitions a running (or still pending, for early failures)
// operation to failed, stores the error, stamps the end time, and appends
// an error log carrying the failure message.
func (t *Tracker) Fail(id string, opErr *OperationError) error {
	return t.finish(id, StatusFailed, func(op *Operation) bool {
		if !op.Status.IsActive() {
			return false
		}
		op.Status = StatusFailed
		if opErr != nil {
			e := *opErr
			op.Error = &e
			details := map[string]any{}
			if opErr.Code != "" {
				details["code"] = opErr.Code
			}
			if len(details) == 0 {
				details = nil
			}
			appendLog(op, LevelError, "Operation failed: "+opErr.Message, details)
		} else {
			op.Error = &OperationError{Message: "operation failed"}
			appendLog(op, LevelError, "Operation failed", nil)
		}
		return true
	})
}

// Cancel transitions a pending or running operation to cancelled, stamps
// the end time, and appends an info log. Cancellation is cooperative: the
// owning workflow must observe the status change and stop on its own;
// nothing is interrupted here.
func (t *Tracker) Cancel(id string) error {
	return t.finish(id, StatusCancelled, func(op *Operation) bool {
		if !op.Status.IsActive() {
			return false
		}
		op.Status = StatusCancelled
		appendLog(op, LevelInfo, "Operation cancelled", nil)
		return true
	})
}

// AddLog appends a log entry. Valid in any state, including terminal ones,
// so diagnostic tooling can annotate a finished operation retroactively.
func (t *Tracker) AddLog(id string, level Level, message string, details map[string]any) error {
	if err := level.Validate(); err != nil {
		level = LevelInfo
	}
	ok := t.store.Update(id, func(op *Operation) {
		appendLog(op, level, message, cloneMap(details))
	})
	if !ok {
		return t.unknownID(id, "add log")
	}

	if t.metrics != nil {
		t.metrics.RecordLogEntry(string(level))
	}

	t.notify(id)
	return nil
}

// CreateRestorePoint captures a reversible step on a non-terminal operation
// and returns the restore point id. Unlike the best-effort mutators it
// always errors on an unknown id, because callers rely on the returned id.
func (t *Tracker) CreateRestorePoint(id string, rpType RestorePointType, data map[string]any, meta *RestorePointMeta) (string, error) {
	rp := RestorePoint{
		ID:        uuid.New().String(),
		Timestamp: time.Now(),
		Type:      rpType,
		Data:      cloneMap(data),
	}
	if meta != nil {
		m := *meta
		rp.Metadata = &m
	}

	var terminal bool
	ok := t.store.Update(id, func(op *Operation) {
		if op.Status.IsTerminal() {
			terminal = true
			return
		}
		op.RestorePoints = append(op.RestorePoints, rp)
		appendLog(op, LevelInfo, "Restore point created: "+rp.ID, map[string]any{
			"restore_point_id":   rp.ID,
			"restore_point_type": string(rpType),
		})
	})
	if !ok {
		return "", NewNotFoundError(id)
	}
	if terminal {
		return "", NewConflictError(id, "cannot create restore point on a finished operation")
	}

	t.logger.Debug().
		Str("operation_id", id).
		Str("restore_point_id", rp.ID).
		Str("restore_point_type", string(rpType)).
		Msg("Restore point created")
	if t.metrics != nil {
		t.metrics.RecordRestorePoint(string(rpType))
	}

	t.notify(id)
	return rp.ID, nil
}

// Get returns a snapshot of the operation.
func (t *Tracker) Get(id string) (*Operation, error) {
	op, ok := t.store.Get(id)
	if !ok {
		return nil, NewNotFoundError(id)
	}
	return op, nil
}

// List returns filtered, sorted, paginated snapshots.
func (t *Tracker) List(filter ListFilter) []*Operation {
	return t.store.List(filter)
}

// Logs returns a copy of the operation's log sequence.
func (t *Tracker) Logs(id string) ([]LogEntry, error) {
	op, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	return op.Logs, nil
}

// RestorePoints returns a copy of the operation's restore points.
func (t *Tracker) RestorePoints(id string) ([]RestorePoint, error) {
	op, err := t.Get(id)
	if err != nil {
		return nil, err
	}
	return op.RestorePoints, nil
}

// Subscribe registers a callback receiving the operation snapshot after
// every mutation. If the operation exists, the callback is invoked once
// immediately with the current snapshot. Delivery is synchronous on the
// mutator's stack, so keep callbacks cheap; a panicking callback is
// isolated and logged without disturbing other subscribers.
func (t *Tracker) Subscribe(id string, fn func(op *Operation)) func() {
	return t.bus.Subscribe(id, fn)
}

// Bus exposes the notification bus for components that persist or forward
// snapshots.
func (t *Tracker) Bus() *events.Bus[*Operation] {
	return t.bus
}

// finish applies a terminal transition. apply returns false when the
// current status does not admit the transition, in which case the record is
// left untouched.
func (t *Tracker) finish(id string, target Status, apply func(op *Operation) bool) error {
	var (
		applied  bool
		opType   string
		duration time.Duration
	)

	ok := t.store.Update(id, func(op *Operation) {
		if !apply(op) {
			t.logger.Warn().
				Str("operation_id", id).
				Str("status", string(op.Status)).
				Str("target", string(target)).
				Msg("Ignoring lifecycle transition on incompatible status")
			return
		}
		now := time.Now()
		op.CompletedAt = &now
		applied = true
		opType = op.Type
		duration = op.Duration()
	})
	if !ok {
		return t.unknownID(id, string(target))
	}

	if applied {
		t.logger.Info().
			Str("operation_id", id).
			Str("status", string(target)).
			Dur("duration", duration).
			Msg("Operation finished")
		if t.metrics != nil {
			t.metrics.RecordOperationFinished(opType, string(target), duration)
		}
	}

	t.notify(id)
	return nil
}

// notify publishes the current snapshot to every subscriber of the id.
func (t *Tracker) notify(id string) {
	op, ok := t.store.Get(id)
	if !ok {
		return
	}
	t.bus.Publish(id, op)
	if t.metrics != nil {
		t.metrics.RecordNotification()
	}
}

// unknownID implements the lenient/strict split for best-effort mutators.
func (t *Tracker) unknownID(id, action string) error {
	t.logger.Debug().
		Str("operation_id", id).
		Str("action", action).
		Msg("Mutation on unknown operation id")
	if t.strict {
		return NewNotFoundError(id)
	}
	return nil
}

// appendLog appends an entry to the canonical record. Must be called under
// the store's lock, via Update.
func appendLog(op *Operation, level Level, message string, details map[string]any) {
	op.Logs = append(op.Logs, LogEntry{
		Timestamp: time.Now(),
		Level:     level,
		Message:   message,
		Details:   details,
	})
}

// clampProgress bounds a progress percentage to [0, 100].
func clampProgress(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
