// Package stores provides the persistent archive behind the in-memory
// operation tracking core: a SQLite-backed store fed by a notification bus
// subscriber, so dashboards and the CLI keep a durable view of operations
// across process restarts.
package stores

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/adtrack/adtrack/pkg/tracker"
)

// Archiver persists every published operation snapshot. Bus delivery is
// synchronous on the mutator's stack, so the archiver only enqueues into a
// buffer there and does the actual database writes on its own goroutine.
// When the buffer is full the snapshot is dropped; a later snapshot of the
// same operation carries the full log tail, so nothing is lost for good
// unless the operation never publishes again.
type Archiver struct {
	archive Archive
	logger  zerolog.Logger
	buffer  chan *tracker.Operation
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	unsub   func()
}

// NewArchiver creates an archiver writing to the given archive.
func NewArchiver(archive Archive, logger zerolog.Logger, bufferSize int) *Archiver {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &Archiver{
		archive: archive,
		logger:  logger.With().Str("component", "archiver").Logger(),
		buffer:  make(chan *tracker.Operation, bufferSize),
	}
}

// Start subscribes to the tracker's bus and begins persisting snapshots.
func (a *Archiver) Start(t *tracker.Tracker) {
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	a.wg.Add(1)
	go a.process(ctx)

	a.unsub = t.Bus().SubscribeAll(func(_ string, op *tracker.Operation) {
		select {
		case a.buffer <- op:
		default:
			a.logger.Warn().
				Str("operation_id", op.ID).
				Msg("Archive buffer full, snapshot dropped")
		}
	})
}

// Stop unsubscribes, flushes buffered snapshots, and waits for the writer
// goroutine to finish.
func (a *Archiver) Stop(ctx context.Context) error {
	if a.unsub != nil {
		a.unsub()
	}
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("archiver shutdown timeout")
	}
}

// process drains the buffer until cancelled, then flushes what remains.
func (a *Archiver) process(ctx context.Context) {
	defer a.wg.Done()

	for {
		select {
		case op := <-a.buffer:
			a.save(op)
		case <-ctx.Done():
			for {
				select {
				case op := <-a.buffer:
					a.save(op)
				default:
					return
				}
			}
		}
	}
}

func (a *Archiver) save(op *tracker.Operation) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.archive.SaveOperation(ctx, op); err != nil {
		a.logger.Error().
			Err(err).
			Str("operation_id", op.ID).
			Msg("Failed to archive operation snapshot")
	}
}
