package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/trust-ledger/internal/logging"
	"github.com/trust-ledger/internal/models"
)

// EventArchive buffers ledger events and batch-inserts them into ClickHouse.
// It implements events.Sink; archiving is best-effort and never blocks the
// emitting service on a database round trip.
type EventArchive struct {
	db     *ClickHouseDB
	logger *logging.Logger

	mu      sync.Mutex
	pending []models.LedgerEvent
	// flushSize triggers an immediate flush when the buffer reaches it
	flushSize int
}

// NewEventArchive creates an event archive flushing every flushSize events
func NewEventArchive(db *ClickHouseDB, logger *logging.Logger, flushSize int) *EventArchive {
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	if flushSize <= 0 {
		flushSize = 100
	}
	return &EventArchive{
		db:        db,
		logger:    logger,
		flushSize: flushSize,
	}
}

// Emit buffers the event, flushing when the buffer is full
func (a *EventArchive) Emit(ctx context.Context, event models.LedgerEvent) {
	a.mu.Lock()
	a.pending = append(a.pending, event)
	shouldFlush := len(a.pending) >= a.flushSize
	a.mu.Unlock()

	if shouldFlush {
		if err := a.Flush(ctx); err != nil {
			a.logger.WithError(err).Error("Failed to flush event archive")
		}
	}
}

// Flush batch-inserts all buffered events
func (a *EventArchive) Flush(ctx context.Context) error {
	a.mu.Lock()
	batch := a.pending
	a.pending = nil
	a.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}

	insert, err := a.db.Conn().PrepareBatch(ctx, `
		INSERT INTO ledger_events (event_type, occurred_at, attributes)
	`)
	if err != nil {
		a.requeue(batch)
		return err
	}

	for _, event := range batch {
		attrs, err := json.Marshal(event.Attributes)
		if err != nil {
			a.logger.WithError(err).WithField("eventType", string(event.Type)).Warn("Skipping unmarshalable event attributes")
			attrs = []byte("{}")
		}
		if err := insert.Append(string(event.Type), event.OccurredAt, string(attrs)); err != nil {
			a.requeue(batch)
			return err
		}
	}

	if err := insert.Send(); err != nil {
		a.requeue(batch)
		return err
	}
	return nil
}

// Close flushes any remaining events
func (a *EventArchive) Close(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return a.Flush(ctx)
}

func (a *EventArchive) requeue(batch []models.LedgerEvent) {
	a.mu.Lock()
	a.pending = append(batch, a.pending...)
	a.mu.Unlock()
}
