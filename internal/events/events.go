// Package events provides the ledger event sink used for observability and
// audit. Events are records, not a wire protocol: they fan out to the archive,
// metrics and the in-memory log behind the /api/events endpoint.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/trust-ledger/internal/models"
	"github.com/trust-ledger/internal/types"
)

// Sink receives emitted ledger events
type Sink interface {
	Emit(ctx context.Context, event models.LedgerEvent)
}

// Nop discards events
type Nop struct{}

// Emit discards the event
func (Nop) Emit(context.Context, models.LedgerEvent) {}

// Multi fans an event out to several sinks
type Multi []Sink

// Emit delivers the event to every sink in order
func (m Multi) Emit(ctx context.Context, event models.LedgerEvent) {
	for _, s := range m {
		s.Emit(ctx, event)
	}
}

// Log keeps the most recent events in memory
type Log struct {
	mu     sync.RWMutex
	events []models.LedgerEvent
	limit  int
	next   int
	full   bool
}

// NewLog creates an event log retaining up to limit events
func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = 1024
	}
	return &Log{
		events: make([]models.LedgerEvent, limit),
		limit:  limit,
	}
}

// Emit appends the event, evicting the oldest when full
func (l *Log) Emit(_ context.Context, event models.LedgerEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.events[l.next] = event
	l.next = (l.next + 1) % l.limit
	if l.next == 0 {
		l.full = true
	}
}

// Recent returns up to n events, newest first
func (l *Log) Recent(n int) []models.LedgerEvent {
	l.mu.RLock()
	defer l.mu.RUnlock()

	size := l.next
	if l.full {
		size = l.limit
	}
	if n <= 0 || n > size {
		n = size
	}

	out := make([]models.LedgerEvent, 0, n)
	for i := 0; i < n; i++ {
		idx := (l.next - 1 - i + l.limit) % l.limit
		out = append(out, l.events[idx])
	}
	return out
}

// New builds a ledger event stamped with the given time
func New(eventType types.EventType, at time.Time, attrs map[string]interface{}) models.LedgerEvent {
	return models.LedgerEvent{
		Type:       eventType,
		OccurredAt: at,
		Attributes: attrs,
	}
}
