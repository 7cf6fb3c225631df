package models

import (
	"time"

	"github.com/trust-ledger/internal/types"
)

// LedgerEvent is an emitted observability/audit record. Events are not a wire
// protocol; they feed the event archive, metrics and the /api/events endpoint.
type LedgerEvent struct {
	Type       types.EventType        `json:"type"`
	OccurredAt time.Time              `json:"occurredAt"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}
