// Package models provides data models for the trust ledger system.
package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// User represents a ledger participant. Only the TrustScoreLedger mutates users.
type User struct {
	Address              common.Address `json:"address" db:"address"`
	TrustScore           uint64         `json:"trustScore" db:"trust_score"`
	PaymentCount         uint64         `json:"paymentCount" db:"payment_count"`
	FirstActivityAt      time.Time      `json:"firstActivityAt" db:"first_activity_at"`
	VouchAmountReceived  uint64         `json:"vouchAmountReceived" db:"vouch_amount_received"`
	VouchAmountExtended  uint64         `json:"vouchAmountExtended" db:"vouch_amount_extended"`
}
