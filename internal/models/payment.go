package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Payment represents a settled payment between two users.
// Payments are immutable once created.
type Payment struct {
	ID        string         `json:"id" db:"id"`
	From      common.Address `json:"from" db:"from_address"`
	To        common.Address `json:"to" db:"to_address"`
	Amount    *big.Int       `json:"amount" db:"amount"`
	Message   string         `json:"message,omitempty" db:"message"`
	Completed bool           `json:"completed" db:"completed"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}

// Vouch represents a stake of trust-score capacity extended to another user.
// Vouches are deactivatable but never deleted so the audit trail survives.
type Vouch struct {
	ID        string         `json:"id" db:"id"`
	Voucher   common.Address `json:"voucher" db:"voucher"`
	Vouchee   common.Address `json:"vouchee" db:"vouchee"`
	Amount    uint64         `json:"amount" db:"amount"`
	Active    bool           `json:"active" db:"active"`
	CreatedAt time.Time      `json:"createdAt" db:"created_at"`
}
