package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// PoolStats is a snapshot of the liquidity pool's accounting state
type PoolStats struct {
	TotalDeposits      *big.Int `json:"totalDeposits"`
	TotalLoans         *big.Int `json:"totalLoans"`
	AvailableLiquidity *big.Int `json:"availableLiquidity"`
	YieldEarned        *big.Int `json:"yieldEarned"`
	DefaultsLost       *big.Int `json:"defaultsLost"`
}

// Loan represents an outstanding or settled loan funded from the pool
type Loan struct {
	ID        string         `json:"id" db:"id"`
	Borrower  common.Address `json:"borrower" db:"borrower"`
	Principal *big.Int       `json:"principal" db:"principal"`
	FundedAt  time.Time      `json:"fundedAt" db:"funded_at"`
	RepaidAt  *time.Time     `json:"repaidAt,omitempty" db:"repaid_at"`
	Defaulted bool           `json:"defaulted" db:"defaulted"`
}

// Strategy represents a named yield allocation target
type Strategy struct {
	ID             uint64         `json:"id" db:"id"`
	Name           string         `json:"name" db:"name"`
	ProtocolRef    common.Address `json:"protocolRef" db:"protocol_ref"`
	AllocationBps  uint64         `json:"allocationBps" db:"allocation_bps"`
	YieldRateBps   uint64         `json:"yieldRateBps" db:"yield_rate_bps"`
	Active         bool           `json:"active" db:"active"`
	CurrentDeposit *big.Int       `json:"currentDeposit" db:"current_deposit"`
}
