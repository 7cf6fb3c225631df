package models

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/trust-ledger/internal/types"
)

// ChainConfig holds per-destination-chain transfer parameters
type ChainConfig struct {
	ChainID     uint64   `json:"chainId" db:"chain_id"`
	Selector    uint64   `json:"selector" db:"selector"`
	Active      bool     `json:"active" db:"active"`
	MinTransfer *big.Int `json:"minTransfer" db:"min_transfer"`
	MaxTransfer *big.Int `json:"maxTransfer" db:"max_transfer"`
	FeeBps      uint64   `json:"feeBps" db:"fee_bps"`
}

// Relayer holds the authorization state of a cross-chain relayer
type Relayer struct {
	Address    common.Address `json:"address" db:"address"`
	Authorized bool           `json:"authorized" db:"authorized"`
	Stake      *big.Int       `json:"stake" db:"stake"`
}

// CrossChainTransfer represents a value transfer locked in bridge custody
type CrossChainTransfer struct {
	MessageID   string              `json:"messageId" db:"message_id"`
	Sender      common.Address      `json:"sender" db:"sender"`
	Recipient   common.Address      `json:"recipient" db:"recipient"`
	DestChainID uint64              `json:"destChainId" db:"dest_chain_id"`
	Amount      *big.Int            `json:"amount" db:"amount"`
	Fee         *big.Int            `json:"fee" db:"fee"`
	Net         *big.Int            `json:"net" db:"net"`
	State       types.TransferState `json:"state" db:"state"`
	InitiatedAt time.Time           `json:"initiatedAt" db:"initiated_at"`
	SettledAt   *time.Time          `json:"settledAt,omitempty" db:"settled_at"`
}

// RemoteTrustScore is a quorum-verified trust score from another chain domain
type RemoteTrustScore struct {
	User          common.Address `json:"user" db:"user_address"`
	SourceChainID uint64         `json:"sourceChainId" db:"source_chain_id"`
	Score         uint64         `json:"score" db:"score"`
	Timestamp     time.Time      `json:"timestamp" db:"timestamp"`
}
