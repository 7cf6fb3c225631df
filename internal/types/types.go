// Package types provides common type definitions for the trust ledger system.
package types

// ErrorKind represents the broad classification of a ledger error
type ErrorKind string

const (
	// KindValidation represents malformed or out-of-range input
	KindValidation ErrorKind = "validation"
	// KindAuthorization represents a caller lacking the required capability
	KindAuthorization ErrorKind = "authorization"
	// KindInsufficientResource represents insufficient balance, allowance, liquidity or vouch capacity
	KindInsufficientResource ErrorKind = "insufficient_resource"
	// KindConsistency represents replayed commitments, stale attestations or failed quorums
	KindConsistency ErrorKind = "consistency"
	// KindState represents a mutation that would violate a ledger invariant
	KindState ErrorKind = "state"
	// KindSystem represents infrastructure failures (database, cache)
	KindSystem ErrorKind = "system"
)

// EventType identifies an emitted ledger event
type EventType string

const (
	// EventPaymentSent is emitted when a payment settles
	EventPaymentSent EventType = "PaymentSent"
	// EventVouchCreated is emitted when a vouch becomes active
	EventVouchCreated EventType = "VouchCreated"
	// EventVouchRevoked is emitted when a vouch is deactivated
	EventVouchRevoked EventType = "VouchRevoked"
	// EventLiquidityAdded is emitted when a provider deposits into the pool
	EventLiquidityAdded EventType = "LiquidityAdded"
	// EventLiquidityRemoved is emitted when shares are burned for a payout
	EventLiquidityRemoved EventType = "LiquidityRemoved"
	// EventLoanFunded is emitted when the pool funds a loan
	EventLoanFunded EventType = "LoanFunded"
	// EventLoanRepaid is emitted when principal plus interest returns to the pool
	EventLoanRepaid EventType = "LoanRepaid"
	// EventLoanDefaulted is emitted when a loan principal is written off
	EventLoanDefaulted EventType = "LoanDefaulted"
	// EventYieldClaimed is emitted when a shareholder claims accrued yield
	EventYieldClaimed EventType = "YieldClaimed"
	// EventStrategyAdded is emitted when a yield strategy is registered
	EventStrategyAdded EventType = "StrategyAdded"
	// EventStrategyUpdated is emitted when a yield strategy is reconfigured
	EventStrategyUpdated EventType = "StrategyUpdated"
	// EventYieldHarvested is emitted when accrued yield is realized
	EventYieldHarvested EventType = "YieldHarvested"
	// EventChainConfigured is emitted when a destination chain is configured
	EventChainConfigured EventType = "ChainConfigured"
	// EventTransferInitiated is emitted when a cross-chain transfer enters custody
	EventTransferInitiated EventType = "CrossChainTransferInitiated"
	// EventTransferSettled is emitted when a cross-chain transfer completes
	EventTransferSettled EventType = "CrossChainTransferSettled"
	// EventTrustScoreSynced is emitted when a remote score passes quorum
	EventTrustScoreSynced EventType = "TrustScoreSynced"
	// EventRelayerAuthorized is emitted when relayer authorization changes
	EventRelayerAuthorized EventType = "RelayerAuthorized"
	// EventCreditBoostApplied is emitted when a verified reputation claim lands
	EventCreditBoostApplied EventType = "CreditBoostApplied"
)

// TransferState represents the lifecycle of a cross-chain transfer
type TransferState string

const (
	// TransferInitiated means funds are locked in bridge custody awaiting relay
	TransferInitiated TransferState = "initiated"
	// TransferSettled means the destination domain has confirmed delivery
	TransferSettled TransferState = "settled"
)

// AttestationState represents the lifecycle of a trust-score attestation
type AttestationState string

const (
	// AttestationPending means the attestation has not yet met quorum
	AttestationPending AttestationState = "pending"
	// AttestationVerified means a quorum of distinct relayers signed it
	AttestationVerified AttestationState = "verified"
	// AttestationStored means the verified score has been recorded
	AttestationStored AttestationState = "stored"
)

// CallerTier represents the API service tier for rate limiting
type CallerTier string

const (
	// TierFree represents the free service tier with limited request rates
	TierFree CallerTier = "free"
	// TierPaid represents the paid service tier with full request rates
	TierPaid CallerTier = "paid"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

const (
	// BpsDenominator is the basis-point scale (10000 == 100%)
	BpsDenominator = 10000
	// UtilizationCapBps caps outstanding loans at 80% of total deposits
	UtilizationCapBps = 8000
	// MaxTransferFeeBps caps cross-chain transfer fees at 1%
	MaxTransferFeeBps = 100
)
