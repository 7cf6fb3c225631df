package errors

import (
	"fmt"
	"net/http"

	"github.com/trust-ledger/internal/types"
)

// CategorizedError represents an error with a taxonomy kind and HTTP status code
type CategorizedError struct {
	Kind       types.ErrorKind
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Validation errors

// NewZeroAddressError creates a validation error for the zero address
func NewZeroAddressError(field string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "ZERO_ADDRESS",
		Message:    fmt.Sprintf("zero address not allowed for %s", field),
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// NewInvalidAmountError creates a validation error for a nil or negative amount
func NewInvalidAmountError(field string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_AMOUNT",
		Message:    fmt.Sprintf("amount '%s' must be a non-negative integer", field),
		Details: map[string]interface{}{
			"field": field,
		},
	}
}

// NewBelowMinimumError creates a validation error for an amount under a configured floor
func NewBelowMinimumError(what string, minimum string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "BELOW_MINIMUM",
		Message:    fmt.Sprintf("below minimum %s: %s", what, minimum),
		Details: map[string]interface{}{
			"what":    what,
			"minimum": minimum,
		},
	}
}

// NewAllocationOutOfRangeError creates a validation error for bps outside [1, 10000]
func NewAllocationOutOfRangeError(bps uint64) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "ALLOCATION_OUT_OF_RANGE",
		Message:    fmt.Sprintf("allocation must be within [1, 10000] bps, got %d", bps),
		Details: map[string]interface{}{
			"allocationBps": bps,
		},
	}
}

// NewUnsupportedChainError creates a validation error for an unknown or inactive chain
func NewUnsupportedChainError(chainID uint64) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "UNSUPPORTED_CHAIN",
		Message:    fmt.Sprintf("chain %d is not configured or not active", chainID),
		Details: map[string]interface{}{
			"chainId": chainID,
		},
	}
}

// NewTransferOutOfBoundsError creates a validation error for an amount outside [min, max]
func NewTransferOutOfBoundsError(chainID uint64, amount string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "TRANSFER_OUT_OF_BOUNDS",
		Message:    fmt.Sprintf("transfer amount %s is outside the configured bounds for chain %d", amount, chainID),
		Details: map[string]interface{}{
			"chainId": chainID,
			"amount":  amount,
		},
	}
}

// NewFeeAboveCapError creates a validation error for a fee above the 1% cap
func NewFeeAboveCapError(feeBps uint64) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "FEE_ABOVE_CAP",
		Message:    fmt.Sprintf("fee %d bps exceeds the %d bps cap", feeBps, types.MaxTransferFeeBps),
		Details: map[string]interface{}{
			"feeBps": feeBps,
		},
	}
}

// Authorization errors

// NewUnauthorizedCallerError creates an authorization error for a caller lacking a capability
func NewUnauthorizedCallerError(capability string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "UNAUTHORIZED_CALLER",
		Message:    fmt.Sprintf("caller does not hold the %s capability", capability),
		Details: map[string]interface{}{
			"capability": capability,
		},
	}
}

// Insufficient resource errors

// NewInsufficientBalanceError creates an error for a settlement balance shortfall
func NewInsufficientBalanceError(required, available string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindInsufficientResource,
		StatusCode: http.StatusPaymentRequired,
		Code:       "INSUFFICIENT_BALANCE",
		Message:    "settlement balance is insufficient",
		Details: map[string]interface{}{
			"required":  required,
			"available": available,
		},
	}
}

// NewInsufficientAllowanceError creates an error for a settlement allowance shortfall
func NewInsufficientAllowanceError(required, available string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindInsufficientResource,
		StatusCode: http.StatusPaymentRequired,
		Code:       "INSUFFICIENT_ALLOWANCE",
		Message:    "settlement allowance is insufficient",
		Details: map[string]interface{}{
			"required":  required,
			"available": available,
		},
	}
}

// NewInsufficientSharesError creates an error for burning more shares than held
func NewInsufficientSharesError(required, available string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindInsufficientResource,
		StatusCode: http.StatusPaymentRequired,
		Code:       "INSUFFICIENT_SHARES",
		Message:    "share balance is insufficient",
		Details: map[string]interface{}{
			"required":  required,
			"available": available,
		},
	}
}

// NewVouchCapacityError creates an error for a vouch exceeding the voucher's score capacity
func NewVouchCapacityError(requested, capacity uint64) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindInsufficientResource,
		StatusCode: http.StatusPaymentRequired,
		Code:       "VOUCH_CAPACITY_EXCEEDED",
		Message:    fmt.Sprintf("vouch amount %d exceeds available capacity %d", requested, capacity),
		Details: map[string]interface{}{
			"requested": requested,
			"capacity":  capacity,
		},
	}
}

// NewNoStrategiesError creates an error for depositing with no active yield strategy
func NewNoStrategiesError() *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindInsufficientResource,
		StatusCode: http.StatusConflict,
		Code:       "NO_STRATEGIES_AVAILABLE",
		Message:    "no active yield strategies are available for deposits",
	}
}

// Consistency errors

// NewCommitmentReplayError creates an error for a reused proof commitment
func NewCommitmentReplayError(commitment string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindConsistency,
		StatusCode: http.StatusConflict,
		Code:       "COMMITMENT_REPLAYED",
		Message:    "proof commitment has already been consumed",
		Details: map[string]interface{}{
			"commitment": commitment,
		},
	}
}

// NewStaleAttestationError creates an error for an attestation outside the freshness window
func NewStaleAttestationError(age, window string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindConsistency,
		StatusCode: http.StatusConflict,
		Code:       "STALE_ATTESTATION",
		Message:    "attestation timestamp is outside the freshness window",
		Details: map[string]interface{}{
			"age":    age,
			"window": window,
		},
	}
}

// NewQuorumNotMetError creates an error for too few distinct authorized signatures
func NewQuorumNotMetError(got, required int) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindConsistency,
		StatusCode: http.StatusConflict,
		Code:       "QUORUM_NOT_MET",
		Message:    fmt.Sprintf("got %d distinct authorized signatures, need %d", got, required),
		Details: map[string]interface{}{
			"got":      got,
			"required": required,
		},
	}
}

// NewInvalidSignatureError creates an error for a signature that fails recovery
func NewInvalidSignatureError(index int, cause error) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindConsistency,
		StatusCode: http.StatusConflict,
		Code:       "INVALID_SIGNATURE",
		Message:    fmt.Sprintf("signature %d failed recovery", index),
		Cause:      cause,
		Details: map[string]interface{}{
			"index": index,
		},
	}
}

// State errors

// NewUtilizationCapError creates an error for a mutation exceeding the utilization cap
func NewUtilizationCapError(loans, deposits string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindState,
		StatusCode: http.StatusConflict,
		Code:       "UTILIZATION_CAP_EXCEEDED",
		Message:    "loan would push utilization above the cap",
		Details: map[string]interface{}{
			"totalLoans":    loans,
			"totalDeposits": deposits,
		},
	}
}

// NewAllocationSumError creates an error for active allocations exceeding 100%
func NewAllocationSumError(sumBps uint64) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindState,
		StatusCode: http.StatusConflict,
		Code:       "ALLOCATION_SUM_EXCEEDED",
		Message:    fmt.Sprintf("active allocations would total %d bps, above 10000", sumBps),
		Details: map[string]interface{}{
			"sumBps": sumBps,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindValidation,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// System errors

// NewInternalError creates an internal error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindSystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindSystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Kind:       types.KindSystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	// If already categorized, return as-is
	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	return NewInternalError("unexpected error", err)
}

// Kind returns the taxonomy kind for an error
func Kind(err error) types.ErrorKind {
	if catErr := Categorize(err); catErr != nil {
		return catErr.Kind
	}
	return types.KindSystem
}

// HTTPStatus returns the HTTP status code for an error
func HTTPStatus(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsKind reports whether an error carries the given taxonomy kind
func IsKind(err error, kind types.ErrorKind) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.Kind == kind
}

// IsValidation reports whether err is a validation error
func IsValidation(err error) bool { return IsKind(err, types.KindValidation) }

// IsAuthorization reports whether err is an authorization error
func IsAuthorization(err error) bool { return IsKind(err, types.KindAuthorization) }

// IsInsufficientResource reports whether err is an insufficient-resource error
func IsInsufficientResource(err error) bool { return IsKind(err, types.KindInsufficientResource) }

// IsConsistency reports whether err is a consistency error
func IsConsistency(err error) bool { return IsKind(err, types.KindConsistency) }

// IsState reports whether err is a state error
func IsState(err error) bool { return IsKind(err, types.KindState) }
