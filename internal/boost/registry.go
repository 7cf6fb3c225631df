// Package boost implements the credit boost registry. It accepts proof- or
// signature-verified reputation claims and serves each user's aggregate boost.
// Proof verification internals are opaque; the registry only guarantees
// commitment uniqueness and timestamp freshness.
package boost

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/trust-ledger/internal/clock"
	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/logging"
	"github.com/trust-ledger/internal/models"
)

// Registry is the narrow interface the trust-score ledger consumes
type Registry interface {
	SubmitReputationProof(ctx context.Context, user common.Address, metric string, value uint64, proof []byte, auxRef common.Hash) (bool, error)
	SubmitDataProviderVerification(ctx context.Context, user common.Address, metric string, value uint64, signature []byte, timestamp time.Time, auxRef common.Hash) (bool, error)
	GetUserCreditBoost(ctx context.Context, user common.Address) (uint64, error)
}

// ProofVerifier checks an opaque zero-knowledge reputation proof.
// Circuit internals are out of scope for the ledger.
type ProofVerifier interface {
	VerifyProof(metric string, value uint64, proof []byte) (bool, error)
}

// ScoreInvalidator evicts a user's cached trust score after a boost changes it
type ScoreInvalidator interface {
	InvalidateScore(ctx context.Context, user common.Address) error
}

// metricMultipliers maps reputation metrics to boost points per value unit
var metricMultipliers = map[string]uint64{
	"credit_score":    1,
	"income_verified": 2,
	"rent_history":    3,
}

// maxBoostPerClaim bounds how many points one claim can contribute
const maxBoostPerClaim = 100

// CreditBoostRegistry stores verified reputation claims keyed by commitment
type CreditBoostRegistry struct {
	mu          sync.RWMutex
	verifier    ProofVerifier
	provider    common.Address
	clk         clock.Clock
	freshness   time.Duration
	logger      *logging.Logger
	invalidator ScoreInvalidator
	boosts      map[common.Address][]*models.CreditBoost
	commitments map[common.Hash]bool
}

// Config holds the registry's construction parameters
type Config struct {
	// Verifier checks zero-knowledge reputation proofs
	Verifier ProofVerifier
	// Provider is the data provider address expected to sign verifications
	Provider common.Address
	// Clock drives freshness checks
	Clock clock.Clock
	// Freshness bounds how old a declared verification timestamp may be
	Freshness time.Duration
	// Logger for registry activity
	Logger *logging.Logger
	// Invalidator evicts cached scores once a boost lands; optional
	Invalidator ScoreInvalidator
}

// NewCreditBoostRegistry creates a registry with replay protection
func NewCreditBoostRegistry(cfg Config) *CreditBoostRegistry {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.GetGlobalLogger()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}
	return &CreditBoostRegistry{
		verifier:    cfg.Verifier,
		provider:    cfg.Provider,
		clk:         clk,
		freshness:   cfg.Freshness,
		logger:      logger,
		invalidator: cfg.Invalidator,
		boosts:      make(map[common.Address][]*models.CreditBoost),
		commitments: make(map[common.Hash]bool),
	}
}

// SubmitReputationProof applies a zero-knowledge-verified reputation claim.
// Returns true when a boost was applied.
func (r *CreditBoostRegistry) SubmitReputationProof(ctx context.Context, user common.Address, metric string, value uint64, proof []byte, auxRef common.Hash) (bool, error) {
	if user == (common.Address{}) {
		return false, errors.NewZeroAddressError("user")
	}

	ok, err := r.verifier.VerifyProof(metric, value, proof)
	if err != nil {
		return false, errors.NewInternalError("proof verification failed", err)
	}
	if !ok {
		return false, errors.NewInvalidSignatureError(0, nil)
	}

	commitment := claimCommitment(user, metric, value, auxRef)
	return r.apply(ctx, user, metric, value, commitment, r.clk.Now())
}

// SubmitDataProviderVerification applies a claim attested by the configured
// data provider's signature over (user, metric, value, timestamp, auxRef).
func (r *CreditBoostRegistry) SubmitDataProviderVerification(ctx context.Context, user common.Address, metric string, value uint64, signature []byte, timestamp time.Time, auxRef common.Hash) (bool, error) {
	if user == (common.Address{}) {
		return false, errors.NewZeroAddressError("user")
	}

	now := r.clk.Now()
	if age := now.Sub(timestamp); age > r.freshness {
		return false, errors.NewStaleAttestationError(age.String(), r.freshness.String())
	}

	digest := verificationDigest(user, metric, value, timestamp, auxRef)
	pub, err := crypto.SigToPub(digest.Bytes(), signature)
	if err != nil {
		return false, errors.NewInvalidSignatureError(0, err)
	}
	if crypto.PubkeyToAddress(*pub) != r.provider {
		return false, errors.NewUnauthorizedCallerError("data_provider")
	}

	commitment := claimCommitment(user, metric, value, auxRef)
	return r.apply(ctx, user, metric, value, commitment, timestamp)
}

// GetUserCreditBoost returns the user's aggregate boost points
func (r *CreditBoostRegistry) GetUserCreditBoost(_ context.Context, user common.Address) (uint64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total uint64
	for _, b := range r.boosts[user] {
		total += b.BoostPoints
	}
	return total, nil
}

// apply records a verified claim. Each commitment is consumed at most once.
func (r *CreditBoostRegistry) apply(ctx context.Context, user common.Address, metric string, value uint64, commitment common.Hash, verifiedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.commitments[commitment] {
		return false, errors.NewCommitmentReplayError(commitment.Hex())
	}

	points := boostPoints(metric, value)
	r.commitments[commitment] = true
	r.boosts[user] = append(r.boosts[user], &models.CreditBoost{
		User:             user,
		Metric:           metric,
		Value:            value,
		BoostPoints:      points,
		VerifiedAt:       verifiedAt,
		SourceCommitment: commitment,
	})

	r.logger.WithFields(map[string]interface{}{
		"user":   user.Hex(),
		"metric": metric,
		"points": points,
	}).Info("Credit boost applied")

	if r.invalidator != nil {
		if err := r.invalidator.InvalidateScore(ctx, user); err != nil {
			r.logger.WithError(err).WithField("user", user.Hex()).Warn("Failed to invalidate cached score")
		}
	}

	return true, nil
}

// boostPoints converts a claimed metric value into trust-score points
func boostPoints(metric string, value uint64) uint64 {
	multiplier, ok := metricMultipliers[metric]
	if !ok {
		multiplier = 1
	}
	points := value * multiplier
	if points > maxBoostPerClaim {
		points = maxBoostPerClaim
	}
	return points
}

// claimCommitment derives the unique commitment consumed by a claim
func claimCommitment(user common.Address, metric string, value uint64, auxRef common.Hash) common.Hash {
	var valueBuf [8]byte
	binary.BigEndian.PutUint64(valueBuf[:], value)
	return crypto.Keccak256Hash(user.Bytes(), []byte(metric), valueBuf[:], auxRef.Bytes())
}

// verificationDigest is the message a data provider signs for a claim
func verificationDigest(user common.Address, metric string, value uint64, timestamp time.Time, auxRef common.Hash) common.Hash {
	var valueBuf, tsBuf [8]byte
	binary.BigEndian.PutUint64(valueBuf[:], value)
	binary.BigEndian.PutUint64(tsBuf[:], uint64(timestamp.Unix()))
	return crypto.Keccak256Hash(user.Bytes(), []byte(metric), valueBuf[:], tsBuf[:], auxRef.Bytes())
}
