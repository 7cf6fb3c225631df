// Package crosschain implements relayer-attested synchronization of trust
// scores and settlement value across chain domains: chain configuration,
// relayer authorization, fee-bearing transfers and k-of-n quorum
// verification of signed remote attestations.
package crosschain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/trust-ledger/internal/errors"
)

// ethSignedMessagePrefix is the EIP-191 personal-message prefix for a
// 32-byte payload
const ethSignedMessagePrefix = "\x19Ethereum Signed Message:\n32"

// EthSignedHash wraps a canonical digest in the EIP-191 prefix. Signatures
// are produced and verified over this hash, never over the raw digest.
func EthSignedHash(digest common.Hash) common.Hash {
	return crypto.Keccak256Hash([]byte(ethSignedMessagePrefix), digest.Bytes())
}

// QuorumVerifier checks that a digest carries at least threshold signatures
// from distinct authorized signers. It is independent of any particular
// message format; callers supply the canonical digest and the authorization
// predicate.
type QuorumVerifier struct {
	threshold int
}

// NewQuorumVerifier creates a k-of-n verifier requiring threshold distinct
// authorized signers
func NewQuorumVerifier(threshold int) *QuorumVerifier {
	return &QuorumVerifier{threshold: threshold}
}

// Threshold returns the number of distinct authorized signers required
func (v *QuorumVerifier) Threshold() int {
	return v.threshold
}

// Verify recovers the signer of each 65-byte signature over the EIP-191
// wrapped digest, deduplicates, and drops signers the predicate rejects.
// A malformed signature fails the whole verification; an unauthorized
// signer is merely ignored. Returns the distinct authorized signers, or a
// consistency error when the threshold is not met.
func (v *QuorumVerifier) Verify(digest common.Hash, signatures [][]byte, isAuthorized func(common.Address) bool) ([]common.Address, error) {
	signed := EthSignedHash(digest)

	seen := make(map[common.Address]bool, len(signatures))
	signers := make([]common.Address, 0, len(signatures))

	for i, sig := range signatures {
		if len(sig) != crypto.SignatureLength {
			return nil, errors.NewInvalidSignatureError(i, nil)
		}

		// Accept both recovery-id conventions: 0/1 and legacy 27/28
		normalized := sig
		if sig[crypto.RecoveryIDOffset] >= 27 {
			normalized = make([]byte, crypto.SignatureLength)
			copy(normalized, sig)
			normalized[crypto.RecoveryIDOffset] -= 27
		}

		pubKey, err := crypto.SigToPub(signed.Bytes(), normalized)
		if err != nil {
			return nil, errors.NewInvalidSignatureError(i, err)
		}

		signer := crypto.PubkeyToAddress(*pubKey)
		if seen[signer] || !isAuthorized(signer) {
			continue
		}
		seen[signer] = true
		signers = append(signers, signer)
	}

	if len(signers) < v.threshold {
		return nil, errors.NewQuorumNotMetError(len(signers), v.threshold)
	}
	return signers, nil
}
