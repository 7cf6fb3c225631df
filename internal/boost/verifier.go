package boost

import (
	"bytes"
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"
)

// SaltedCommitmentVerifier accepts a proof iff it is the keccak commitment to
// (metric, value) under a salt shared with the proof issuer. It stands in for
// a zero-knowledge verifier behind the same interface: the issuer attests the
// claim off-process and hands the client an opaque 32-byte proof.
type SaltedCommitmentVerifier struct {
	salt []byte
}

// NewSaltedCommitmentVerifier creates a verifier keyed by the given salt
func NewSaltedCommitmentVerifier(salt string) *SaltedCommitmentVerifier {
	return &SaltedCommitmentVerifier{salt: []byte(salt)}
}

// VerifyProof checks the proof against the expected commitment
func (v *SaltedCommitmentVerifier) VerifyProof(metric string, value uint64, proof []byte) (bool, error) {
	var valueBuf [8]byte
	binary.BigEndian.PutUint64(valueBuf[:], value)
	expected := crypto.Keccak256Hash([]byte(metric), valueBuf[:], v.salt)
	return bytes.Equal(proof, expected.Bytes()), nil
}

// ProofFor derives the proof a holder of the salt would issue for a claim.
// Exposed for issuers and tests.
func (v *SaltedCommitmentVerifier) ProofFor(metric string, value uint64) []byte {
	var valueBuf [8]byte
	binary.BigEndian.PutUint64(valueBuf[:], value)
	return crypto.Keccak256Hash([]byte(metric), valueBuf[:], v.salt).Bytes()
}
