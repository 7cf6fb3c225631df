package boost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaltedCommitmentVerifier(t *testing.T) {
	v := NewSaltedCommitmentVerifier("test-salt")

	proof := v.ProofFor("credit_score", 42)
	ok, err := v.VerifyProof("credit_score", 42, proof)
	require.NoError(t, err)
	assert.True(t, ok)

	// Proof is bound to the claimed value
	ok, err = v.VerifyProof("credit_score", 43, proof)
	require.NoError(t, err)
	assert.False(t, ok)

	// And to the metric
	ok, err = v.VerifyProof("rent_history", 42, proof)
	require.NoError(t, err)
	assert.False(t, ok)

	// A different salt yields incompatible proofs
	other := NewSaltedCommitmentVerifier("other-salt")
	ok, err = other.VerifyProof("credit_score", 42, proof)
	require.NoError(t, err)
	assert.False(t, ok)
}
