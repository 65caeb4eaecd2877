package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldnet/validator/protocol"
)

func link(tree *protocol.NonceTree, chunk uint64) {
	c := chunk
	tree.Chunk = &c
}

// TestSigningFullFlow runs nonce pre-commitment through signature-share
// creation for three signers and checks the produced shares actually
// satisfy the FROST verification equation z·G == R + c·groupPublicKey
// once aggregated — not just that each validator's own self-check
// passed.
func TestSigningFullFlow(t *testing.T) {
	curve := newFakeCurve()
	coeffs := []protocol.Scalar{curve.RandomScalar(), curve.RandomScalar()}
	threshold := 2
	groupPublicKey := curve.BasePointMul(coeffs[0])

	participants := []protocol.Participant{{Id: 1}, {Id: 2}, {Id: 3}}
	signers := []protocol.ParticipantId{1, 2, 3}
	groupId := protocol.GroupId{7}
	message := protocol.MessageDigest{1, 2, 3}
	signatureId := protocol.SignatureId{9}
	sequence := protocol.EncodeSequence(0, 0)

	signingShares := make(map[protocol.ParticipantId]protocol.Scalar)
	verificationShares := make(map[protocol.ParticipantId]protocol.Point)
	trees := make(map[protocol.ParticipantId]*protocol.NonceTree)
	for _, id := range signers {
		signingShares[id] = protocol.EvaluatePolynomial(curve, coeffs, uint64(id))
		verificationShares[id] = curve.BasePointMul(signingShares[id])

		tree, err := CreateNonceTree(curve, groupId, 2)
		require.NoError(t, err)
		link(tree, 0)
		trees[id] = tree
	}

	sessions := make(map[protocol.ParticipantId]*Session)
	commitments := make(map[protocol.ParticipantId]protocol.NonceCommitmentPair)
	for _, id := range signers {
		s, pair, _, err := CreateOwnNonceCommitments(curve, trees[id], signatureId, groupId, message, sequence, signers, participants, threshold, id, 0)
		require.NoError(t, err)
		sessions[id] = s
		commitments[id] = pair
	}

	for _, id := range signers {
		for _, other := range signers {
			if other == id {
				continue
			}
			HandleNonceCommitments(sessions[id], other, commitments[other])
		}
		assert.True(t, sessions[id].Complete())
	}

	shares := make(map[protocol.ParticipantId]*protocol.PublishSignatureShare)
	for _, id := range signers {
		share, err := CreateSignatureShare(curve, trees[id], sessions[id], groupPublicKey, id, signingShares[id], verificationShares[id])
		require.NoError(t, err)
		shares[id] = share
	}

	// Every signer must agree on the same group commitment.
	firstR := curve.SerializePoint(shares[1].GroupCommitment)
	for _, id := range signers {
		assert.Equal(t, firstR, curve.SerializePoint(shares[id].GroupCommitment))
	}

	// Aggregate: z = Σ zᵢ must satisfy z·G == R + c·groupPublicKey.
	z := curve.ScalarFromUint64(0)
	for _, id := range signers {
		z = curve.AddScalars(z, shares[id].Share)
	}
	challenge := protocol.DeriveChallenge(curve, shares[1].GroupCommitment, groupPublicKey, message)
	lhs := curve.SerializePoint(curve.BasePointMul(z))
	rhs := curve.SerializePoint(curve.Add(shares[1].GroupCommitment, curve.ScalarMul(groupPublicKey, challenge)))
	assert.Equal(t, rhs, lhs)

	// Every nonce slot used must now be burned.
	for _, id := range signers {
		leaf, err := trees[id].Leaf(uint64(sessions[id].SelfOffset))
		assert.Nil(t, leaf)
		assert.ErrorIs(t, err, protocol.ErrNonceAlreadyBurned)
	}
}

func TestCreateSignatureShareRejectsIncompleteSession(t *testing.T) {
	curve := newFakeCurve()
	groupId := protocol.GroupId{1}
	tree, err := CreateNonceTree(curve, groupId, 2)
	require.NoError(t, err)
	link(tree, 0)

	s := NewSession(protocol.SignatureId{1}, groupId, protocol.MessageDigest{1}, 0, []protocol.ParticipantId{1, 2})
	groupPublicKey := curve.BasePointMul(curve.ScalarFromUint64(1))
	_, err = CreateSignatureShare(curve, tree, s, groupPublicKey, 1, curve.ScalarFromUint64(1), groupPublicKey)
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestCreateNonceTreeRejectsNonPowerOfTwo(t *testing.T) {
	curve := newFakeCurve()
	_, err := CreateNonceTree(curve, protocol.GroupId{}, 3)
	assert.Error(t, err)
}

func TestCreateOwnNonceCommitmentsRejectsTooFewSigners(t *testing.T) {
	curve := newFakeCurve()
	groupId := protocol.GroupId{1}
	tree, err := CreateNonceTree(curve, groupId, 2)
	require.NoError(t, err)
	link(tree, 0)

	participants := []protocol.Participant{{Id: 1}, {Id: 2}, {Id: 3}}
	_, _, _, err = CreateOwnNonceCommitments(curve, tree, protocol.SignatureId{1}, groupId, protocol.MessageDigest{1}, 0, []protocol.ParticipantId{1}, participants, 2, 1, 0)
	assert.ErrorIs(t, err, protocol.ErrInsufficientSigners)
}

func TestCreateOwnNonceCommitmentsRejectsSignerOutsideGroup(t *testing.T) {
	curve := newFakeCurve()
	groupId := protocol.GroupId{1}
	tree, err := CreateNonceTree(curve, groupId, 2)
	require.NoError(t, err)
	link(tree, 0)

	participants := []protocol.Participant{{Id: 1}, {Id: 2}}
	_, _, _, err = CreateOwnNonceCommitments(curve, tree, protocol.SignatureId{1}, groupId, protocol.MessageDigest{1}, 0, []protocol.ParticipantId{1, 99}, participants, 2, 1, 0)
	assert.ErrorIs(t, err, protocol.ErrSignerNotInGroup)
}
