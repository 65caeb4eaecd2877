package keygen

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"

	"github.com/shieldnet/validator/protocol"
)

// sharedCipherPoint computes the ECDH-style shared point two
// participants derive independently: ownCoeffZero·peerCommitment0 on
// the sender's side, peerCoeffZero·ownCommitment0 on the receiver's —
// equal by Diffie-Hellman symmetry (a·(b·G) == b·(a·G)), since
// commitment0 = coeffZero·G for both sides.
func sharedCipherPoint(curve protocol.Curve, ownCoeffZero protocol.Scalar, peerCommitment0 protocol.Point) protocol.Point {
	return curve.ScalarMul(peerCommitment0, ownCoeffZero)
}

// EncryptShare seals share for the participant whose on-chain
// commitment is peerCommitment0, using a key derived from this
// validator's own coeffs[0] and that commitment (spec.md §4.3 step 3).
// The returned blob is nonce || box and is exactly what travels inside
// a KeyGenPublishShares.EncryptedShares entry — the full
// coefficient-commitment vector is not secret and is not part of it
// (see Session.PeerCommitments / RecordPeerCommitments).
func EncryptShare(curve protocol.Curve, groupId protocol.GroupId, ownCoeffZero protocol.Scalar, peerCommitment0 protocol.Point, share protocol.Scalar) ([]byte, error) {
	key := protocol.DeriveShareCipherKey(curve, groupId, sharedCipherPoint(curve, ownCoeffZero, peerCommitment0))

	var nonce [24]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("keygen: draw share-encryption nonce: %w", err)
	}

	plaintext := protocol.EncodeScalar(share)
	sealed := secretbox.Seal(nonce[:], plaintext, &nonce, &key)
	return sealed, nil
}

// DecryptShare opens a blob produced by EncryptShare, deriving the same
// key from this validator's own coeffs[0] and the sender's committed
// c_0. An authentication failure here is the signal to raise a
// complaint (spec.md §4.3 step 4).
func DecryptShare(curve protocol.Curve, groupId protocol.GroupId, ownCoeffZero protocol.Scalar, senderCommitment0 protocol.Point, blob []byte) (protocol.Scalar, error) {
	key := protocol.DeriveShareCipherKey(curve, groupId, sharedCipherPoint(curve, ownCoeffZero, senderCommitment0))

	if len(blob) < 24 {
		return protocol.Scalar{}, fmt.Errorf("%w: share ciphertext shorter than nonce", ErrMalformedShare)
	}
	var nonce [24]byte
	copy(nonce[:], blob[:24])

	plaintext, ok := secretbox.Open(nil, blob[24:], &nonce, &key)
	if !ok {
		return protocol.Scalar{}, fmt.Errorf("%w: share failed to decrypt/authenticate", ErrMalformedShare)
	}
	return curve.ScalarFromBytes(plaintext), nil
}
