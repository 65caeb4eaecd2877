package protocol

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"
)

// Domain-separation tags for the digests this package computes. Each
// on-wire digest spec.md calls H(...) is actually H(tag || fields...)
// so that two structurally different inputs (say, a group id and a
// packet typeHash) can never collide by accident. These strings are
// protocol-critical: spec.md §9 flags them as an open question the
// implementer must decide and keep bit-for-bit stable against the
// on-chain verifier. We fix them here once, in one place.
const (
	tagGroupId           = "shieldnet/frost/group-id/v1"
	tagParticipantsRoot  = "shieldnet/frost/participants-root/v1"
	tagMerkleLeaf        = "shieldnet/frost/merkle-leaf/v1"
	tagMerkleNode        = "shieldnet/frost/merkle-node/v1"
	tagEpochRollover     = "shieldnet/frost/packet/epoch-rollover/v1"
	tagAccountTx         = "shieldnet/frost/packet/account-tx/v1"
	tagContext           = "shieldnet/frost/context/v1"
	tagBindingFactor     = "shieldnet/frost/rho/v1"
	tagChallenge         = "shieldnet/frost/chal/v1"
	tagSchnorrChallenge  = "shieldnet/frost/pok/v1"
	tagShareCipherKey    = "shieldnet/frost/share-key/v1"
	tagGenesisContext    = "shieldnet/frost/genesis-context/v1"
)

// DeriveGenesisContext builds the `context` for the very first group
// (epoch 1), mixing in the deployment's genesisSalt (spec.md §6
// configuration: `genesisSalt`) so two independent deployments sharing
// a consensus address (e.g. a testnet reset) never derive the same
// genesis groupId.
func DeriveGenesisContext(consensusAddress Address, salt []byte) []byte {
	h := hash(tagGenesisContext, consensusAddress[:], salt)
	return h[:]
}

// DeriveShareCipherKey derives the symmetric key two participants use to
// encrypt/decrypt the secret-sharing share between them, from an
// ECDH-style shared point (spec.md §4.3 step 3: "encrypt symmetrically
// with a key derived from coeffs[0]"). sharedPoint is
// ownCoeffZero·peerCommitmentZero, computed identically by both sides
// thanks to Diffie-Hellman symmetry (a·(b·G) == b·(a·G)).
func DeriveShareCipherKey(curve Curve, groupId GroupId, sharedPoint Point) [32]byte {
	return hash(tagShareCipherKey, groupId[:], curve.SerializePoint(sharedPoint))
}

// hash returns the Keccak-256 digest of tag || concat(parts...). Keccak
// is used rather than SHA-256 because the coordinator/consensus
// contracts this daemon talks to are EVM-shaped (spec.md §1) and every
// on-chain digest an EVM verifier recomputes uses Keccak-256.
func hash(tag string, parts ...[]byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(tag))
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

func uint64Bytes(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// DeriveContext encodes the consensus address and the epoch a group
// serves into the opaque `context` field referenced throughout spec.md
// §3/§4 (e.g. "context encodes the consensus address and the epoch the
// group serves").
func DeriveContext(consensusAddress Address, epoch Epoch) []byte {
	h := hash(tagContext, consensusAddress[:], uint64Bytes(uint64(epoch)))
	return h[:]
}

// DeriveGroupId computes groupId = H(participantsRoot, count, threshold,
// context) exactly as spec.md §3 specifies.
func DeriveGroupId(participantsRoot [32]byte, count, threshold uint64, context []byte) GroupId {
	return GroupId(hash(
		tagGroupId,
		participantsRoot[:],
		uint64Bytes(count),
		uint64Bytes(threshold),
		context,
	))
}

// DigestEpochRolloverPacket reduces p to the canonical digest the
// verification engine signs off on (spec.md §4.2). Domain-separated by
// tagEpochRollover so this can never collide with an account
// transaction's digest even if the raw field bytes happened to match.
func DigestEpochRolloverPacket(p EpochRolloverPacket) MessageDigest {
	return MessageDigest(hash(
		tagEpochRollover,
		uint64Bytes(uint64(p.ActiveEpoch)),
		uint64Bytes(uint64(p.ProposedEpoch)),
		uint64Bytes(uint64(p.RolloverBlock)),
		bigIntBytes(p.GroupKeyX),
		bigIntBytes(p.GroupKeyY),
		p.ConsensusAddr[:],
	))
}

// DigestAccountTransactionPacket reduces p to the canonical digest the
// verification engine signs off on (spec.md §4.2).
func DigestAccountTransactionPacket(p AccountTransactionPacket) MessageDigest {
	tx := p.Transaction
	return MessageDigest(hash(
		tagAccountTx,
		uint64Bytes(uint64(p.Epoch)),
		p.ChainAddr[:],
		uint64Bytes(tx.ChainId),
		tx.Account[:],
		tx.To[:],
		bigIntBytes(tx.Value),
		tx.Data,
		uint64Bytes(uint64(tx.Operation)),
		uint64Bytes(tx.Nonce),
	))
}

// CommitmentListEntry pairs a signer with its revealed nonce
// commitments, the ordered unit DeriveBindingFactor's `commitmentsList`
// is built from (spec.md §4.4).
type CommitmentListEntry struct {
	Id      ParticipantId
	Nonces  NonceCommitmentPair
}

// DeriveBindingFactor computes ρᵢ = H("rho" ‖ groupPub ‖ message ‖
// commitmentsList ‖ i) exactly as spec.md §4.4 specifies. commitments
// must already be in the fixed order every signer iterates it in
// (ascending participant id) so every signer derives the same ρᵢ for
// the same i.
func DeriveBindingFactor(curve Curve, groupPub Point, message MessageDigest, commitments []CommitmentListEntry, id ParticipantId) Scalar {
	parts := [][]byte{curve.SerializePoint(groupPub), message[:]}
	for _, c := range commitments {
		parts = append(parts,
			uint64Bytes(uint64(c.Id)),
			curve.SerializePoint(c.Nonces.Hiding),
			curve.SerializePoint(c.Nonces.Binding),
		)
	}
	parts = append(parts, uint64Bytes(uint64(id)))
	digest := hash(tagBindingFactor, parts...)
	return curve.ScalarFromBytes(digest[:])
}

// DeriveChallenge computes c = H("chal" ‖ R ‖ groupPub ‖ message)
// exactly as spec.md §4.4 specifies.
func DeriveChallenge(curve Curve, groupCommitment, groupPub Point, message MessageDigest) Scalar {
	digest := hash(tagChallenge, curve.SerializePoint(groupCommitment), curve.SerializePoint(groupPub), message[:])
	return curve.ScalarFromBytes(digest[:])
}

// Callback context kinds: the leading byte of an EncodeCallbackContext
// result, letting the consensus contract dispatch the completed
// signature to the right terminal call without needing a side table.
const (
	CallbackKindAttestTransaction byte = 1
	CallbackKindStageEpoch        byte = 2
)

// EncodeCallbackContext packs the terminal action an aggregated
// signature should route to into the opaque bytes carried on a
// PublishSignatureShare (spec.md §4.4/§4.5.2, glossary "Callback
// context"). Unlike the digests above this is not a hash: the contract
// has to decode it, not just compare it, so fields are packed in fixed
// big-endian order behind a one-byte kind discriminant.
func EncodeCallbackContext(epoch Epoch, txHash [32]byte) []byte {
	out := make([]byte, 0, 1+8+32)
	out = append(out, CallbackKindAttestTransaction)
	out = append(out, uint64Bytes(uint64(epoch))...)
	out = append(out, txHash[:]...)
	return out
}

// EncodeStageEpochCallbackContext is EncodeCallbackContext's
// counterpart for an epoch-rollover attestation.
func EncodeStageEpochCallbackContext(proposedEpoch Epoch, rolloverBlock BlockNumber, groupId GroupId) []byte {
	out := make([]byte, 0, 1+8+8+32)
	out = append(out, CallbackKindStageEpoch)
	out = append(out, uint64Bytes(uint64(proposedEpoch))...)
	out = append(out, uint64Bytes(uint64(rolloverBlock))...)
	out = append(out, groupId[:]...)
	return out
}

func bigIntBytes(v *big.Int) []byte {
	if v == nil {
		return nil
	}
	return v.Bytes()
}
