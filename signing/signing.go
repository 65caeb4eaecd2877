package signing

import (
	"fmt"

	"github.com/shieldnet/validator/protocol"
)

// CreateNonceTree draws size fresh one-time Schnorr nonce pairs and
// commits to them as a Merkle tree (spec.md §4.4 "create a NonceTree of
// N leaves (power of two, configured); persist it; return its root").
// The tree is unlinked (Chunk == nil) until the chain acknowledges the
// commitment.
func CreateNonceTree(curve protocol.Curve, groupId protocol.GroupId, size int) (*protocol.NonceTree, error) {
	if size <= 0 || size&(size-1) != 0 {
		return nil, fmt.Errorf("signing: nonce tree size %d is not a positive power of two", size)
	}

	leaves := make([]protocol.NonceLeaf, size)
	for i := range leaves {
		hiding := curve.RandomScalar()
		binding := curve.RandomScalar()
		leaves[i] = protocol.NonceLeaf{
			HidingNonce:       hiding,
			HidingCommitment:  curve.BasePointMul(hiding),
			BindingNonce:      binding,
			BindingCommitment: curve.BasePointMul(binding),
		}
	}

	tree := &protocol.NonceTree{GroupId: groupId, Leaves: leaves}
	tree.Root = protocol.MerkleRoot(nonceTreeRawLeaves(curve, tree))
	return tree, nil
}

func nonceTreeRawLeaves(curve protocol.Curve, tree *protocol.NonceTree) [][]byte {
	raw := make([][]byte, len(tree.Leaves))
	for i, leaf := range tree.Leaves {
		raw[i] = append(curve.SerializePoint(leaf.HidingCommitment), curve.SerializePoint(leaf.BindingCommitment)...)
	}
	return raw
}

// CreateOwnNonceCommitments starts a session for a fresh signature
// request, checks the signer-set invariants, and reveals this
// validator's own nonce commitments from its already-linked tree
// (spec.md §4.4 "Create own nonce commitments").
func CreateOwnNonceCommitments(
	curve protocol.Curve,
	tree *protocol.NonceTree,
	signatureId protocol.SignatureId,
	groupId protocol.GroupId,
	message protocol.MessageDigest,
	sequence uint64,
	signers []protocol.ParticipantId,
	participants []protocol.Participant,
	threshold int,
	self protocol.ParticipantId,
	offset uint32,
) (*Session, protocol.NonceCommitmentPair, protocol.MerkleProof, error) {
	if len(signers) < threshold {
		return nil, protocol.NonceCommitmentPair{}, protocol.MerkleProof{}, fmt.Errorf("%w: %d signers, threshold %d", protocol.ErrInsufficientSigners, len(signers), threshold)
	}
	for _, id := range signers {
		found := false
		for _, p := range participants {
			if p.Id == id {
				found = true
				break
			}
		}
		if !found {
			return nil, protocol.NonceCommitmentPair{}, protocol.MerkleProof{}, fmt.Errorf("%w: %d", protocol.ErrSignerNotInGroup, id)
		}
	}

	if tree.Chunk == nil {
		return nil, protocol.NonceCommitmentPair{}, protocol.MerkleProof{}, fmt.Errorf("signing: nonce tree for group %s is not linked to a chunk yet", groupId)
	}

	leaf, err := tree.Leaf(uint64(offset))
	if err != nil {
		return nil, protocol.NonceCommitmentPair{}, protocol.MerkleProof{}, fmt.Errorf("signing: load own nonce leaf: %w", err)
	}
	pair := protocol.NonceCommitmentPair{Hiding: leaf.HidingCommitment, Binding: leaf.BindingCommitment}
	proof := protocol.GenerateMerkleProof(nonceTreeRawLeaves(curve, tree), int(offset))

	s := NewSession(signatureId, groupId, message, sequence, signers)
	s.SelfChunk = uint32(*tree.Chunk)
	s.SelfOffset = offset
	s.Commitments[self] = pair
	return s, pair, proof, nil
}

// HandleNonceCommitments records a peer's revealed commitments and
// reports whether every signer has now contributed (spec.md §4.4
// "Handle peer nonce commitments").
func HandleNonceCommitments(s *Session, from protocol.ParticipantId, nonces protocol.NonceCommitmentPair) bool {
	s.Commitments[from] = nonces
	return s.Complete()
}

// CreateSignatureShare runs the single-round FROST signing computation
// (spec.md §4.4 "Create signature share"): binding factors, group
// commitment, Fiat-Shamir challenge, Lagrange coefficient, and the
// signature share itself, self-verified before the nonce is burned.
func CreateSignatureShare(
	curve protocol.Curve,
	tree *protocol.NonceTree,
	session *Session,
	groupPublicKey protocol.Point,
	self protocol.ParticipantId,
	signingShare protocol.Scalar,
	verificationShare protocol.Point,
) (*protocol.PublishSignatureShare, error) {
	if !session.Complete() {
		return nil, fmt.Errorf("%w: nonce commitments still outstanding", ErrNotReady)
	}

	ordered := session.OrderedCommitments()
	bindingFactors := make(map[protocol.ParticipantId]protocol.Scalar, len(ordered))
	groupCommitment := curve.Identity()
	var selfCommitmentShare protocol.Point
	haveSelf := false
	for _, entry := range ordered {
		rho := protocol.DeriveBindingFactor(curve, groupPublicKey, session.Message, ordered, entry.Id)
		bindingFactors[entry.Id] = rho

		ri := curve.Add(entry.Nonces.Hiding, curve.ScalarMul(entry.Nonces.Binding, rho))
		groupCommitment = curve.Add(groupCommitment, ri)
		if entry.Id == self {
			selfCommitmentShare = ri
			haveSelf = true
		}
	}
	if !haveSelf {
		return nil, fmt.Errorf("signing: own participant id %d missing from its own session", self)
	}

	challenge := protocol.DeriveChallenge(curve, groupCommitment, groupPublicKey, session.Message)
	lambda := protocol.LagrangeCoefficient(curve, session.Signers, self)

	leaf, err := tree.Leaf(uint64(session.SelfOffset))
	if err != nil {
		return nil, fmt.Errorf("signing: load own nonce leaf: %w", err)
	}

	rho := bindingFactors[self]
	z := curve.AddScalars(leaf.HidingNonce, curve.MulScalars(rho, leaf.BindingNonce))
	z = curve.AddScalars(z, curve.MulScalars(lambda, curve.MulScalars(challenge, signingShare)))

	lhs := curve.BasePointMul(z)
	rhs := curve.Add(selfCommitmentShare, curve.ScalarMul(verificationShare, curve.MulScalars(lambda, challenge)))
	if !samePoint(curve, lhs, rhs) {
		return nil, ErrSelfVerificationFailed
	}

	if err := tree.Burn(uint64(session.SelfOffset)); err != nil {
		return nil, fmt.Errorf("signing: burn nonce slot: %w", err)
	}

	signersProof, err := protocol.GenerateSignerProof(session.Signers, self)
	if err != nil {
		return nil, fmt.Errorf("signing: %w", err)
	}

	return &protocol.PublishSignatureShare{
		SignatureId:     session.SignatureId,
		SignersRoot:     protocol.SignersRoot(session.Signers),
		SignersProof:    signersProof,
		GroupCommitment: groupCommitment,
		CommitmentShare: selfCommitmentShare,
		Share:           z,
		Lagrange:        lambda,
	}, nil
}

func samePoint(curve protocol.Curve, a, b protocol.Point) bool {
	sa, sb := curve.SerializePoint(a), curve.SerializePoint(b)
	if len(sa) != len(sb) {
		return false
	}
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}
