package keygen

import (
	"fmt"

	"github.com/shieldnet/validator/protocol"
)

// Setup starts a fresh session: draws this validator's secret
// polynomial, commits to it, and produces the KeyGenStart action
// spec.md §4.3 step 1 describes ("publish coeffs[0]·G plus a Schnorr
// proof of knowledge... plus a membership proof").
func Setup(curve protocol.Curve, groupId protocol.GroupId, self protocol.ParticipantId, participants []protocol.Participant, threshold int, context []byte) (*Session, protocol.KeyGenStart, error) {
	coeffs := make([]protocol.Scalar, threshold)
	for i := range coeffs {
		coeffs[i] = curve.RandomScalar()
	}

	s := NewSession(groupId, self, participants, threshold, context, coeffs, curve)

	participantProof, err := protocol.GenerateParticipantProof(participants, self)
	if err != nil {
		return nil, protocol.KeyGenStart{}, fmt.Errorf("keygen: setup: %w", err)
	}

	pokNonce := curve.RandomScalar()
	proof := protocol.ProveKnowledge(curve, coeffs[0], pokNonce, context)

	// Record our own commitment locally so Committed()/CreateShares see
	// a consistent picture without waiting for our own event to echo
	// back through the watcher.
	s.PeerCommitment0[self] = s.OwnCommitments[0]

	start := protocol.KeyGenStart{
		ParticipantsRoot: s.ParticipantsRoot,
		Count:            uint64(len(s.Participants)),
		Threshold:        uint64(threshold),
		Context:          context,
		SelfId:           self,
		Commitment:       s.OwnCommitments[0],
		ProofOfKnowledge: proof,
		ParticipantProof: participantProof,
	}
	return s, start, nil
}

// HandleCommitment records a peer's (or our own echoed) c_0 commitment
// once both its Schnorr proof of knowledge and its participant-set
// membership proof check out (spec.md §4.3 step 1/2: a KeyGenStart
// carries a ParticipantProof alongside the commitment precisely so a
// receiving validator can reject a commitment from an id that was never
// part of the group, not just one with a bad proof of knowledge).
func HandleCommitment(curve protocol.Curve, s *Session, from protocol.ParticipantId, commitment protocol.Point, proof protocol.SchnorrProof, participantProof protocol.MerkleProof) error {
	if _, ok := s.PeerCommitment0[from]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateCommitment, from)
	}
	participant, ok := findParticipant(s.Participants, from)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownParticipant, from)
	}
	if !protocol.VerifyMerkleProof(s.ParticipantsRoot, protocol.ParticipantLeaf(participant), participantProof) {
		return fmt.Errorf("%w: participant-set membership proof from %d", protocol.ErrVerificationFailed, from)
	}
	if !protocol.VerifyKnowledge(curve, commitment, proof, s.Context) {
		return fmt.Errorf("%w: commitment proof of knowledge from participant %d", protocol.ErrVerificationFailed, from)
	}
	s.PeerCommitment0[from] = commitment
	return nil
}

func findParticipant(participants []protocol.Participant, id protocol.ParticipantId) (protocol.Participant, bool) {
	for _, p := range participants {
		if p.Id == id {
			return p, true
		}
	}
	return protocol.Participant{}, false
}

// CreateShares evaluates this validator's polynomial at every
// participant's id, encrypting each result for its recipient (spec.md
// §4.3 step 3). It requires every participant's c_0 to already be
// recorded (Session.Committed()). Our own share and full commitment
// vector are recorded directly into the session rather than
// round-tripped through encryption.
func CreateShares(curve protocol.Curve, s *Session) (map[protocol.ParticipantId][]byte, error) {
	if !s.Committed() {
		return nil, fmt.Errorf("%w: commitments still outstanding", ErrNotReady)
	}

	shares := make(map[protocol.ParticipantId][]byte)
	for _, p := range s.Participants {
		share := protocol.EvaluatePolynomial(curve, s.Coeffs, uint64(p.Id))

		if p.Id == s.Self {
			s.DecryptedShares[s.Self] = share
			s.PeerCommitments[s.Self] = s.OwnCommitments
			continue
		}

		peerCommitment0, ok := s.PeerCommitment0[p.Id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrUnknownParticipant, p.Id)
		}
		blob, err := EncryptShare(curve, s.GroupId, s.Coeffs[0], peerCommitment0, share)
		if err != nil {
			return nil, fmt.Errorf("keygen: encrypt share for %d: %w", p.Id, err)
		}
		shares[p.Id] = blob
	}
	return shares, nil
}

// RecordPeerCommitments stores a peer's full coefficient-commitment
// vector (received out of band from the encrypted share itself, since
// the vector is public) and checks it is consistent with the c_0
// already recorded on-chain for that peer.
func RecordPeerCommitments(curve protocol.Curve, s *Session, from protocol.ParticipantId, commitments []protocol.Point) error {
	committed0, ok := s.PeerCommitment0[from]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownParticipant, from)
	}
	if len(commitments) == 0 || !samePoint(curve, commitments[0], committed0) {
		return fmt.Errorf("%w: commitment vector from %d does not match its on-chain c_0", protocol.ErrVerificationFailed, from)
	}
	s.PeerCommitments[from] = commitments
	return nil
}

// DecryptAndVerifyShare opens the share blob from, checks it against
// from's recorded commitment vector via the VSS identity share·G == Σ
// selfId^j·cⱼ, and records it on success (spec.md §4.3 step 3/4). The
// caller should turn either error kind into a KeyGenComplain action.
func DecryptAndVerifyShare(curve protocol.Curve, s *Session, from protocol.ParticipantId, blob []byte) error {
	senderCommitment0, ok := s.PeerCommitment0[from]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownParticipant, from)
	}
	commitments, ok := s.PeerCommitments[from]
	if !ok {
		return fmt.Errorf("keygen: no commitment vector recorded for %d yet", from)
	}

	share, err := DecryptShare(curve, s.GroupId, s.Coeffs[0], senderCommitment0, blob)
	if err != nil {
		return fmt.Errorf("%w: from %d: %v", protocol.ErrInvalidShare, from, err)
	}

	lhs := curve.BasePointMul(share)
	rhs := protocol.EvaluateCommitments(curve, commitments, uint64(s.Self))
	if !samePoint(curve, lhs, rhs) {
		return fmt.Errorf("%w: from %d failed VSS check", protocol.ErrInvalidShare, from)
	}

	s.DecryptedShares[from] = share
	return nil
}

// RaiseComplaint records a local complaint against accused and returns
// the action to publish it (spec.md §4.3 step 4).
func RaiseComplaint(s *Session, accused protocol.ParticipantId) protocol.KeyGenComplain {
	s.Complaints[accused] = true
	return protocol.KeyGenComplain{GroupId: s.GroupId, Accused: accused}
}

// VerifyComplaintResponse checks an accused participant's plaintext
// rebuttal against their own committed coefficient vector. true means
// the accused is vindicated (the share was correct all along, so the
// complaint itself was the bad actor); false means the accused is
// proven to have sent plaintiffId a bad share and the group must abort
// (protocol.ErrGroupCompromised).
func VerifyComplaintResponse(curve protocol.Curve, accusedCommitments []protocol.Point, plaintiffId protocol.ParticipantId, plaintextShare []byte) bool {
	share := curve.ScalarFromBytes(plaintextShare)
	lhs := curve.BasePointMul(share)
	rhs := protocol.EvaluateCommitments(curve, accusedCommitments, uint64(plaintiffId))
	return samePoint(curve, lhs, rhs)
}

// ResolveComplaint clears accused from the outstanding-complaints set
// once its response has been checked, regardless of verdict — the
// verdict itself (vindicate vs. abort the group) is the machine's call
// to make from VerifyComplaintResponse's result.
func ResolveComplaint(s *Session, accused protocol.ParticipantId) {
	delete(s.Complaints, accused)
}

// Finalize combines every participant's share into this validator's
// signing share and every c_0 into the group public key (spec.md §4.3
// step 5: "groupSecret = Σ coeffs[0], groupPublicKey = groupSecret·G").
func Finalize(curve protocol.Curve, s *Session) (*protocol.Group, error) {
	if !s.Shared() {
		return nil, fmt.Errorf("%w: shares still outstanding", ErrNotReady)
	}
	if len(s.Complaints) > 0 {
		return nil, fmt.Errorf("%w: %d unresolved", ErrComplaintUnresolved, len(s.Complaints))
	}

	ids := protocol.ParticipantIds(s.Participants)

	signingShare := curve.ScalarFromUint64(0)
	groupPublicKey := curve.Identity()
	for _, id := range ids {
		share, ok := s.DecryptedShares[id]
		if !ok {
			return nil, fmt.Errorf("%w: missing share from %d", ErrNotReady, id)
		}
		signingShare = curve.AddScalars(signingShare, share)

		c0, ok := s.PeerCommitment0[id]
		if !ok {
			return nil, fmt.Errorf("%w: missing commitment from %d", ErrNotReady, id)
		}
		groupPublicKey = curve.Add(groupPublicKey, c0)
	}

	return &protocol.Group{
		Id:                s.GroupId,
		Participants:      s.Participants,
		Threshold:         s.Threshold,
		PublicKey:         groupPublicKey,
		SigningShare:      signingShare,
		VerificationShare: curve.BasePointMul(signingShare),
		Confirmed:         true,
		Context:           s.Context,
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
