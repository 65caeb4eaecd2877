// Package keygen is the key-gen client (spec.md §4.3, component C3):
// drives one group through setup, commitment, secret-sharing,
// complaint resolution, and confirmation. Every exported function is
// stateless per call — it reads and returns a Session value rather
// than mutating hidden state — so the machine (C5) remains the only
// thing that decides when a call happens and where its result is
// persisted (via storage, C7).
package keygen

import (
	"github.com/shieldnet/validator/protocol"
)

// Session is the full in-progress key-gen bookkeeping for one group,
// from this validator's point of view. The protocol state machine
// keeps it in memory between calls; it is not persisted, and nothing
// here talks to a database directly.
type Session struct {
	GroupId      protocol.GroupId
	Self         protocol.ParticipantId
	Participants []protocol.Participant
	Threshold    int
	Context      []byte

	// ParticipantsRoot is recorded at Setup so HandleCommitment can
	// verify membership proofs without recomputing it from Participants
	// every call.
	ParticipantsRoot [32]byte

	// Coeffs is this validator's own secret polynomial, coeffs[0] being
	// the secret share of the group key this validator contributes.
	Coeffs []protocol.Scalar

	// OwnCommitments are the public commitments to Coeffs (cⱼ = coeffⱼ·G).
	// Only OwnCommitments[0] is published on-chain (KeyGenStart's
	// Commitment field); the rest travel peer-to-peer bundled with
	// shares at the Share phase.
	OwnCommitments []protocol.Point

	// PeerCommitment0 holds the on-chain-committed c_0 for every peer
	// (including self), populated as KeyGenCommitted events arrive.
	PeerCommitment0 map[protocol.ParticipantId]protocol.Point

	// PeerCommitments holds each peer's full coefficient-commitment
	// vector, populated once their share bundle arrives (Share phase).
	PeerCommitments map[protocol.ParticipantId][]protocol.Point

	// DecryptedShares holds f_{peer→self}(self) for every peer whose
	// share has been received and passed its VSS check.
	DecryptedShares map[protocol.ParticipantId]protocol.Scalar

	// Complaints tracks participants this validator (or a peer) has
	// accused of publishing a bad share.
	Complaints map[protocol.ParticipantId]bool
}

// NewSession starts bookkeeping for groupId. Coeffs must already be
// generated by the caller (via repeated Curve.RandomScalar calls) —
// Session never generates its own randomness.
func NewSession(groupId protocol.GroupId, self protocol.ParticipantId, participants []protocol.Participant, threshold int, context []byte, coeffs []protocol.Scalar, curve protocol.Curve) *Session {
	return &Session{
		GroupId:          groupId,
		Self:             self,
		Participants:     protocol.SortParticipantsById(participants),
		Threshold:        threshold,
		Context:          context,
		ParticipantsRoot: protocol.ParticipantsRoot(participants),
		Coeffs:           coeffs,
		OwnCommitments:   protocol.CommitPolynomial(curve, coeffs),
		PeerCommitment0:  make(map[protocol.ParticipantId]protocol.Point),
		PeerCommitments:  make(map[protocol.ParticipantId][]protocol.Point),
		DecryptedShares:  make(map[protocol.ParticipantId]protocol.Scalar),
		Complaints:       make(map[protocol.ParticipantId]bool),
	}
}

// Committed reports whether every participant (including self) has a
// recorded c_0 commitment — the `committed == true` condition spec.md
// §4.3 step 2 describes.
func (s *Session) Committed() bool {
	return len(s.PeerCommitment0) >= len(s.Participants)
}

// Shared reports whether every participant's share has been received
// and verified.
func (s *Session) Shared() bool {
	return len(s.DecryptedShares) >= len(s.Participants)
}
