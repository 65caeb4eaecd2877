// Package signing is the signing client (spec.md §4.4, component C4):
// pre-commits nonce trees, drives one signature's nonce-reveal and
// signature-share rounds, and self-verifies its own share before
// emitting it. Like keygen, every exported function is stateless per
// call — it reads and returns a Session — so the machine decides when
// a call happens and storage (C7) decides where the result lives.
package signing

import (
	"sort"

	"github.com/shieldnet/validator/protocol"
)

// Session is the in-progress bookkeeping for one in-flight signature,
// from this validator's point of view.
type Session struct {
	SignatureId protocol.SignatureId
	GroupId     protocol.GroupId
	Message     protocol.MessageDigest
	Sequence    uint64
	Signers     []protocol.ParticipantId

	// Self is this validator's own nonce leaf location within its
	// NonceTree, recorded once CreateOwnNonceCommitments runs.
	SelfChunk  uint32
	SelfOffset uint32

	// Commitments holds every signer's revealed (hiding, binding) nonce
	// commitment, keyed by participant id, including our own.
	Commitments map[protocol.ParticipantId]protocol.NonceCommitmentPair
}

// NewSession starts bookkeeping for one signature request.
func NewSession(signatureId protocol.SignatureId, groupId protocol.GroupId, message protocol.MessageDigest, sequence uint64, signers []protocol.ParticipantId) *Session {
	return &Session{
		SignatureId: signatureId,
		GroupId:     groupId,
		Message:     message,
		Sequence:    sequence,
		Signers:     signers,
		Commitments: make(map[protocol.ParticipantId]protocol.NonceCommitmentPair),
	}
}

// Complete reports whether every signer has revealed its nonce
// commitments (spec.md §4.4 "return complete when all signers have
// contributed").
func (s *Session) Complete() bool {
	return len(s.Commitments) >= len(s.Signers)
}

// OrderedCommitments returns the (id, commitment) list in the fixed
// ascending-id order every signer must derive binding factors over, so
// two validators never disagree on ρᵢ due to map iteration order.
func (s *Session) OrderedCommitments() []protocol.CommitmentListEntry {
	ids := make([]protocol.ParticipantId, 0, len(s.Commitments))
	for id := range s.Commitments {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]protocol.CommitmentListEntry, len(ids))
	for i, id := range ids {
		out[i] = protocol.CommitmentListEntry{Id: id, Nonces: s.Commitments[id]}
	}
	return out
}
