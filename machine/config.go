// Package machine is the protocol state machine (spec.md §4.5,
// component C5): the pure-with-respect-to-its-inputs heart of the
// validator daemon. Given the current rollover/group/signing/consensus
// snapshot and one Transition, it returns a StateDiff plus the actions
// the submitter should enqueue — it never performs a side effect
// itself (spec.md §9 "diff-then-apply", "actions, not side effects").
//
// The key-gen (C3) and signing (C4) clients are themselves stateless
// per call; their in-progress Session bookkeeping has to live
// somewhere between transitions, and this package is that somewhere.
// Machine keeps it as private in-memory working state scoped to one
// running process, the same way a single long-lived daemon would hold
// any other live collaborator handle — restart recovery for key-gen
// and signing sessions specifically is scoped out (see DESIGN.md).
package machine

import (
	"github.com/shieldnet/validator/protocol"
)

// Config is every static parameter the machine needs (spec.md §6).
type Config struct {
	ChainId            uint64
	ConsensusAddress    protocol.Address
	CoordinatorAddress  protocol.Address
	Participants        []protocol.Participant
	Self                protocol.ParticipantId
	Threshold           int
	GenesisSalt         []byte
	BlocksPerEpoch      uint64
	KeyGenTimeoutBlocks  uint64
	SigningTimeoutBlocks uint64
	NonceTreeSize        int
	NonceLowWaterMark    int

	// AllowedSelectors is the supported-selector allowlist (spec.md
	// §4.2's "supported selector" check) every AccountTransactionPacket's
	// call data is checked against. Nil/empty leaves call data
	// unrestricted. It is only threaded into verify.New alongside
	// ConsensusAddress/CoordinatorAddress; the machine itself never
	// inspects it.
	AllowedSelectors [][4]byte
}

// ParticipantsRoot recomputes the Merkle root over the configured
// participant set, cached nowhere since it is cheap and Config is
// expected to be immutable for the process lifetime.
func (c *Config) ParticipantsRoot() [32]byte {
	return protocol.ParticipantsRoot(c.Participants)
}
