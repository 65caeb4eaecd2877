// Package protocol holds the shared data model of the validator daemon:
// identifiers, groups, nonce trees, packets, and the closed sum types
// that make up the three sub-machines' state (spec.md §3). Nothing in
// this package talks to the chain or to storage; it is pure data plus
// the small amount of pure logic (hashing, Merkle proofs, sequence
// encoding) that the rest of the spec's round-trip laws are defined
// over.
package protocol

import (
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// GroupId identifies one key-generation group. It is computed as
// H(participantsRoot, count, threshold, context) — see DeriveGroupId.
type GroupId [32]byte

func (g GroupId) String() string { return hex.EncodeToString(g[:]) }

// IsZero reports whether g is the zero value, used to distinguish an
// unset optional GroupId field from a real one.
func (g GroupId) IsZero() bool { return g == GroupId{} }

// SignatureId identifies one in-flight or completed signature.
type SignatureId [32]byte

func (s SignatureId) String() string { return hex.EncodeToString(s[:]) }

// MessageDigest is the canonical 32-byte digest a verified packet
// reduces to (spec.md §4.2).
type MessageDigest [32]byte

func (m MessageDigest) String() string { return hex.EncodeToString(m[:]) }

func (m MessageDigest) IsZero() bool { return m == MessageDigest{} }

// ParticipantId identifies one validator inside a group. Participants
// are ordered by ascending ParticipantId (spec.md §3).
type ParticipantId uint64

// Address is a 20-byte account identifier. The coordinator/consensus
// chain is EVM-shaped, so we reuse go-ethereum's Address rather than
// rolling our own fixed-size array type.
type Address = common.Address

// Epoch is a contiguous block range during which one group is
// authoritative (see GLOSSARY).
type Epoch uint64

// BlockNumber is a chain block height.
type BlockNumber uint64

// LogIndex is the position of a log within its block.
type LogIndex uint32

// Cursor is the (block, logIndex) ordering key transitions are
// delivered in (spec.md §4.1 "Contracts").
type Cursor struct {
	Block    BlockNumber
	LogIndex LogIndex
}

// Less reports whether c sorts strictly before o.
func (c Cursor) Less(o Cursor) bool {
	if c.Block != o.Block {
		return c.Block < o.Block
	}
	return c.LogIndex < o.LogIndex
}

func (c Cursor) String() string {
	return fmt.Sprintf("(%d,%d)", c.Block, c.LogIndex)
}
