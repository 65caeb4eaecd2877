// Package storage defines the abstract persistence contracts (spec.md
// §3/§9, component C7) every other package depends on. A concrete
// backend is deliberately out of scope of the protocol itself; this
// repository ships three (storage/memdb, storage/leveldb,
// storage/badgerdb) behind these same interfaces, following the
// teacher's own contract-then-backend split between its bridge
// subsystem's business logic and the underlying database package.
package storage

import (
	"context"
	"errors"

	"github.com/shieldnet/validator/protocol"
)

// ErrNotFound is returned by any Get-style method when the requested
// key does not exist.
var ErrNotFound = errors.New("storage: not found")

// GroupStore persists FROST key-gen groups, keyed by GroupId.
type GroupStore interface {
	GetGroup(ctx context.Context, id protocol.GroupId) (*protocol.Group, error)
	PutGroup(ctx context.Context, g *protocol.Group) error
	DeleteGroup(ctx context.Context, id protocol.GroupId) error
	ListGroups(ctx context.Context) ([]*protocol.Group, error)
}

// NonceTreeStore persists pre-committed nonce trees, keyed by their
// Merkle root.
type NonceTreeStore interface {
	GetNonceTree(ctx context.Context, root [32]byte) (*protocol.NonceTree, error)
	PutNonceTree(ctx context.Context, t *protocol.NonceTree) error
	// GetNonceTreeByChunk finds the tree linked to (groupId, chunk); used
	// to resolve a Sign/Preprocess event's encoded sequence back to a
	// leaf without the caller needing to track roots itself.
	GetNonceTreeByChunk(ctx context.Context, groupId protocol.GroupId, chunk uint64) (*protocol.NonceTree, error)
}

// SigningStore persists in-flight signing entries, keyed by the
// MessageDigest the signature is over.
type SigningStore interface {
	GetSigning(ctx context.Context, digest protocol.MessageDigest) (*protocol.SigningEntry, error)
	PutSigning(ctx context.Context, digest protocol.MessageDigest, e *protocol.SigningEntry) error
	DeleteSigning(ctx context.Context, digest protocol.MessageDigest) error
	ListSigning(ctx context.Context) (map[protocol.MessageDigest]*protocol.SigningEntry, error)
}

// RolloverStore persists the single epoch-rollover sub-machine state.
type RolloverStore interface {
	GetRollover(ctx context.Context) (protocol.RolloverState, error)
	PutRollover(ctx context.Context, s protocol.RolloverState) error
}

// ConsensusStore persists the mutable consensus-contract mirror.
type ConsensusStore interface {
	GetConsensus(ctx context.Context) (*protocol.MutableConsensusState, error)
	PutConsensus(ctx context.Context, s *protocol.MutableConsensusState) error
}

// OutboxStore persists the submitter's durable, nonce-ordered outbox.
type OutboxStore interface {
	GetEntry(ctx context.Context, nonce uint64) (*protocol.SubmissionEntry, error)
	PutEntry(ctx context.Context, e *protocol.SubmissionEntry) error
	// ListFrom returns every entry with Nonce >= from, ascending, the
	// access pattern the submitter's per-block loop needs (spec.md
	// §4.6: "for every entry with nonce ≥ N in ascending order").
	ListFrom(ctx context.Context, from uint64) ([]*protocol.SubmissionEntry, error)
	HighestNonce(ctx context.Context) (uint64, bool, error)
}

// CursorStore persists the watcher's exclusively-owned follow cursor
// (spec.md §9 ownership summary: "the watcher exclusively owns its
// follow cursor"). Kept as a separate interface — and, in this
// repository, a physically separate backend — so nothing outside the
// watcher can accidentally fold cursor advancement into the machine's
// atomic state write.
type CursorStore interface {
	GetCursor(ctx context.Context) (protocol.Cursor, bool, error)
	PutCursor(ctx context.Context, c protocol.Cursor) error
}

// MachineStore is the union of every contract the state machine (C5)
// and key-gen/signing clients (C3/C4) need, excluding the outbox and
// watcher cursor (owned exclusively by C6 and C1 respectively per
// spec.md §9's ownership summary).
type MachineStore interface {
	GroupStore
	NonceTreeStore
	SigningStore
	RolloverStore
	ConsensusStore

	// ApplyDiff writes every field of diff in one atomic operation: the
	// "single wall of atomicity" spec.md §5 requires around a
	// transition's entire storage write, so a crash mid-transition never
	// leaves the groups/signing/rollover/consensus tables straddling two
	// different transitions.
	ApplyDiff(ctx context.Context, diff *protocol.StateDiff) error
}

// Store is every persistence contract this daemon uses, the shape
// cmd/validatord wires up once against a chosen concrete backend.
type Store interface {
	MachineStore
	OutboxStore
	CursorStore
}
