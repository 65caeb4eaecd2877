package protocol

import (
	"encoding/binary"
	"fmt"
)

// NonceLeaf holds one pre-committed one-time Schnorr nonce pair plus
// its public commitments (spec.md §3). Once burned, the secret fields
// are zeroed; Burned guards against double use.
type NonceLeaf struct {
	HidingNonce      Scalar
	HidingCommitment Point
	BindingNonce     Scalar
	BindingCommitment Point
	Burned           bool
}

// NonceTree is a pre-committed batch of one-time Schnorr nonces for one
// group, organised as a binary Merkle tree and bound to a (groupId,
// chunk) pair once the chain acknowledges the commitment (spec.md §3).
type NonceTree struct {
	GroupId GroupId
	// Chunk is unset (nil) until the tree's root has been linked to a
	// (groupId, chunk) pair on-chain (C4 "linkNonceTree").
	Chunk  *uint64
	Root   [32]byte
	Leaves []NonceLeaf
}

// Size returns the number of offsets the tree exposes. It is always a
// power of two per spec.md §8 ("Nonce tree with size 2^k exposes
// exactly 2^k offsets").
func (t *NonceTree) Size() int { return len(t.Leaves) }

// IsLinked reports whether the tree has been bound to a chunk.
func (t *NonceTree) IsLinked() bool { return t.Chunk != nil }

// Leaf returns the leaf at offset, erroring if offset is out of range
// or the slot was already burned (spec.md §3 invariant: "reading a
// burned slot is an error").
func (t *NonceTree) Leaf(offset uint64) (*NonceLeaf, error) {
	if offset >= uint64(len(t.Leaves)) {
		return nil, fmt.Errorf("nonce tree %x: offset %d out of range (size %d)", t.Root, offset, len(t.Leaves))
	}
	leaf := &t.Leaves[offset]
	if leaf.Burned {
		return nil, fmt.Errorf("%w: tree %x offset %d", ErrNonceAlreadyBurned, t.Root, offset)
	}
	return leaf, nil
}

// Burn zeroes out the secret nonce material at offset and marks it
// used. It is an error to burn the same offset twice (spec.md §3/§4.4
// invariant).
func (t *NonceTree) Burn(offset uint64) error {
	leaf, err := t.Leaf(offset)
	if err != nil {
		return err
	}
	leaf.HidingNonce = Scalar{}
	leaf.BindingNonce = Scalar{}
	leaf.Burned = true
	return nil
}

// EncodeSequence packs (chunk, offset) into the single uint64 the
// on-chain Sign/Preprocess events carry as `sequence` (spec.md §3).
// The low 32 bits are the offset, the high 32 bits the chunk.
func EncodeSequence(chunk, offset uint32) uint64 {
	return uint64(chunk)<<32 | uint64(offset)
}

// DecodeSequence is the inverse of EncodeSequence. Round-trip law
// (spec.md §8): decodeSequence(encodeSequence(chunk, offset)) ==
// (chunk, offset).
func DecodeSequence(seq uint64) (chunk, offset uint32) {
	return uint32(seq >> 32), uint32(seq)
}

func sequenceBytes(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}
