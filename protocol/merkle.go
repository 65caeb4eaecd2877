package protocol

import (
	"bytes"
	"fmt"
)

// MerkleProof is a bottom-up list of sibling hashes plus, for each
// level, whether the sibling sits on the left or the right of the
// node being proved.
type MerkleProof struct {
	Siblings [][32]byte
	// OnRight[i] is true when Siblings[i] is the right sibling of the
	// node at that level (i.e. the node being proved is on the left).
	OnRight []bool
}

// leafHash and nodeHash are domain-separated so that an attacker can't
// pass off an internal node as a leaf (the classic second-preimage
// attack on naive Merkle trees).
func leafHash(data []byte) [32]byte {
	return hash(tagMerkleLeaf, data)
}

func nodeHash(left, right [32]byte) [32]byte {
	return hash(tagMerkleNode, left[:], right[:])
}

// BuildMerkleTree returns every level of the tree built over leaves, in
// the same domain-separated form used by leafHash/nodeHash. levels[0]
// is the leaf layer; the last level holds exactly the root. An empty
// leaf is padded by duplicating the last leaf of a level, the common
// fix for odd-width levels.
func BuildMerkleTree(rawLeaves [][]byte) [][][32]byte {
	if len(rawLeaves) == 0 {
		return [][][32]byte{{hash(tagMerkleLeaf)}}
	}

	level := make([][32]byte, len(rawLeaves))
	for i, l := range rawLeaves {
		level[i] = leafHash(l)
	}

	levels := [][][32]byte{level}
	for len(level) > 1 {
		next := make([][32]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, nodeHash(level[i], level[i+1]))
			} else {
				next = append(next, nodeHash(level[i], level[i]))
			}
		}
		levels = append(levels, next)
		level = next
	}
	return levels
}

// MerkleRoot returns the root of the tree built over rawLeaves.
func MerkleRoot(rawLeaves [][]byte) [32]byte {
	levels := BuildMerkleTree(rawLeaves)
	return levels[len(levels)-1][0]
}

// GenerateMerkleProof returns the proof that rawLeaves[index] is a
// member of the tree built over rawLeaves.
func GenerateMerkleProof(rawLeaves [][]byte, index int) MerkleProof {
	levels := BuildMerkleTree(rawLeaves)
	var proof MerkleProof

	idx := index
	for lvl := 0; lvl < len(levels)-1; lvl++ {
		level := levels[lvl]
		var siblingIdx int
		var onRight bool
		if idx%2 == 0 {
			// our node is on the left; sibling is on the right (or a
			// duplicate of ourselves if we're the last, odd-width node).
			if idx+1 < len(level) {
				siblingIdx = idx + 1
			} else {
				siblingIdx = idx
			}
			onRight = true
		} else {
			siblingIdx = idx - 1
			onRight = false
		}
		proof.Siblings = append(proof.Siblings, level[siblingIdx])
		proof.OnRight = append(proof.OnRight, onRight)
		idx /= 2
	}
	return proof
}

// VerifyMerkleProof reports whether leaf, combined with proof, hashes
// up to root. Satisfies the round-trip law from spec.md §8:
// verifyMerkleProof(root, leaf, generateMerkleProof(leaves, i)) == true
// iff leaves[i] == leaf.
func VerifyMerkleProof(root [32]byte, leaf []byte, proof MerkleProof) bool {
	cur := leafHash(leaf)
	for i, sib := range proof.Siblings {
		if proof.OnRight[i] {
			cur = nodeHash(cur, sib)
		} else {
			cur = nodeHash(sib, cur)
		}
	}
	return bytes.Equal(cur[:], root[:])
}

// ParticipantsRoot computes the Merkle root over (id, address) leaves,
// after sorting participants by ascending id so that the root is
// order-independent (spec.md §8 round-trip law: ParticipantsRoot(p) ==
// ParticipantsRoot(sortById(p))). This also underpins spec.md §4.5.4's
// claim that a reduced-set restart deterministically produces the same
// groupId on every validator.
func ParticipantsRoot(participants []Participant) [32]byte {
	sorted := SortParticipantsById(participants)
	leaves := make([][]byte, len(sorted))
	for i, p := range sorted {
		leaves[i] = participantLeafBytes(p)
	}
	return MerkleRoot(leaves)
}

func participantLeafBytes(p Participant) []byte {
	b := make([]byte, 8+20)
	copy(b[0:8], uint64Bytes(uint64(p.Id)))
	copy(b[8:], p.Address[:])
	return b
}

// ParticipantLeaf returns the same leaf encoding ParticipantsRoot/
// GenerateParticipantProof build their tree over, so a caller holding
// only a single Participant (e.g. verifying one peer's membership proof
// against an already-known root) can reconstruct that peer's leaf
// without rebuilding the whole tree.
func ParticipantLeaf(p Participant) []byte {
	return participantLeafBytes(p)
}

// GenerateParticipantProof returns the membership proof for id against
// ParticipantsRoot(participants), the proof a KeyGenStart action
// attaches so the coordinator contract can check a committing
// participant actually belongs to the group (spec.md §4.3 step 1).
func GenerateParticipantProof(participants []Participant, id ParticipantId) (MerkleProof, error) {
	sorted := SortParticipantsById(participants)
	leaves := make([][]byte, len(sorted))
	index := -1
	for i, p := range sorted {
		leaves[i] = participantLeafBytes(p)
		if p.Id == id {
			index = i
		}
	}
	if index < 0 {
		return MerkleProof{}, fmt.Errorf("protocol: participant %d not in set", id)
	}
	return GenerateMerkleProof(leaves, index), nil
}

func sortedParticipantIds(ids []ParticipantId) []ParticipantId {
	sorted := make([]ParticipantId, len(ids))
	copy(sorted, ids)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	return sorted
}

// SignersRoot computes the Merkle root over a signer-set id list, the
// `signersRoot` a PublishSignatureShare action carries so the
// coordinator contract can check a signature share actually came from
// the chosen signer set (spec.md §4.4 "emit (... signersRoot,
// signersProof)").
func SignersRoot(signers []ParticipantId) [32]byte {
	sorted := sortedParticipantIds(signers)
	leaves := make([][]byte, len(sorted))
	for i, id := range sorted {
		leaves[i] = uint64Bytes(uint64(id))
	}
	return MerkleRoot(leaves)
}

// GenerateSignerProof returns the membership proof for id against
// SignersRoot(signers).
func GenerateSignerProof(signers []ParticipantId, id ParticipantId) (MerkleProof, error) {
	sorted := sortedParticipantIds(signers)
	leaves := make([][]byte, len(sorted))
	index := -1
	for i, sid := range sorted {
		leaves[i] = uint64Bytes(uint64(sid))
		if sid == id {
			index = i
		}
	}
	if index < 0 {
		return MerkleProof{}, fmt.Errorf("protocol: signer %d not in signer set", id)
	}
	return GenerateMerkleProof(leaves, index), nil
}
