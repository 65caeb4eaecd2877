package protocol

import "sort"

// Participant pairs a validator identity with its on-chain address. Id
// is unique inside a group (spec.md §3).
type Participant struct {
	Id      ParticipantId
	Address Address
}

// SortParticipantsById returns a copy of participants sorted by
// ascending Id, the deterministic order spec.md §3 requires
// ("Participants are deterministic-ordered by id").
func SortParticipantsById(participants []Participant) []Participant {
	sorted := make([]Participant, len(participants))
	copy(sorted, participants)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Id < sorted[j].Id })
	return sorted
}

// ParticipantIds extracts the sorted list of ids from participants.
func ParticipantIds(participants []Participant) []ParticipantId {
	sorted := SortParticipantsById(participants)
	ids := make([]ParticipantId, len(sorted))
	for i, p := range sorted {
		ids[i] = p.Id
	}
	return ids
}

// Group is one FROST key-generation group: a set of participants, a
// threshold, and (once key-gen confirms) the group's public key plus
// this validator's own secret material (spec.md §3).
type Group struct {
	Id           GroupId
	Participants []Participant
	Threshold    int

	// PublicKey is unset (Point.IsZero()) until key-gen confirms.
	PublicKey Point

	// SigningShare is this validator's secret scalar share. It is held
	// only by the key-gen/signing clients' persistence layer (spec.md
	// §9): the machine threads GroupIds and never copies this value.
	SigningShare Scalar

	// VerificationShare is the public curve-point counterpart of
	// SigningShare, used by peers (and by self-verification in C4) to
	// check signature shares without learning the secret.
	VerificationShare Point

	// Confirmed is true once every participant has published both a
	// commitment and a valid share (spec.md §3).
	Confirmed bool

	// Context is the opaque bytes DeriveContext produced for this
	// group's groupId derivation (consensus address + epoch served).
	Context []byte
}

// Count returns the number of participants in the group.
func (g *Group) Count() int { return len(g.Participants) }

// HasParticipant reports whether id belongs to this group.
func (g *Group) HasParticipant(id ParticipantId) bool {
	for _, p := range g.Participants {
		if p.Id == id {
			return true
		}
	}
	return false
}

// ParticipantsRootValue recomputes the Merkle root over this group's
// participant set.
func (g *Group) ParticipantsRootValue() [32]byte {
	return ParticipantsRoot(g.Participants)
}
