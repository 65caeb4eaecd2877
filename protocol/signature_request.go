package protocol

// SignatureRequest is one in-flight or completed request to produce a
// threshold signature (spec.md §3). Sequence encodes (chunk, offset)
// into the group's nonce tree; Signers must be a subset of the group's
// participants with |Signers| >= threshold.
type SignatureRequest struct {
	SignatureId SignatureId
	GroupId     GroupId
	Message     MessageDigest
	Signers     []ParticipantId
	Sequence    uint64
	Packet      Packet
}

// ValidateSigners checks the |signers| >= threshold and signers ⊆
// group.participants invariants spec.md §3/§8 require before a
// signature request can proceed.
func ValidateSigners(signers []ParticipantId, group *Group) error {
	if len(signers) < group.Threshold {
		return ErrInsufficientSigners
	}
	for _, s := range signers {
		if !group.HasParticipant(s) {
			return ErrSignerNotInGroup
		}
	}
	return nil
}
