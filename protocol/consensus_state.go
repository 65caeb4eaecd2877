package protocol

// EpochGroup is the (group, our-participant-id) pair a confirmed epoch
// is served by.
type EpochGroup struct {
	GroupId       GroupId
	ParticipantId ParticipantId
}

// MutableConsensusState is the single piece of consensus-contract
// mirror state the machine maintains (spec.md §3).
type MutableConsensusState struct {
	GenesisGroupId     *GroupId
	ActiveEpoch        Epoch
	EpochGroups        map[Epoch]EpochGroup
	GroupPendingNonces map[GroupId]struct{}
	SignatureIdToMessage map[SignatureId]MessageDigest
}

// NewMutableConsensusState returns a zero-valued, ready-to-use state.
func NewMutableConsensusState() *MutableConsensusState {
	return &MutableConsensusState{
		EpochGroups:          make(map[Epoch]EpochGroup),
		GroupPendingNonces:   make(map[GroupId]struct{}),
		SignatureIdToMessage: make(map[SignatureId]MessageDigest),
	}
}

// Clone returns a deep-enough copy for diff-then-apply semantics (§9
// design note): a StateDiff is computed against a snapshot and applied
// atomically by the storage layer, never mutated in place by the
// machine itself.
func (s *MutableConsensusState) Clone() *MutableConsensusState {
	out := NewMutableConsensusState()
	out.GenesisGroupId = s.GenesisGroupId
	out.ActiveEpoch = s.ActiveEpoch
	for k, v := range s.EpochGroups {
		out.EpochGroups[k] = v
	}
	for k := range s.GroupPendingNonces {
		out.GroupPendingNonces[k] = struct{}{}
	}
	for k, v := range s.SignatureIdToMessage {
		out.SignatureIdToMessage[k] = v
	}
	return out
}
