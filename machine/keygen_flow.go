package machine

import (
	"fmt"

	"github.com/shieldnet/validator/keygen"
	"github.com/shieldnet/validator/protocol"
)

// onKeyGen handles the on-chain confirmation that a group's parameters
// are now canonically registered. Every participant independently and
// deterministically derives the same groupId from config plus the
// target epoch, so by the time this event lands each of them has
// already called keygen.Setup locally from the block-tick trigger (or
// a key-gen timeout restart); this handler exists for observability
// and as a defensive no-op when the two don't line up.
func (m *Machine) onKeyGen(args protocol.KeyGenArgs) (*protocol.StateDiff, []protocol.Action, error) {
	if _, ok := m.keygenSessions[args.GroupId]; !ok {
		logger.Warn("observed KeyGen for a group with no local session", "groupId", args.GroupId)
	}
	return protocol.NewStateDiff(), nil, nil
}

func (m *Machine) onKeyGenCommitted(block protocol.BlockNumber, rollover protocol.RolloverState, args protocol.KeyGenCommittedArgs) (*protocol.StateDiff, []protocol.Action, error) {
	if !args.Committed {
		return protocol.NewStateDiff(), nil, nil
	}
	if args.Id == m.cfg.Self {
		// Recorded directly by Setup already.
		return protocol.NewStateDiff(), nil, nil
	}

	session, ok := m.keygenSessions[args.GroupId]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGroup, args.GroupId)
	}
	if err := keygen.HandleCommitment(m.curve, session, args.Id, args.Commitment, args.ProofOfKnowledge, args.ParticipantProof); err != nil {
		return nil, nil, fmt.Errorf("machine: handle commitment from %d: %w", args.Id, err)
	}
	if !session.Committed() {
		return protocol.NewStateDiff(), nil, nil
	}

	r, ok := rollover.(protocol.CollectingCommitments)
	if !ok || r.GroupId != args.GroupId {
		return nil, nil, fmt.Errorf("%w: commitments complete for %s", ErrUnexpectedRolloverState, args.GroupId)
	}

	shares, err := keygen.CreateShares(m.curve, session)
	if err != nil {
		return nil, nil, fmt.Errorf("machine: create shares for %s: %w", args.GroupId, err)
	}

	diff := protocol.NewStateDiff()
	diff.Rollover = protocol.CollectingShares{
		GroupId:   args.GroupId,
		NextEpoch: r.NextEpoch,
		Deadline:  block + protocol.BlockNumber(m.cfg.KeyGenTimeoutBlocks),
	}
	action := protocol.KeyGenPublishShares{
		GroupId:           args.GroupId,
		VerificationShare: session.OwnCommitments[0],
		Commitments:       session.OwnCommitments,
		EncryptedShares:   shares,
	}
	return diff, []protocol.Action{action}, nil
}

func (m *Machine) onKeyGenSecretShared(block protocol.BlockNumber, rollover protocol.RolloverState, args protocol.KeyGenSecretSharedArgs) (*protocol.StateDiff, []protocol.Action, error) {
	if !args.Shared {
		return protocol.NewStateDiff(), nil, nil
	}
	session, ok := m.keygenSessions[args.GroupId]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGroup, args.GroupId)
	}

	r, ok := rollover.(protocol.CollectingShares)
	if !ok || r.GroupId != args.GroupId {
		return nil, nil, fmt.Errorf("%w: secret share for %s", ErrUnexpectedRolloverState, args.GroupId)
	}

	if args.Id != m.cfg.Self {
		if err := keygen.RecordPeerCommitments(m.curve, session, args.Id, args.Commitments); err != nil {
			return nil, nil, fmt.Errorf("machine: record commitments from %d: %w", args.Id, err)
		}
		if err := keygen.DecryptAndVerifyShare(m.curve, session, args.Id, args.Share); err != nil {
			complain := keygen.RaiseComplaint(session, args.Id)
			diff := protocol.NewStateDiff()
			diff.Rollover = protocol.CollectingShares{
				GroupId:           r.GroupId,
				NextEpoch:         r.NextEpoch,
				Deadline:          r.Deadline,
				Complaints:        appendUnique(r.Complaints, args.Id),
				MissingSharesFrom: r.MissingSharesFrom,
				LastParticipant:   &args.Id,
			}
			return diff, []protocol.Action{complain}, nil
		}
	}

	if !session.Shared() || len(session.Complaints) > 0 {
		diff := protocol.NewStateDiff()
		diff.Rollover = protocol.CollectingShares{
			GroupId:           r.GroupId,
			NextEpoch:         r.NextEpoch,
			Deadline:          r.Deadline,
			Complaints:        r.Complaints,
			MissingSharesFrom: r.MissingSharesFrom,
			LastParticipant:   &args.Id,
		}
		return diff, nil, nil
	}

	group, err := keygen.Finalize(m.curve, session)
	if err != nil {
		return nil, nil, fmt.Errorf("machine: finalize %s: %w", args.GroupId, err)
	}

	diff := protocol.NewStateDiff()
	diff.GroupUpserts = []*protocol.Group{group}
	diff.Rollover = protocol.CollectingConfirmations{
		GroupId:           r.GroupId,
		NextEpoch:         r.NextEpoch,
		Deadline:          block + protocol.BlockNumber(m.cfg.KeyGenTimeoutBlocks),
		ConfirmationsFrom: []protocol.ParticipantId{m.cfg.Self},
	}
	confirm := protocol.KeyGenConfirm{GroupId: args.GroupId}
	return diff, []protocol.Action{confirm}, nil
}

func (m *Machine) onKeyGenComplained(rollover protocol.RolloverState, args protocol.KeyGenComplainedArgs) (*protocol.StateDiff, []protocol.Action, error) {
	r, ok := rollover.(protocol.CollectingShares)
	if !ok || r.GroupId != args.GroupId {
		return nil, nil, fmt.Errorf("%w: complaint for %s", ErrUnexpectedRolloverState, args.GroupId)
	}

	diff := protocol.NewStateDiff()
	diff.Rollover = protocol.CollectingShares{
		GroupId:           r.GroupId,
		NextEpoch:         r.NextEpoch,
		Deadline:          r.Deadline,
		Complaints:        appendUnique(r.Complaints, args.Accused),
		MissingSharesFrom: r.MissingSharesFrom,
		LastParticipant:   r.LastParticipant,
	}

	if args.Accused != m.cfg.Self {
		return diff, nil, nil
	}

	session, ok := m.keygenSessions[args.GroupId]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGroup, args.GroupId)
	}
	share := protocol.EvaluatePolynomial(m.curve, session.Coeffs, uint64(args.Accuser))
	response := protocol.KeyGenComplaintResponse{
		GroupId:        args.GroupId,
		Plaintiff:      args.Accuser,
		PlaintextShare: protocol.EncodeScalar(share),
	}
	return diff, []protocol.Action{response}, nil
}

func (m *Machine) onKeyGenComplaintResponded(rollover protocol.RolloverState, args protocol.KeyGenComplaintRespondedArgs) (*protocol.StateDiff, []protocol.Action, error) {
	r, ok := rollover.(protocol.CollectingShares)
	if !ok || r.GroupId != args.GroupId {
		return nil, nil, fmt.Errorf("%w: complaint response for %s", ErrUnexpectedRolloverState, args.GroupId)
	}

	if !args.Valid {
		diff := protocol.NewStateDiff()
		diff.Rollover = protocol.EpochSkipped{NextEpoch: r.NextEpoch}
		delete(m.keygenSessions, args.GroupId)
		return diff, nil, nil
	}

	if session, ok := m.keygenSessions[args.GroupId]; ok {
		keygen.ResolveComplaint(session, args.Accused)
	}

	diff := protocol.NewStateDiff()
	diff.Rollover = protocol.CollectingShares{
		GroupId:           r.GroupId,
		NextEpoch:         r.NextEpoch,
		Deadline:          r.Deadline,
		Complaints:        removeId(r.Complaints, args.Accused),
		MissingSharesFrom: r.MissingSharesFrom,
		LastParticipant:   r.LastParticipant,
	}
	return diff, nil, nil
}

func (m *Machine) onKeyGenConfirmed(
	block protocol.BlockNumber,
	consensus *protocol.MutableConsensusState,
	rollover protocol.RolloverState,
	groups map[protocol.GroupId]*protocol.Group,
	args protocol.KeyGenConfirmedArgs,
) (*protocol.StateDiff, []protocol.Action, error) {
	if !args.Confirmed {
		return protocol.NewStateDiff(), nil, nil
	}
	r, ok := rollover.(protocol.CollectingConfirmations)
	if !ok || r.GroupId != args.GroupId {
		return nil, nil, fmt.Errorf("%w: confirmation for %s", ErrUnexpectedRolloverState, args.GroupId)
	}

	confirmations := appendUnique(r.ConfirmationsFrom, args.Id)
	group, ok := groups[args.GroupId]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGroup, args.GroupId)
	}
	if len(confirmations) < group.Count() {
		diff := protocol.NewStateDiff()
		diff.Rollover = protocol.CollectingConfirmations{
			GroupId:           r.GroupId,
			NextEpoch:         r.NextEpoch,
			Complaints:        r.Complaints,
			ComplaintDeadline: r.ComplaintDeadline,
			ResponseDeadline:  r.ResponseDeadline,
			Deadline:          r.Deadline,
			LastParticipant:   r.LastParticipant,
			MissingSharesFrom: r.MissingSharesFrom,
			ConfirmationsFrom: confirmations,
		}
		return diff, nil, nil
	}

	// Every participant confirmed: sign the rollover announcement.
	packet := protocol.EpochRolloverPacket{
		ActiveEpoch:   consensus.ActiveEpoch,
		ProposedEpoch: r.NextEpoch,
		RolloverBlock: block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks),
		GroupKeyX:     group.PublicKey.X,
		GroupKeyY:     group.PublicKey.Y,
		ConsensusAddr: m.cfg.ConsensusAddress,
	}
	digest, err := m.verify.Verify(packet)
	if err != nil {
		return nil, nil, fmt.Errorf("machine: verify rollover packet for %s: %w", args.GroupId, err)
	}

	signers := protocol.ParticipantIds(group.Participants)
	responsible := args.Id
	diff := protocol.NewStateDiff()
	diff.Rollover = protocol.SignRollover{GroupId: r.GroupId, NextEpoch: r.NextEpoch, Message: digest}
	diff.SigningUpserts[digest] = &protocol.SigningEntry{
		Base: protocol.SigningBase{Packet: packet, GroupId: r.GroupId},
		Discriminant: protocol.WaitingForRequest{
			Responsible: &responsible,
			Signers:     signers,
			Deadline:    block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks),
		},
	}
	if responsible != m.cfg.Self {
		return diff, nil, nil
	}
	action := protocol.SignRequest{GroupId: r.GroupId, Message: digest}
	return diff, []protocol.Action{action}, nil
}

// keyGenTimeouts applies spec.md §4.5.4: on a missed deadline, drop
// whoever hasn't responded and restart with the reduced set if it is
// still at least threshold-sized, otherwise abandon the epoch.
func (m *Machine) keyGenTimeouts(block protocol.BlockNumber, rollover protocol.RolloverState) (*protocol.StateDiff, []protocol.Action, error) {
	switch r := rollover.(type) {
	case protocol.CollectingCommitments:
		if block < r.Deadline {
			return protocol.NewStateDiff(), nil, nil
		}
		session := m.keygenSessions[r.GroupId]
		return m.restartOrAbandon(block, r.NextEpoch, respondedIds(session))
	case protocol.CollectingShares:
		if block < r.Deadline {
			return protocol.NewStateDiff(), nil, nil
		}
		session := m.keygenSessions[r.GroupId]
		return m.restartOrAbandon(block, r.NextEpoch, sharedIds(session))
	case protocol.CollectingConfirmations:
		if block < r.Deadline {
			return protocol.NewStateDiff(), nil, nil
		}
		return m.restartOrAbandon(block, r.NextEpoch, idSet(r.ConfirmationsFrom))
	default:
		return protocol.NewStateDiff(), nil, nil
	}
}

func (m *Machine) restartOrAbandon(block protocol.BlockNumber, nextEpoch protocol.Epoch, responded map[protocol.ParticipantId]bool) (*protocol.StateDiff, []protocol.Action, error) {
	reduced := participantsSubset(m.cfg.Participants, responded)
	if len(reduced) < m.cfg.Threshold {
		diff := protocol.NewStateDiff()
		diff.Rollover = protocol.EpochSkipped{NextEpoch: nextEpoch}
		return diff, nil, nil
	}
	return m.startKeyGenAttempt(block, nextEpoch, reduced)
}

func respondedIds(s *keygen.Session) map[protocol.ParticipantId]bool {
	out := make(map[protocol.ParticipantId]bool)
	if s == nil {
		return out
	}
	for id := range s.PeerCommitment0 {
		out[id] = true
	}
	return out
}

func sharedIds(s *keygen.Session) map[protocol.ParticipantId]bool {
	out := make(map[protocol.ParticipantId]bool)
	if s == nil {
		return out
	}
	for id := range s.DecryptedShares {
		out[id] = true
	}
	return out
}

func idSet(ids []protocol.ParticipantId) map[protocol.ParticipantId]bool {
	out := make(map[protocol.ParticipantId]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}

func appendUnique(ids []protocol.ParticipantId, id protocol.ParticipantId) []protocol.ParticipantId {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(append([]protocol.ParticipantId(nil), ids...), id)
}

func removeId(ids []protocol.ParticipantId, id protocol.ParticipantId) []protocol.ParticipantId {
	out := make([]protocol.ParticipantId, 0, len(ids))
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
