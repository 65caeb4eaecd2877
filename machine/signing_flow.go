package machine

import (
	"fmt"

	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/signing"
)

// onPreprocess links this validator's own freshly-registered nonce tree
// to the (groupId, chunk) pair the coordinator contract assigned it
// (spec.md §4.4 "linkNonceTree"). Peer Preprocess events are not
// tracked locally — only the originating validator needs its own
// chunk to compute future Sign offsets.
func (m *Machine) onPreprocess(consensus *protocol.MutableConsensusState, args protocol.PreprocessArgs) (*protocol.StateDiff, []protocol.Action, error) {
	if args.Id != m.cfg.Self {
		return protocol.NewStateDiff(), nil, nil
	}
	tree := m.nonceTrees[args.GroupId]
	if tree == nil || tree.IsLinked() || tree.Root != args.Commitment {
		return protocol.NewStateDiff(), nil, nil
	}
	chunk := uint64(args.Chunk)
	tree.Chunk = &chunk

	next := consensus.Clone()
	delete(next.GroupPendingNonces, args.GroupId)

	diff := protocol.NewStateDiff()
	diff.Consensus = next
	return diff, nil, nil
}

// onSign opens the nonce-commitment round for a freshly requested
// signature (spec.md §4.5.2, event Sign): records the signer set and,
// if this validator is one of them, reveals its own nonce commitments
// from its linked tree.
func (m *Machine) onSign(
	block protocol.BlockNumber,
	consensus *protocol.MutableConsensusState,
	groups map[protocol.GroupId]*protocol.Group,
	signingEntries map[protocol.MessageDigest]*protocol.SigningEntry,
	args protocol.SignArgs,
) (*protocol.StateDiff, []protocol.Action, error) {
	entry, ok := signingEntries[args.Message]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSigningEntry, args.Message)
	}
	wfr, ok := entry.Discriminant.(protocol.WaitingForRequest)
	if !ok {
		return nil, nil, fmt.Errorf("%w: Sign for %s", ErrUnexpectedSigningState, args.Message)
	}
	group, ok := groups[args.GroupId]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGroup, args.GroupId)
	}

	m.signatureSigners[args.SignatureId] = wfr.Signers
	m.signatureGroup[args.SignatureId] = args.GroupId

	nextConsensus := consensus.Clone()
	nextConsensus.SignatureIdToMessage[args.SignatureId] = args.Message

	diff := protocol.NewStateDiff()
	diff.Consensus = nextConsensus
	diff.SigningUpserts[args.Message] = &protocol.SigningEntry{
		Base:         entry.Base,
		Discriminant: protocol.CollectNonceCommitments{SignatureId: args.SignatureId, Deadline: block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks)},
	}

	var actions []protocol.Action
	if !containsId(wfr.Signers, m.cfg.Self) {
		return diff, actions, nil
	}

	tree := m.nonceTrees[args.GroupId]
	if tree == nil {
		return nil, nil, fmt.Errorf("machine: no local nonce tree for group %s", args.GroupId)
	}
	_, offset := protocol.DecodeSequence(args.Sequence)

	session, pair, proof, err := signing.CreateOwnNonceCommitments(
		m.curve, tree, args.SignatureId, args.GroupId, args.Message, args.Sequence,
		wfr.Signers, group.Participants, group.Threshold, m.cfg.Self, offset,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("machine: create own nonce commitments: %w", err)
	}
	m.signingSessions[args.SignatureId] = session
	if m.nonceRevealsSeen[args.SignatureId] == nil {
		m.nonceRevealsSeen[args.SignatureId] = make(map[protocol.ParticipantId]bool)
	}
	m.nonceRevealsSeen[args.SignatureId][m.cfg.Self] = true

	actions = append(actions, protocol.RevealNonceCommitments{
		SignatureId: args.SignatureId,
		Nonces:      pair,
		Proof:       proof,
	})
	return diff, actions, nil
}

// onSignRevealedNonces tracks each signer's nonce reveal and, once
// every signer in the round has contributed, moves to the
// signature-share round and (self included) computes and publishes
// this validator's own share (spec.md §4.4 "Create signature share").
func (m *Machine) onSignRevealedNonces(
	block protocol.BlockNumber,
	consensus *protocol.MutableConsensusState,
	groups map[protocol.GroupId]*protocol.Group,
	signingEntries map[protocol.MessageDigest]*protocol.SigningEntry,
	args protocol.SignRevealedNoncesArgs,
) (*protocol.StateDiff, []protocol.Action, error) {
	signers, ok := m.signatureSigners[args.SignatureId]
	if !ok {
		return nil, nil, fmt.Errorf("machine: signer set unknown for signature %s", args.SignatureId)
	}
	if m.nonceRevealsSeen[args.SignatureId] == nil {
		m.nonceRevealsSeen[args.SignatureId] = make(map[protocol.ParticipantId]bool)
	}
	m.nonceRevealsSeen[args.SignatureId][args.Id] = true

	if session, ok := m.signingSessions[args.SignatureId]; ok && args.Id != m.cfg.Self {
		signing.HandleNonceCommitments(session, args.Id, args.Nonces)
	}

	if len(m.nonceRevealsSeen[args.SignatureId]) < len(signers) {
		return protocol.NewStateDiff(), nil, nil
	}

	digest, ok := consensus.SignatureIdToMessage[args.SignatureId]
	if !ok {
		return nil, nil, fmt.Errorf("machine: no message digest recorded for signature %s", args.SignatureId)
	}
	entry, ok := signingEntries[digest]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSigningEntry, digest)
	}

	diff := protocol.NewStateDiff()
	diff.SigningUpserts[digest] = &protocol.SigningEntry{
		Base:         entry.Base,
		Discriminant: protocol.CollectSigningShares{SignatureId: args.SignatureId, Deadline: block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks)},
	}

	var actions []protocol.Action
	if session, ok := m.signingSessions[args.SignatureId]; ok {
		groupId := m.signatureGroup[args.SignatureId]
		group := groups[groupId]
		tree := m.nonceTrees[groupId]
		if group == nil || tree == nil {
			return nil, nil, fmt.Errorf("machine: missing group/tree for signature %s", args.SignatureId)
		}
		share, err := signing.CreateSignatureShare(m.curve, tree, session, group.PublicKey, m.cfg.Self, group.SigningShare, group.VerificationShare)
		if err != nil {
			return nil, nil, fmt.Errorf("machine: create signature share: %w", err)
		}
		callback, err := m.callbackContextFor(entry, digest)
		if err != nil {
			return nil, nil, err
		}
		share.CallbackContext = callback
		actions = append(actions, *share)
	}
	return diff, actions, nil
}

// onSignShared tracks which signers have published their signature
// share on-chain. The shares themselves are aggregated by the
// coordinator contract, not locally — once every signer has
// contributed, this validator simply waits for the resulting
// SignCompleted event and moves the round to attestation.
func (m *Machine) onSignShared(
	block protocol.BlockNumber,
	consensus *protocol.MutableConsensusState,
	signingEntries map[protocol.MessageDigest]*protocol.SigningEntry,
	args protocol.SignSharedArgs,
) (*protocol.StateDiff, []protocol.Action, error) {
	digest, ok := consensus.SignatureIdToMessage[args.SignatureId]
	if !ok {
		return nil, nil, fmt.Errorf("machine: no message digest recorded for signature %s", args.SignatureId)
	}
	entry, ok := signingEntries[digest]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSigningEntry, digest)
	}
	d, ok := entry.Discriminant.(protocol.CollectSigningShares)
	if !ok {
		return nil, nil, fmt.Errorf("%w: SignShared for %s", ErrUnexpectedSigningState, digest)
	}

	sharesFrom := appendUnique(d.SharesFrom, args.Id)
	signers := m.signatureSigners[args.SignatureId]

	diff := protocol.NewStateDiff()
	if len(sharesFrom) < len(signers) {
		diff.SigningUpserts[digest] = &protocol.SigningEntry{
			Base: entry.Base,
			Discriminant: protocol.CollectSigningShares{
				SignatureId: d.SignatureId,
				SharesFrom:  sharesFrom,
				LastSigner:  &args.Id,
				Deadline:    d.Deadline,
			},
		}
		return diff, nil, nil
	}

	m.signatureSigners[args.SignatureId] = sharesFrom
	lastSigner := args.Id
	diff.SigningUpserts[digest] = &protocol.SigningEntry{
		Base: entry.Base,
		Discriminant: protocol.WaitingForAttestation{
			SignatureId: d.SignatureId,
			Responsible: &lastSigner,
			Deadline:    block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks),
		},
	}
	return diff, nil, nil
}

// onSignCompleted records the coordinator contract's assembled
// signature and, if this validator is the currently-responsible party,
// submits the terminal attestation action (spec.md §4.5.2, event
// SignCompleted).
func (m *Machine) onSignCompleted(
	consensus *protocol.MutableConsensusState,
	signingEntries map[protocol.MessageDigest]*protocol.SigningEntry,
	args protocol.SignCompletedArgs,
) (*protocol.StateDiff, []protocol.Action, error) {
	digest, ok := consensus.SignatureIdToMessage[args.SignatureId]
	if !ok {
		return nil, nil, fmt.Errorf("machine: no message digest recorded for signature %s", args.SignatureId)
	}
	entry, ok := signingEntries[digest]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSigningEntry, digest)
	}
	wfa, ok := entry.Discriminant.(protocol.WaitingForAttestation)
	if !ok {
		return nil, nil, fmt.Errorf("%w: SignCompleted for %s", ErrUnexpectedSigningState, digest)
	}

	m.completedSignatures[args.SignatureId] = args.Signature

	if wfa.Responsible == nil || *wfa.Responsible != m.cfg.Self {
		return protocol.NewStateDiff(), nil, nil
	}
	action, err := m.buildAttestationAction(entry, digest, args.SignatureId)
	if err != nil {
		return nil, nil, err
	}
	return protocol.NewStateDiff(), []protocol.Action{action}, nil
}

// callbackContextFor computes the bytes a published signature share
// carries so the consensus contract can route the assembled signature
// to the correct terminal call (spec.md §4.4, glossary "Callback
// context") — the same routing information buildAttestationAction uses
// to construct that call once the signature actually completes.
func (m *Machine) callbackContextFor(entry *protocol.SigningEntry, digest protocol.MessageDigest) ([]byte, error) {
	switch p := entry.Base.Packet.(type) {
	case protocol.EpochRolloverPacket:
		return protocol.EncodeStageEpochCallbackContext(p.ProposedEpoch, p.RolloverBlock, entry.Base.GroupId), nil
	case protocol.AccountTransactionPacket:
		txHash, ok := m.txHashForDigest[digest]
		if !ok {
			return nil, fmt.Errorf("machine: no transaction hash recorded for %s", digest)
		}
		return protocol.EncodeCallbackContext(p.Epoch, txHash), nil
	default:
		return nil, fmt.Errorf("machine: unknown packet kind %d for signing entry %s", entry.Base.Packet.Kind(), digest)
	}
}

// buildAttestationAction builds the terminal action that closes out
// one signing round, branching on the packet's domain (spec.md §3: a
// packet's Domain is either the watched chain or the consensus
// contract, and each gets its own terminal call).
func (m *Machine) buildAttestationAction(entry *protocol.SigningEntry, digest protocol.MessageDigest, sigId protocol.SignatureId) (protocol.Action, error) {
	switch p := entry.Base.Packet.(type) {
	case protocol.EpochRolloverPacket:
		return protocol.StageEpoch{
			ProposedEpoch: p.ProposedEpoch,
			RolloverBlock: p.RolloverBlock,
			GroupId:       entry.Base.GroupId,
			SignatureId:   sigId,
		}, nil
	case protocol.AccountTransactionPacket:
		txHash, ok := m.txHashForDigest[digest]
		if !ok {
			return nil, fmt.Errorf("machine: no transaction hash recorded for %s", digest)
		}
		return protocol.AttestTransaction{
			Epoch:       p.Epoch,
			TxHash:      txHash,
			SignatureId: sigId,
		}, nil
	default:
		return nil, fmt.Errorf("machine: unknown packet kind %d for signing entry %s", entry.Base.Packet.Kind(), digest)
	}
}

// onEpochProposed is the coordinator contract's acknowledgement that a
// rollover request is pending; this daemon already tracks the same
// progression through SignRollover/WaitingForRequest, so there is
// nothing further to do beyond observability.
func (m *Machine) onEpochProposed(args protocol.EpochProposedArgs) (*protocol.StateDiff, []protocol.Action, error) {
	logger.Debug("epoch rollover proposed on-chain", "groupId", args.GroupId, "proposedEpoch", args.ProposedEpoch)
	return protocol.NewStateDiff(), nil, nil
}

// onEpochStaged advances the mirrored consensus state once a rollover
// has actually taken effect (spec.md §4.5.2, event EpochStaged) and
// quiesces the rollover sub-machine back to WaitingForRollover.
func (m *Machine) onEpochStaged(
	consensus *protocol.MutableConsensusState,
	signingEntries map[protocol.MessageDigest]*protocol.SigningEntry,
	args protocol.EpochStagedArgs,
) (*protocol.StateDiff, []protocol.Action, error) {
	next := consensus.Clone()
	next.ActiveEpoch = args.ProposedEpoch
	next.EpochGroups[args.ProposedEpoch] = protocol.EpochGroup{GroupId: args.GroupId, ParticipantId: m.cfg.Self}
	if next.GenesisGroupId == nil {
		next.GenesisGroupId = &args.GroupId
	}

	diff := protocol.NewStateDiff()
	diff.Consensus = next
	diff.Rollover = protocol.WaitingForRollover{}

	for digest, entry := range signingEntries {
		if p, ok := entry.Base.Packet.(protocol.EpochRolloverPacket); ok && p.ProposedEpoch == args.ProposedEpoch {
			diff.SigningDeletes = append(diff.SigningDeletes, digest)
			break
		}
	}
	return diff, nil, nil
}

// onTransactionProposed opens a fresh signing round for one account
// transaction under the epoch's currently serving group (spec.md
// §4.5.2, event TransactionProposed).
func (m *Machine) onTransactionProposed(
	block protocol.BlockNumber,
	consensus *protocol.MutableConsensusState,
	groups map[protocol.GroupId]*protocol.Group,
	args protocol.TransactionProposedArgs,
) (*protocol.StateDiff, []protocol.Action, error) {
	eg, ok := consensus.EpochGroups[args.Epoch]
	if !ok {
		return nil, nil, fmt.Errorf("machine: no group servicing epoch %d", args.Epoch)
	}
	group, ok := groups[eg.GroupId]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownGroup, eg.GroupId)
	}

	packet := protocol.AccountTransactionPacket{
		Epoch:       args.Epoch,
		Transaction: args.Tx,
		ChainAddr:   m.cfg.CoordinatorAddress,
	}
	digest, err := m.verify.Verify(packet)
	if err != nil {
		return nil, nil, fmt.Errorf("machine: verify transaction packet: %w", err)
	}
	if digest != args.Message {
		return nil, nil, fmt.Errorf("machine: transaction digest mismatch for epoch %d", args.Epoch)
	}
	m.txHashForDigest[digest] = args.TxHash

	signers := protocol.ParticipantIds(group.Participants)
	diff := protocol.NewStateDiff()
	diff.SigningUpserts[digest] = &protocol.SigningEntry{
		Base: protocol.SigningBase{Packet: packet, GroupId: eg.GroupId},
		Discriminant: protocol.WaitingForRequest{
			Responsible: nil,
			Signers:     signers,
			Deadline:    block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks),
		},
	}
	// No action here: a signing round only opens in response to the
	// Sign event that follows, not the proposal itself.
	return diff, nil, nil
}

// onTransactionAttested closes out a completed transaction attestation,
// dropping its signing entry and any local bookkeeping kept for it.
func (m *Machine) onTransactionAttested(
	consensus *protocol.MutableConsensusState,
	args protocol.TransactionAttestedArgs,
) (*protocol.StateDiff, []protocol.Action, error) {
	diff := protocol.NewStateDiff()
	diff.SigningDeletes = []protocol.MessageDigest{args.Message}
	delete(m.txHashForDigest, args.Message)

	for sigId, digest := range consensus.SignatureIdToMessage {
		if digest == args.Message {
			delete(m.signingSessions, sigId)
			delete(m.signatureSigners, sigId)
			delete(m.signatureGroup, sigId)
			delete(m.nonceRevealsSeen, sigId)
			delete(m.completedSignatures, sigId)
			break
		}
	}
	return diff, nil, nil
}

// signingTimeout applies the responsibility rule (spec.md §4.5.3): on a
// missed deadline, drop the currently-responsible (or, for the
// nonce/share collection rounds, the currently non-responding) signers
// and either continue with the reduced set or abandon the round if it
// falls below the group's threshold.
func (m *Machine) signingTimeout(
	block protocol.BlockNumber,
	groups map[protocol.GroupId]*protocol.Group,
	digest protocol.MessageDigest,
	entry *protocol.SigningEntry,
) (*protocol.StateDiff, []protocol.Action, error) {
	switch d := entry.Discriminant.(type) {
	case protocol.WaitingForRequest:
		if block < d.Deadline {
			return protocol.NewStateDiff(), nil, nil
		}
		remaining := d.Signers
		if d.Responsible != nil {
			remaining = removeId(d.Signers, *d.Responsible)
		}
		if len(remaining) == 0 {
			diff := protocol.NewStateDiff()
			diff.SigningDeletes = []protocol.MessageDigest{digest}
			return diff, nil, nil
		}
		diff := protocol.NewStateDiff()
		diff.SigningUpserts[digest] = &protocol.SigningEntry{
			Base: entry.Base,
			Discriminant: protocol.WaitingForRequest{
				Responsible: nil,
				Signers:     remaining,
				Deadline:    block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks),
			},
		}
		// responsible is undefined again: every remaining signer retries.
		return diff, []protocol.Action{protocol.SignRequest{GroupId: entry.Base.GroupId, Message: digest}}, nil

	case protocol.CollectNonceCommitments:
		if block < d.Deadline {
			return protocol.NewStateDiff(), nil, nil
		}
		signers := m.signatureSigners[d.SignatureId]
		responded := m.nonceRevealsSeen[d.SignatureId]
		kept := keepResponded(signers, responded)
		group := groups[entry.Base.GroupId]
		if group == nil || len(kept) < group.Threshold {
			diff := protocol.NewStateDiff()
			diff.SigningDeletes = []protocol.MessageDigest{digest}
			return diff, nil, nil
		}
		m.signatureSigners[d.SignatureId] = kept
		diff := protocol.NewStateDiff()
		diff.SigningUpserts[digest] = &protocol.SigningEntry{
			Base:         entry.Base,
			Discriminant: protocol.CollectNonceCommitments{SignatureId: d.SignatureId, Deadline: block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks)},
		}
		return diff, nil, nil

	case protocol.CollectSigningShares:
		if block < d.Deadline {
			return protocol.NewStateDiff(), nil, nil
		}
		group := groups[entry.Base.GroupId]
		if group == nil || len(d.SharesFrom) < group.Threshold {
			diff := protocol.NewStateDiff()
			diff.SigningDeletes = []protocol.MessageDigest{digest}
			return diff, nil, nil
		}
		m.signatureSigners[d.SignatureId] = d.SharesFrom
		diff := protocol.NewStateDiff()
		diff.SigningUpserts[digest] = &protocol.SigningEntry{
			Base: entry.Base,
			Discriminant: protocol.CollectSigningShares{
				SignatureId: d.SignatureId,
				SharesFrom:  d.SharesFrom,
				Deadline:    block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks),
			},
		}
		return diff, nil, nil

	case protocol.WaitingForAttestation:
		if block < d.Deadline {
			return protocol.NewStateDiff(), nil, nil
		}
		remaining := m.signatureSigners[d.SignatureId]
		if d.Responsible != nil {
			remaining = removeId(remaining, *d.Responsible)
		}
		if len(remaining) == 0 {
			diff := protocol.NewStateDiff()
			diff.SigningDeletes = []protocol.MessageDigest{digest}
			return diff, nil, nil
		}
		m.signatureSigners[d.SignatureId] = remaining
		diff := protocol.NewStateDiff()
		diff.SigningUpserts[digest] = &protocol.SigningEntry{
			Base: entry.Base,
			Discriminant: protocol.WaitingForAttestation{
				SignatureId: d.SignatureId,
				Responsible: nil,
				Deadline:    block + protocol.BlockNumber(m.cfg.SigningTimeoutBlocks),
			},
		}
		// responsible is undefined again: every remaining signer retries.
		if _, ok := m.completedSignatures[d.SignatureId]; !ok {
			return diff, nil, nil
		}
		action, err := m.buildAttestationAction(entry, digest, d.SignatureId)
		if err != nil {
			return nil, nil, err
		}
		return diff, []protocol.Action{action}, nil

	default:
		return protocol.NewStateDiff(), nil, nil
	}
}

func containsId(ids []protocol.ParticipantId, id protocol.ParticipantId) bool {
	for _, existing := range ids {
		if existing == id {
			return true
		}
	}
	return false
}

func keepResponded(ids []protocol.ParticipantId, responded map[protocol.ParticipantId]bool) []protocol.ParticipantId {
	out := make([]protocol.ParticipantId, 0, len(ids))
	for _, id := range ids {
		if responded[id] {
			out = append(out, id)
		}
	}
	return out
}

