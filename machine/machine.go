package machine

import (
	"errors"
	"fmt"

	"github.com/shieldnet/validator/keygen"
	"github.com/shieldnet/validator/log"
	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/signing"
	"github.com/shieldnet/validator/verify"
)

var logger = log.NewModuleLogger(log.ModuleMachine)

// Machine is the long-lived orchestrator for one validator process. It
// holds the live key-gen/signing Session working set (see the package
// doc comment) alongside the static config and collaborators, and
// exposes Apply as the single entry point the cooperative loop
// (spec.md §5) calls once per Transition.
type Machine struct {
	cfg    Config
	curve  protocol.Curve
	verify *verify.Engine

	keygenSessions  map[protocol.GroupId]*keygen.Session
	signingSessions map[protocol.SignatureId]*signing.Session
	signatureSigners map[protocol.SignatureId][]protocol.ParticipantId
	signatureGroup   map[protocol.SignatureId]protocol.GroupId
	nonceRevealsSeen map[protocol.SignatureId]map[protocol.ParticipantId]bool
	completedSignatures map[protocol.SignatureId][]byte
	txHashForDigest  map[protocol.MessageDigest][32]byte
	nonceTrees      map[protocol.GroupId]*protocol.NonceTree
	nextChunk       map[protocol.GroupId]uint64
}

// New returns a Machine ready to process transitions.
func New(cfg Config, curve protocol.Curve, verifyEngine *verify.Engine) *Machine {
	return &Machine{
		cfg:             cfg,
		curve:           curve,
		verify:          verifyEngine,
		keygenSessions:      make(map[protocol.GroupId]*keygen.Session),
		signingSessions:     make(map[protocol.SignatureId]*signing.Session),
		signatureSigners:    make(map[protocol.SignatureId][]protocol.ParticipantId),
		signatureGroup:      make(map[protocol.SignatureId]protocol.GroupId),
		nonceRevealsSeen:    make(map[protocol.SignatureId]map[protocol.ParticipantId]bool),
		completedSignatures: make(map[protocol.SignatureId][]byte),
		txHashForDigest:     make(map[protocol.MessageDigest][32]byte),
		nonceTrees:          make(map[protocol.GroupId]*protocol.NonceTree),
		nextChunk:           make(map[protocol.GroupId]uint64),
	}
}

// Apply computes the diff and actions for one transition against the
// supplied snapshot (spec.md §4.5). groups and signingEntries are
// read-only snapshots of the corresponding storage tables; consensus
// and rollover likewise. The caller applies the returned StateDiff in
// one storage write and hands the actions to the submitter afterwards,
// as a separate step. An event rejected with ErrUnexpectedRolloverState
// is logged and dropped: it yields an empty diff, no actions and no
// error.
func (m *Machine) Apply(
	consensus *protocol.MutableConsensusState,
	rollover protocol.RolloverState,
	groups map[protocol.GroupId]*protocol.Group,
	signingEntries map[protocol.MessageDigest]*protocol.SigningEntry,
	transition protocol.Transition,
) (*protocol.StateDiff, []protocol.Action, error) {
	switch t := transition.(type) {
	case protocol.BlockTick:
		return m.applyBlockTick(t.Block, consensus, rollover, groups, signingEntries)
	case protocol.Event:
		diff, actions, err := m.applyEvent(t, consensus, rollover, groups, signingEntries)
		if errors.Is(err, ErrUnexpectedRolloverState) {
			logger.Warn("dropping event in unexpected rollover state", "err", err)
			return protocol.NewStateDiff(), nil, nil
		}
		return diff, actions, err
	default:
		return nil, nil, fmt.Errorf("machine: unknown transition type %T", transition)
	}
}

// applyBlockTick runs the ordered sub-checks spec.md §4.5.1 describes:
// key-gen timeouts, signing timeouts, stale-rollover abort detection,
// genesis trigger, epoch-rollover trigger, then nonce replenishment.
func (m *Machine) applyBlockTick(
	block protocol.BlockNumber,
	consensus *protocol.MutableConsensusState,
	rollover protocol.RolloverState,
	groups map[protocol.GroupId]*protocol.Group,
	signingEntries map[protocol.MessageDigest]*protocol.SigningEntry,
) (*protocol.StateDiff, []protocol.Action, error) {
	diff := protocol.NewStateDiff()
	var actions []protocol.Action
	current := rollover

	step := func(d *protocol.StateDiff, a []protocol.Action, err error) error {
		if err != nil {
			return err
		}
		diff.Merge(d)
		actions = append(actions, a...)
		if d.Rollover != nil {
			current = d.Rollover
		}
		return nil
	}

	// (a) key-gen timeouts
	if err := step(m.keyGenTimeouts(block, current)); err != nil {
		return nil, nil, err
	}

	// (b) signing timeouts
	for digest, entry := range signingEntries {
		if err := step(m.signingTimeout(block, groups, digest, entry)); err != nil {
			return nil, nil, err
		}
	}

	// (c) stale-rollover abort detection: a rollover in flight for an
	// epoch that is no longer ahead of the active one is dead weight,
	// most often left over from a crash-restart resync.
	if err := step(m.abortStaleRollover(consensus, current)); err != nil {
		return nil, nil, err
	}

	// (d) genesis trigger
	if _, ok := current.(protocol.WaitingForGenesis); ok && consensus.GenesisGroupId == nil {
		if err := step(m.triggerKeyGen(block, 1)); err != nil {
			return nil, nil, err
		}
	}

	// (e) epoch-rollover trigger
	if _, ok := current.(protocol.WaitingForRollover); ok {
		due := (uint64(consensus.ActiveEpoch) + 1) * m.cfg.BlocksPerEpoch
		if uint64(block) >= due {
			if err := step(m.triggerKeyGen(block, consensus.ActiveEpoch+1)); err != nil {
				return nil, nil, err
			}
		}
	}

	// (f) nonce replenishment for every confirmed group.
	for id, g := range groups {
		if !g.Confirmed {
			continue
		}
		if err := step(m.replenishNonces(block, consensus, id)); err != nil {
			return nil, nil, err
		}
	}

	return diff, actions, nil
}

// applyEvent dispatches one on-chain event to its handler (spec.md
// §4.5.2), then re-runs the epoch-rollover check so an event that just
// quiesced the rollover sub-machine can immediately kick off the next
// one within the same transition.
func (m *Machine) applyEvent(
	e protocol.Event,
	consensus *protocol.MutableConsensusState,
	rollover protocol.RolloverState,
	groups map[protocol.GroupId]*protocol.Group,
	signingEntries map[protocol.MessageDigest]*protocol.SigningEntry,
) (*protocol.StateDiff, []protocol.Action, error) {
	var diff *protocol.StateDiff
	var actions []protocol.Action
	var err error

	switch args := e.Args.(type) {
	case protocol.KeyGenArgs:
		diff, actions, err = m.onKeyGen(args)
	case protocol.KeyGenCommittedArgs:
		diff, actions, err = m.onKeyGenCommitted(e.Block, rollover, args)
	case protocol.KeyGenSecretSharedArgs:
		diff, actions, err = m.onKeyGenSecretShared(e.Block, rollover, args)
	case protocol.KeyGenComplainedArgs:
		diff, actions, err = m.onKeyGenComplained(rollover, args)
	case protocol.KeyGenComplaintRespondedArgs:
		diff, actions, err = m.onKeyGenComplaintResponded(rollover, args)
	case protocol.KeyGenConfirmedArgs:
		diff, actions, err = m.onKeyGenConfirmed(e.Block, consensus, rollover, groups, args)
	case protocol.PreprocessArgs:
		diff, actions, err = m.onPreprocess(consensus, args)
	case protocol.SignArgs:
		diff, actions, err = m.onSign(e.Block, consensus, groups, signingEntries, args)
	case protocol.SignRevealedNoncesArgs:
		diff, actions, err = m.onSignRevealedNonces(e.Block, consensus, groups, signingEntries, args)
	case protocol.SignSharedArgs:
		diff, actions, err = m.onSignShared(e.Block, consensus, signingEntries, args)
	case protocol.SignCompletedArgs:
		diff, actions, err = m.onSignCompleted(consensus, signingEntries, args)
	case protocol.EpochProposedArgs:
		diff, actions, err = m.onEpochProposed(args)
	case protocol.EpochStagedArgs:
		diff, actions, err = m.onEpochStaged(consensus, signingEntries, args)
	case protocol.TransactionProposedArgs:
		diff, actions, err = m.onTransactionProposed(e.Block, consensus, groups, args)
	case protocol.TransactionAttestedArgs:
		diff, actions, err = m.onTransactionAttested(consensus, args)
	default:
		return nil, nil, fmt.Errorf("machine: unknown event kind %T", args)
	}
	if err != nil {
		return nil, nil, err
	}
	if diff == nil {
		diff = protocol.NewStateDiff()
	}

	// Re-check the epoch-rollover trigger: an EpochStaged event can
	// quiesce the rollover sub-machine to WaitingForRollover and the
	// very same block may already be due for the next one.
	current := rollover
	if diff.Rollover != nil {
		current = diff.Rollover
	}
	if _, ok := current.(protocol.WaitingForRollover); ok {
		due := (uint64(consensus.ActiveEpoch) + 1) * m.cfg.BlocksPerEpoch
		if uint64(e.Block) >= due {
			d, a, err := m.triggerKeyGen(e.Block, consensus.ActiveEpoch+1)
			if err != nil {
				return nil, nil, err
			}
			diff.Merge(d)
			actions = append(actions, a...)
		}
	}

	return diff, actions, nil
}

// contextFor returns the `context` bytes a group serving nextEpoch must
// derive its groupId from — the genesis epoch mixes in the deployment
// salt so two independent deployments sharing a consensus address
// never collide (see protocol.DeriveGenesisContext).
func (m *Machine) contextFor(nextEpoch protocol.Epoch) []byte {
	if nextEpoch == 1 {
		return protocol.DeriveGenesisContext(m.cfg.ConsensusAddress, m.cfg.GenesisSalt)
	}
	return protocol.DeriveContext(m.cfg.ConsensusAddress, nextEpoch)
}

// triggerKeyGen starts a fresh key-gen attempt for nextEpoch using the
// full configured participant set.
func (m *Machine) triggerKeyGen(block protocol.BlockNumber, nextEpoch protocol.Epoch) (*protocol.StateDiff, []protocol.Action, error) {
	return m.startKeyGenAttempt(block, nextEpoch, m.cfg.Participants)
}

func (m *Machine) startKeyGenAttempt(block protocol.BlockNumber, nextEpoch protocol.Epoch, participants []protocol.Participant) (*protocol.StateDiff, []protocol.Action, error) {
	context := m.contextFor(nextEpoch)
	groupId := protocol.DeriveGroupId(protocol.ParticipantsRoot(participants), uint64(len(participants)), uint64(m.cfg.Threshold), context)

	session, start, err := keygen.Setup(m.curve, groupId, m.cfg.Self, participants, m.cfg.Threshold, context)
	if err != nil {
		return nil, nil, fmt.Errorf("machine: start key-gen for epoch %d: %w", nextEpoch, err)
	}
	m.keygenSessions[groupId] = session

	diff := protocol.NewStateDiff()
	diff.Rollover = protocol.CollectingCommitments{
		GroupId:   groupId,
		NextEpoch: nextEpoch,
		Deadline:  block + protocol.BlockNumber(m.cfg.KeyGenTimeoutBlocks),
	}
	logger.Info("starting key-gen attempt", "groupId", groupId, "epoch", nextEpoch, "participants", len(participants))
	return diff, []protocol.Action{start}, nil
}

// abortStaleRollover drops an in-flight rollover whose target epoch has
// already been superseded by the consensus contract's active epoch,
// the situation a crash-restart resync can produce.
func (m *Machine) abortStaleRollover(consensus *protocol.MutableConsensusState, rollover protocol.RolloverState) (*protocol.StateDiff, []protocol.Action, error) {
	nextEpoch, ok := nextEpochOf(rollover)
	if !ok || nextEpoch > consensus.ActiveEpoch {
		return protocol.NewStateDiff(), nil, nil
	}
	diff := protocol.NewStateDiff()
	diff.Rollover = protocol.EpochSkipped{NextEpoch: nextEpoch}
	return diff, nil, nil
}

// replenishNonces draws and registers a fresh nonce tree for a
// confirmed group once its current one is missing, unlinked, or at or
// below the configured low-water mark of unburned leaves.
func (m *Machine) replenishNonces(block protocol.BlockNumber, consensus *protocol.MutableConsensusState, groupId protocol.GroupId) (*protocol.StateDiff, []protocol.Action, error) {
	if _, pending := consensus.GroupPendingNonces[groupId]; pending {
		return protocol.NewStateDiff(), nil, nil
	}
	tree := m.nonceTrees[groupId]
	if tree != nil && tree.IsLinked() && unburnedCount(tree) > m.cfg.NonceLowWaterMark {
		return protocol.NewStateDiff(), nil, nil
	}

	fresh, err := signing.CreateNonceTree(m.curve, groupId, m.cfg.NonceTreeSize)
	if err != nil {
		return nil, nil, fmt.Errorf("machine: replenish nonces for %s: %w", groupId, err)
	}
	m.nonceTrees[groupId] = fresh

	consensus = consensus.Clone()
	consensus.GroupPendingNonces[groupId] = struct{}{}

	diff := protocol.NewStateDiff()
	diff.Consensus = consensus
	action := protocol.RegisterNonceCommitments{GroupId: groupId, NonceTreeRoot: fresh.Root}
	return diff, []protocol.Action{action}, nil
}

func unburnedCount(tree *protocol.NonceTree) int {
	count := 0
	for i := 0; i < tree.Size(); i++ {
		if leaf, err := tree.Leaf(uint64(i)); err == nil && leaf != nil {
			count++
		}
	}
	return count
}

// nextEpochOf extracts the NextEpoch field from whichever RolloverState
// variant carries one, so callers that only care about "is a rollover
// targeting epoch N in flight" don't need to enumerate every variant.
func nextEpochOf(rollover protocol.RolloverState) (protocol.Epoch, bool) {
	switch r := rollover.(type) {
	case protocol.CollectingCommitments:
		return r.NextEpoch, true
	case protocol.CollectingShares:
		return r.NextEpoch, true
	case protocol.CollectingConfirmations:
		return r.NextEpoch, true
	case protocol.SignRollover:
		return r.NextEpoch, true
	default:
		return 0, false
	}
}

func participantsSubset(all []protocol.Participant, keep map[protocol.ParticipantId]bool) []protocol.Participant {
	out := make([]protocol.Participant, 0, len(keep))
	for _, p := range all {
		if keep[p.Id] {
			out = append(out, p)
		}
	}
	return protocol.SortParticipantsById(out)
}
