package protocol

// RolloverState is the closed sum type driving key-gen rollover
// (spec.md §3). Each concrete type below is a variant; the unexported
// rolloverState() marker method keeps the set closed to this package,
// so machine/ can type-switch over every case and let the compiler
// flag a missing one (via a default branch that panics on an unknown
// concrete type, never silently no-ops).
type RolloverState interface {
	rolloverState()
}

// WaitingForGenesis is the initial state before any epoch exists.
type WaitingForGenesis struct{}

func (WaitingForGenesis) rolloverState() {}

// EpochSkipped records that NextEpoch's key-gen was abandoned (timed
// out below threshold, or a complaint proved a participant bad) and no
// rollover is currently in flight.
type EpochSkipped struct {
	NextEpoch Epoch
}

func (EpochSkipped) rolloverState() {}

// CollectingCommitments waits for every participant of GroupId to
// publish a key-gen commitment.
type CollectingCommitments struct {
	GroupId   GroupId
	NextEpoch Epoch
	Deadline  BlockNumber
}

func (CollectingCommitments) rolloverState() {}

// CollectingShares waits for every participant to publish their
// encrypted shares, tracking complaints and who's missing.
type CollectingShares struct {
	GroupId           GroupId
	NextEpoch         Epoch
	Deadline          BlockNumber
	Complaints        []ParticipantId
	MissingSharesFrom []ParticipantId
	LastParticipant   *ParticipantId
}

func (CollectingShares) rolloverState() {}

// CollectingConfirmations waits for confirmations after shares settle,
// tracking the full complaint lifecycle (accusation, response
// deadline, and the overall phase deadline).
type CollectingConfirmations struct {
	GroupId            GroupId
	NextEpoch          Epoch
	Complaints         []ParticipantId
	ComplaintDeadline  BlockNumber
	ResponseDeadline   BlockNumber
	Deadline           BlockNumber
	LastParticipant    *ParticipantId
	MissingSharesFrom  []ParticipantId
	ConfirmationsFrom  []ParticipantId
}

func (CollectingConfirmations) rolloverState() {}

// SignRollover holds the message being signed for the epoch-rollover
// announcement itself.
type SignRollover struct {
	GroupId   GroupId
	NextEpoch Epoch
	Message   MessageDigest
}

func (SignRollover) rolloverState() {}

// EpochStaged records that the rollover signature completed and the
// StageEpoch action has been (or will be) emitted; the machine returns
// to WaitingForGenesis-equivalent quiescence once EpochStaged lands
// on-chain (spec.md §4.5.2, event EpochStaged).
type EpochStaged struct {
	NextEpoch Epoch
}

func (EpochStaged) rolloverState() {}

// WaitingForRollover is the quiescent state between epochs, after a
// previous rollover has staged and before the next one's key-gen
// starts (spec.md §4.5.2 names this as the target of EpochStaged).
type WaitingForRollover struct{}

func (WaitingForRollover) rolloverState() {}
