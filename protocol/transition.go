package protocol

import "math/big"

// EventKind enumerates the upstream events the watcher decodes
// (spec.md §6).
type EventKind int

const (
	EventKeyGen EventKind = iota
	EventKeyGenCommitted
	EventKeyGenSecretShared
	EventKeyGenComplained
	EventKeyGenComplaintResponded
	EventKeyGenConfirmed
	EventPreprocess
	EventSign
	EventSignRevealedNonces
	EventSignShared
	EventSignCompleted
	EventEpochProposed
	EventEpochStaged
	EventTransactionProposed
	EventTransactionAttested
)

func (k EventKind) String() string {
	switch k {
	case EventKeyGen:
		return "KeyGen"
	case EventKeyGenCommitted:
		return "KeyGenCommitted"
	case EventKeyGenSecretShared:
		return "KeyGenSecretShared"
	case EventKeyGenComplained:
		return "KeyGenComplained"
	case EventKeyGenComplaintResponded:
		return "KeyGenComplaintResponded"
	case EventKeyGenConfirmed:
		return "KeyGenConfirmed"
	case EventPreprocess:
		return "Preprocess"
	case EventSign:
		return "Sign"
	case EventSignRevealedNonces:
		return "SignRevealedNonces"
	case EventSignShared:
		return "SignShared"
	case EventSignCompleted:
		return "SignCompleted"
	case EventEpochProposed:
		return "EpochProposed"
	case EventEpochStaged:
		return "EpochStaged"
	case EventTransactionProposed:
		return "TransactionProposed"
	case EventTransactionAttested:
		return "TransactionAttested"
	default:
		return "Unknown"
	}
}

// Fallible-eligible events may be dropped by the watcher on decode or
// query failure without aborting the follow/warp loop (spec.md §4.1).
// Which concrete kinds are fallible is a deployment choice, carried in
// params.WatcherConfig.FallibleEvents — this list is just every kind
// that *can* be marked fallible.

// EventArgs is implemented by each event kind's payload struct.
type EventArgs interface {
	Kind() EventKind
}

type KeyGenArgs struct {
	GroupId          GroupId
	ParticipantsRoot [32]byte
	Count            uint64
	Threshold        uint64
	Context          []byte
}

func (KeyGenArgs) Kind() EventKind { return EventKeyGen }

type KeyGenCommittedArgs struct {
	GroupId          GroupId
	Id               ParticipantId
	Commitment       Point
	ProofOfKnowledge SchnorrProof
	ParticipantProof MerkleProof
	Committed        bool
}

func (KeyGenCommittedArgs) Kind() EventKind { return EventKeyGenCommitted }

type KeyGenSecretSharedArgs struct {
	GroupId     GroupId
	Id          ParticipantId
	Share       []byte
	Commitments []Point
	Shared      bool
}

func (KeyGenSecretSharedArgs) Kind() EventKind { return EventKeyGenSecretShared }

type KeyGenComplainedArgs struct {
	GroupId  GroupId
	Accuser  ParticipantId
	Accused  ParticipantId
}

func (KeyGenComplainedArgs) Kind() EventKind { return EventKeyGenComplained }

type KeyGenComplaintRespondedArgs struct {
	GroupId        GroupId
	Accused        ParticipantId
	PlaintextShare []byte
	Valid          bool
}

func (KeyGenComplaintRespondedArgs) Kind() EventKind { return EventKeyGenComplaintResponded }

type KeyGenConfirmedArgs struct {
	GroupId   GroupId
	Id        ParticipantId
	Confirmed bool
}

func (KeyGenConfirmedArgs) Kind() EventKind { return EventKeyGenConfirmed }

type PreprocessArgs struct {
	GroupId    GroupId
	Id         ParticipantId
	Chunk      uint32
	Commitment [32]byte
}

func (PreprocessArgs) Kind() EventKind { return EventPreprocess }

type SignArgs struct {
	Initiator   Address
	GroupId     GroupId
	Message     MessageDigest
	SignatureId SignatureId
	Sequence    uint64
}

func (SignArgs) Kind() EventKind { return EventSign }

type SignRevealedNoncesArgs struct {
	SignatureId SignatureId
	Id          ParticipantId
	Nonces      NonceCommitmentPair
}

func (SignRevealedNoncesArgs) Kind() EventKind { return EventSignRevealedNonces }

// NonceCommitmentPair is the public (hiding, binding) commitment a
// signer reveals in round one (spec.md §4.4).
type NonceCommitmentPair struct {
	Hiding  Point
	Binding Point
}

type SignSharedArgs struct {
	SignatureId SignatureId
	Id          ParticipantId
	Z           Scalar
}

func (SignSharedArgs) Kind() EventKind { return EventSignShared }

type SignCompletedArgs struct {
	SignatureId SignatureId
	Signature   []byte
}

func (SignCompletedArgs) Kind() EventKind { return EventSignCompleted }

type EpochProposedArgs struct {
	GroupId       GroupId
	ProposedEpoch Epoch
	RolloverBlock BlockNumber
}

func (EpochProposedArgs) Kind() EventKind { return EventEpochProposed }

type EpochStagedArgs struct {
	ActiveEpoch   Epoch
	ProposedEpoch Epoch
	GroupId       GroupId
}

func (EpochStagedArgs) Kind() EventKind { return EventEpochStaged }

type TransactionProposedArgs struct {
	Message MessageDigest
	TxHash  [32]byte
	Epoch   Epoch
	Tx      Transaction
}

func (TransactionProposedArgs) Kind() EventKind { return EventTransactionProposed }

type TransactionAttestedArgs struct {
	Message MessageDigest
}

func (TransactionAttestedArgs) Kind() EventKind { return EventTransactionAttested }

// Transition is the closed sum type the watcher emits and the machine
// consumes, in strictly non-decreasing (block, logIndex) order
// (spec.md §4.1 "Contracts").
type Transition interface {
	Cursor() Cursor
	transition()
}

// BlockTick is emitted once per newly finalised block.
type BlockTick struct {
	Block BlockNumber
}

func (b BlockTick) Cursor() Cursor { return Cursor{Block: b.Block} }
func (BlockTick) transition()      {}

// Event is emitted once per accepted log.
type Event struct {
	Block    BlockNumber
	LogIndex LogIndex
	Args     EventArgs
}

func (e Event) Cursor() Cursor { return Cursor{Block: e.Block, LogIndex: e.LogIndex} }
func (Event) transition()      {}

// bigIntOrZero avoids nil *big.Int surprises when a packet field is
// left unset by a test fixture.
func bigIntOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
