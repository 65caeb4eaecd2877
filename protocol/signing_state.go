package protocol

// SigningEntry is one entry per in-flight digest, keyed by
// MessageDigest (spec.md §3). SigningBase carries fields common to
// every discriminant; the discriminant itself is one of the four
// variants below, following the same closed-sum-type pattern as
// RolloverState.
// SigningBase carries the fields common to every discriminant: the
// packet being attested and the group whose key will sign it. GroupId
// is recorded at entry-creation time (it's implied by the packet for
// an EpochRolloverPacket but not for an AccountTransactionPacket, whose
// servicing group is only known via the active epoch at request time).
type SigningBase struct {
	Packet  Packet
	GroupId GroupId
}

// SigningDiscriminant is the closed sum type of signing phases.
type SigningDiscriminant interface {
	signingDiscriminant()
}

// WaitingForRequest is the state before a Sign event has arrived: we
// know who the candidate signers are but haven't started a round.
type WaitingForRequest struct {
	Responsible *ParticipantId
	Signers     []ParticipantId
	Deadline    BlockNumber
}

func (WaitingForRequest) signingDiscriminant() {}

// CollectNonceCommitments waits for every signer to reveal their
// public nonce commitments.
type CollectNonceCommitments struct {
	SignatureId SignatureId
	LastSigner  *ParticipantId
	Deadline    BlockNumber
}

func (CollectNonceCommitments) signingDiscriminant() {}

// CollectSigningShares waits for every signer's signature share.
type CollectSigningShares struct {
	SignatureId SignatureId
	SharesFrom  []ParticipantId
	LastSigner  *ParticipantId
	Deadline    BlockNumber
}

func (CollectSigningShares) signingDiscriminant() {}

// WaitingForAttestation waits for the terminal on-chain action
// (StageEpoch or AttestTransaction) to be observed back from the
// chain.
type WaitingForAttestation struct {
	SignatureId SignatureId
	Responsible *ParticipantId
	Deadline    BlockNumber
}

func (WaitingForAttestation) signingDiscriminant() {}

// SigningEntry is the full per-digest signing state: the common base
// plus the current discriminant.
type SigningEntry struct {
	Base          SigningBase
	Discriminant  SigningDiscriminant
}
