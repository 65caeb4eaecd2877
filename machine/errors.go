package machine

import "errors"

var (
	// ErrUnknownGroup is returned when a transition references a
	// GroupId the machine has no record of.
	ErrUnknownGroup = errors.New("machine: unknown group")

	// ErrUnknownSigningEntry is returned when a transition references a
	// MessageDigest with no in-flight signing entry.
	ErrUnknownSigningEntry = errors.New("machine: unknown signing entry")

	// ErrUnexpectedRolloverState is returned when an event arrives for a
	// rollover phase that cannot currently accept it (e.g. a
	// KeyGenCommitted event while the rollover sub-machine is
	// WaitingForRollover). Treated as a dropped, logged event rather
	// than fatal, since a reorg'd-away duplicate or a stale peer replay
	// can legitimately produce one.
	ErrUnexpectedRolloverState = errors.New("machine: event does not match current rollover state")

	// ErrUnexpectedSigningState is the signing-entry analogue of
	// ErrUnexpectedRolloverState.
	ErrUnexpectedSigningState = errors.New("machine: event does not match current signing state")
)
