package signing

import "errors"

var (
	// ErrNotReady is returned when a step is attempted before its
	// prerequisite round has finished.
	ErrNotReady = errors.New("signing: round not complete")

	// ErrSelfVerificationFailed signals that this validator's own
	// computed signature share failed its self-check — a programmer or
	// storage-corruption bug, not a peer misbehaving (spec.md §4.4
	// "Self-verify").
	ErrSelfVerificationFailed = errors.New("signing: signature share failed self-verification")
)
