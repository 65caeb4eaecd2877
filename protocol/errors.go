package protocol

import "errors"

// Error taxonomy (spec.md §7). Each kind maps to one or more sentinel
// values here; callers wrap these with fmt.Errorf("...: %w", ...) to
// add context rather than inventing new error types per call site.
var (
	// Kind 3: chain reorg within window — not itself an error condition
	// for the machine (events are append-only by design) but the
	// watcher needs a value to signal it with.
	ErrReorgWithinWindow = errors.New("protocol: reorg within max depth, treated as uncle")
	ErrReorgTooDeep      = errors.New("protocol: reorg exceeds max depth, fatal")

	// Kind 4: out-of-order transition (programmer error in the watcher).
	ErrOutOfOrderTransition = errors.New("protocol: transition block/logIndex regressed")

	// Kind 5: semantic verification failure (packet fails a check).
	ErrVerificationFailed = errors.New("protocol: packet failed verification")

	// Kind 6: protocol violations.
	ErrNonceAlreadyBurned  = errors.New("protocol: nonce slot already burned")
	ErrDuplicateCommitment = errors.New("protocol: duplicate commitment from participant")
	ErrInvalidShare        = errors.New("protocol: peer share failed VSS check")
	ErrInsufficientSigners = errors.New("protocol: fewer signers than threshold")
	ErrSignerNotInGroup    = errors.New("protocol: signer not a group participant")
	ErrGroupCompromised    = errors.New("protocol: group aborted, accused participant proven bad")

	// Kind 8: fatal.
	ErrFatal = errors.New("protocol: fatal, operator intervention required")
)
