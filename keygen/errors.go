package keygen

import "errors"

var (
	// ErrMalformedShare signals a share blob that didn't decrypt/
	// authenticate — the decrypting participant's cue to raise a
	// KeyGenComplain action (spec.md §4.3 step 4).
	ErrMalformedShare = errors.New("keygen: share ciphertext malformed or failed authentication")

	// ErrUnknownParticipant is returned when a commitment or share
	// arrives for a participant id not recorded on the session.
	ErrUnknownParticipant = errors.New("keygen: participant id not in session")

	// ErrDuplicateCommitment mirrors protocol.ErrDuplicateCommitment for
	// the case where a second commitment arrives for a participant
	// already committed in this session.
	ErrDuplicateCommitment = errors.New("keygen: duplicate commitment for participant")

	// ErrNotReady is returned by Finalize when not every participant has
	// both committed and shared yet.
	ErrNotReady = errors.New("keygen: session not ready to finalize")

	// ErrComplaintUnresolved is returned by Finalize when a raised
	// complaint has not been answered with a response yet.
	ErrComplaintUnresolved = errors.New("keygen: outstanding complaint blocks finalize")
)
