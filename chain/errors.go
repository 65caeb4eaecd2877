package chain

import (
	"errors"
	"strings"
)

// Sentinel errors this package classifies raw RPC errors into. The
// watcher and submitter branch on these rather than on transport-level
// error strings directly.
var (
	// ErrRateLimited covers HTTP 429 and the EIP-1474 "limit exceeded"
	// JSON-RPC error code, both transient and worth a backoff-and-retry
	// rather than a hard failure (spec.md §7 kind 1).
	ErrRateLimited = errors.New("chain: rate limited")

	// ErrNonceTooLow covers both a bare "nonce too low" RPC rejection
	// and the same condition wrapped inside a transaction-execution
	// error, which some clients return instead of the bare form
	// (spec.md §4.6 scenario 5).
	ErrNonceTooLow = errors.New("chain: nonce too low")
)

// eip1474LimitExceeded is the standard JSON-RPC error code for
// "request exceeds defined limit" (EIP-1474 §"Error Codes").
const eip1474LimitExceeded = -32005

// rpcCoder is implemented by go-ethereum's rpc.Error and similar
// wrapped JSON-RPC error types.
type rpcCoder interface {
	ErrorCode() int
}

// ClassifyError maps a raw error returned from a Client call into one
// of this package's sentinels, or returns it unchanged if it doesn't
// match a known transient/protocol condition. Wrap with
// fmt.Errorf("...: %w", err) at call sites as usual; callers should
// check with errors.Is against ErrRateLimited/ErrNonceTooLow.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	var coder rpcCoder
	if errors.As(err, &coder) && coder.ErrorCode() == eip1474LimitExceeded {
		return ErrRateLimited
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "rate limit"):
		return ErrRateLimited
	case strings.Contains(msg, "nonce too low"):
		// Covers both the bare rejection and a transaction-execution
		// error that embeds the same phrase (spec.md §7 kind 6).
		return ErrNonceTooLow
	default:
		return err
	}
}
