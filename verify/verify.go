// Package verify is the verification engine (spec.md §3/§4.2, component
// C2): given a typed Packet, it checks the packet's semantic rules and
// reduces it to the canonical 32-byte digest the rest of the daemon
// signs and submits. It also remembers which digests it has already
// accepted, the same bounded-memory idiom the teacher's bridge
// subsystem uses for its handled-nonce/processed-tx bookkeeping.
package verify

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/shieldnet/validator/log"
	"github.com/shieldnet/validator/protocol"
)

var logger = log.NewModuleLogger(log.ModuleVerify)

// defaultAcceptedDigestCapacity bounds the accepted-digest memory so a
// long-running validator's process can't grow this cache unboundedly;
// chosen generously relative to any plausible in-flight signing count.
const defaultAcceptedDigestCapacity = 16384

// Engine verifies packets and remembers accepted digests.
type Engine struct {
	curve            protocol.Curve
	consensusAddr    protocol.Address
	coordinatorAddr  protocol.Address
	allowedSelectors map[[4]byte]bool
	accepted         *lru.Cache
}

// New returns an Engine backed by curve for any point/scalar checks a
// packet's semantic rules require. consensusAddr and coordinatorAddr
// are the fixed contract addresses every EpochRolloverPacket and
// AccountTransactionPacket must respectively carry (spec.md §4.2's
// "fixed-address domain" check). allowedSelectors is the
// supported-selector allowlist checked against an AccountTransaction's
// call data; nil/empty leaves call data unrestricted.
func New(curve protocol.Curve, consensusAddr, coordinatorAddr protocol.Address, allowedSelectors [][4]byte) *Engine {
	cache, err := lru.New(defaultAcceptedDigestCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultAcceptedDigestCapacity never is.
		panic(err)
	}
	selectors := make(map[[4]byte]bool, len(allowedSelectors))
	for _, s := range allowedSelectors {
		selectors[s] = true
	}
	return &Engine{
		curve:            curve,
		consensusAddr:    consensusAddr,
		coordinatorAddr:  coordinatorAddr,
		allowedSelectors: selectors,
		accepted:         cache,
	}
}

// Verify checks packet's semantic rules and returns its canonical
// digest. On success the digest is recorded as accepted.
func (e *Engine) Verify(packet protocol.Packet) (protocol.MessageDigest, error) {
	switch p := packet.(type) {
	case protocol.EpochRolloverPacket:
		return e.verifyEpochRollover(p)
	case protocol.AccountTransactionPacket:
		return e.verifyAccountTransaction(p)
	default:
		return protocol.MessageDigest{}, errUnknownPacketKind(packet.Kind())
	}
}

// IsVerified reports whether digest was previously accepted by Verify.
func (e *Engine) IsVerified(digest protocol.MessageDigest) bool {
	return e.accepted.Contains(digest)
}

func (e *Engine) verifyEpochRollover(p protocol.EpochRolloverPacket) (protocol.MessageDigest, error) {
	if p.ConsensusAddr != e.consensusAddr {
		return protocol.MessageDigest{}, errFailed("rollover packet's consensus address %s does not match the configured %s", p.ConsensusAddr, e.consensusAddr)
	}
	if p.ProposedEpoch <= p.ActiveEpoch {
		return protocol.MessageDigest{}, errFailed("proposed epoch %d does not advance active epoch %d", p.ProposedEpoch, p.ActiveEpoch)
	}
	if p.GroupKeyX == nil || p.GroupKeyY == nil {
		return protocol.MessageDigest{}, errFailed("rollover packet missing group public key")
	}
	groupKey := protocol.Point{X: p.GroupKeyX, Y: p.GroupKeyY}
	if e.curve != nil && !e.curve.IsOnCurve(groupKey) {
		return protocol.MessageDigest{}, errFailed("rollover packet's group public key is not a valid curve point")
	}

	digest := protocol.DigestEpochRolloverPacket(p)
	e.accepted.Add(digest, struct{}{})
	return digest, nil
}

func (e *Engine) verifyAccountTransaction(p protocol.AccountTransactionPacket) (protocol.MessageDigest, error) {
	if p.ChainAddr != e.coordinatorAddr {
		return protocol.MessageDigest{}, errFailed("account transaction packet's chain address %s does not match the configured coordinator %s", p.ChainAddr, e.coordinatorAddr)
	}
	tx := p.Transaction
	if tx.Value == nil {
		return protocol.MessageDigest{}, errFailed("account transaction missing value")
	}
	if tx.Value.Sign() < 0 {
		return protocol.MessageDigest{}, errFailed("account transaction has negative value")
	}
	if tx.Operation != protocol.OperationCall && tx.Operation != protocol.OperationDelegateCall {
		return protocol.MessageDigest{}, errFailed("account transaction has unknown operation %d", tx.Operation)
	}
	if len(e.allowedSelectors) > 0 && len(tx.Data) > 0 {
		if len(tx.Data) < 4 {
			return protocol.MessageDigest{}, errFailed("account transaction call data shorter than a selector")
		}
		var selector [4]byte
		copy(selector[:], tx.Data[:4])
		if !e.allowedSelectors[selector] {
			return protocol.MessageDigest{}, errFailed("account transaction selector %x is not supported", selector)
		}
	}

	digest := protocol.DigestAccountTransactionPacket(p)
	e.accepted.Add(digest, struct{}{})
	logger.Debug("verified account transaction packet", "digest", digest, "epoch", p.Epoch)
	return digest, nil
}
