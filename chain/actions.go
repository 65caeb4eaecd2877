package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/shieldnet/validator/protocol"
)

// UnsignedTx is the raw, signable envelope an ActionEncoder reduces one
// protocol.Action to (spec.md §6 expansion: "ActionEncoder interface
// translating a protocol.Action into a raw, signable transaction").
// The submitter fills in Nonce and the fee fields itself, since those
// are its own allocation responsibility, not the encoder's.
type UnsignedTx struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

// ActionEncoder translates one protocol.Action into an UnsignedTx bound
// for to (the coordinator or consensus contract address, selected by
// the action's Target()). Per-action encoding is opaque to the core
// protocol (spec.md §6); a real deployment supplies one backed by the
// coordinator/consensus contract ABI.
type ActionEncoder interface {
	Encode(action protocol.Action, to common.Address) (UnsignedTx, error)
}

// ABIActionEncoder packs actions against a parsed contract ABI, the
// go-ethereum idiom for building calldata (abi.Pack), mirroring
// ABIDecoder's role on the inbound side.
type ABIActionEncoder struct {
	CoordinatorABI abi.ABI
	ConsensusABI   abi.ABI
}

// Encode is deliberately unimplemented: packing one action's fields
// into calldata depends on the coordinator/consensus contract's actual
// method signatures, which are deployment configuration, not protocol.
// Wire a concrete encoder (or a hand-rolled one matching a specific
// deployed ABI) at startup.
func (e *ABIActionEncoder) Encode(action protocol.Action, to common.Address) (UnsignedTx, error) {
	return UnsignedTx{}, fmt.Errorf("chain: no action packing wired for %T; supply an ActionEncoder", action)
}
