package chain

import (
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/crypto/sha3"

	"github.com/shieldnet/validator/protocol"
)

// Topic returns the Keccak-256 event selector for kind. Selectors are
// fixed once the coordinator/consensus contract ABI is pinned; this
// table is the single place that binding lives.
func Topic(kind protocol.EventKind) common.Hash {
	return topics[kind]
}

// KindForTopic is the inverse of Topic, used by the watcher to decide
// which EventArgs to decode a raw log into.
func KindForTopic(t common.Hash) (protocol.EventKind, bool) {
	k, ok := topicToKind[t]
	return k, ok
}

// AllTopics returns every watched selector, the shape FilterQuery and
// the bloom short-circuit check both need.
func AllTopics() []common.Hash {
	out := make([]common.Hash, 0, len(topics))
	for _, t := range topics {
		out = append(out, t)
	}
	return out
}

var topics = map[protocol.EventKind]common.Hash{
	protocol.EventKeyGen:                   eventID("KeyGen(bytes32,bytes32,uint64,uint64,bytes)"),
	protocol.EventKeyGenCommitted:          eventID("KeyGenCommitted(bytes32,uint64,bytes,bool)"),
	protocol.EventKeyGenSecretShared:       eventID("KeyGenSecretShared(bytes32,uint64,bytes,bool)"),
	protocol.EventKeyGenComplained:         eventID("KeyGenComplained(bytes32,uint64,uint64)"),
	protocol.EventKeyGenComplaintResponded: eventID("KeyGenComplaintResponded(bytes32,uint64,bytes,bool)"),
	protocol.EventKeyGenConfirmed:          eventID("KeyGenConfirmed(bytes32,uint64,bool)"),
	protocol.EventPreprocess:               eventID("Preprocess(bytes32,uint64,uint32,bytes32)"),
	protocol.EventSign:                     eventID("Sign(address,bytes32,bytes32,bytes32,uint64)"),
	protocol.EventSignRevealedNonces:       eventID("SignRevealedNonces(bytes32,uint64,bytes,bytes)"),
	protocol.EventSignShared:               eventID("SignShared(bytes32,uint64,bytes32)"),
	protocol.EventSignCompleted:            eventID("SignCompleted(bytes32,bytes)"),
	protocol.EventEpochProposed:            eventID("EpochProposed(bytes32,uint64,uint64)"),
	protocol.EventEpochStaged:              eventID("EpochStaged(uint64,uint64,bytes32)"),
	protocol.EventTransactionProposed:      eventID("TransactionProposed(bytes32,bytes32,uint64,bytes)"),
	protocol.EventTransactionAttested:      eventID("TransactionAttested(bytes32)"),
}

var topicToKind = func() map[common.Hash]protocol.EventKind {
	m := make(map[common.Hash]protocol.EventKind, len(topics))
	for k, t := range topics {
		m[t] = k
	}
	return m
}()

// eventID computes the Keccak-256 event selector for a Solidity-style
// signature string, the same convention go-ethereum's bind-generated
// contracts use for topic[0].
func eventID(signature string) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(signature))
	return common.BytesToHash(h.Sum(nil))
}

// LogDecoder turns a raw log matching one of our watched topics into the
// protocol.EventArgs it carries. A real build supplies one backed by
// the coordinator/consensus contract ABI (via go-ethereum's abi.ABI);
// this interface is the seam that implementation plugs into.
type LogDecoder interface {
	Decode(kind protocol.EventKind, log types.Log) (protocol.EventArgs, error)
}

// ABIDecoder decodes logs against a parsed contract ABI, the
// go-ethereum idiom for unpacking event data (spec.md never specifies
// a concrete wire format for log payloads, only the fields each event
// carries; this is the seam a deployment's ABI JSON plugs into).
type ABIDecoder struct {
	ABI abi.ABI
}

// Decode is deliberately unimplemented: per-event unpacking depends on
// the coordinator/consensus contract ABI, which is deployment
// configuration, not protocol. Wire a concrete decoder (or a
// hand-rolled one matching a specific deployed ABI) at startup.
func (d *ABIDecoder) Decode(kind protocol.EventKind, log types.Log) (protocol.EventArgs, error) {
	return nil, fmt.Errorf("chain: no event unpacking wired for %s; supply a LogDecoder", kind)
}
