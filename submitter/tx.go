package submitter

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/gob"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/shieldnet/validator/chain"
)

// txTemplate is the part of an enqueued action that never changes
// across retries — everything but the nonce and the fee pair, which
// the loop recomputes on every attempt. It is what RawTx actually
// stores; "raw transaction" in spec.md §4.6 is deliberately opaque to
// this component's storage layer, so gob is an implementation detail,
// not a protocol encoding.
type txTemplate struct {
	To       common.Address
	Value    *big.Int
	Data     []byte
	GasLimit uint64
}

func encodeTemplate(tx chain.UnsignedTx) ([]byte, error) {
	var buf bytes.Buffer
	value := tx.Value
	if value == nil {
		value = big.NewInt(0)
	}
	if err := gob.NewEncoder(&buf).Encode(txTemplate{To: tx.To, Value: value, Data: tx.Data, GasLimit: tx.GasLimit}); err != nil {
		return nil, fmt.Errorf("submitter: encode tx template: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeTemplate(raw []byte) (txTemplate, error) {
	var t txTemplate
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&t); err != nil {
		return txTemplate{}, fmt.Errorf("submitter: decode tx template: %w", err)
	}
	return t, nil
}

// Signer produces a signed transaction for this validator's submission
// identity. The submitter never holds raw key material itself beyond
// what an injected Signer needs — mirroring the same "move-only opaque
// handle" treatment spec.md §9 asks of signing shares, applied here to
// the chain account key.
type Signer interface {
	Address() common.Address
	Sign(tx *types.Transaction) (*types.Transaction, error)
}

// PrivateKeySigner signs with an in-process ECDSA key using
// go-ethereum's London (EIP-1559) signer, the standard signing idiom
// for a dynamic-fee transaction in the go-ethereum ecosystem.
type PrivateKeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
	signer  types.Signer
}

// NewPrivateKeySigner returns a Signer for key on chainId.
func NewPrivateKeySigner(key *ecdsa.PrivateKey, chainId *big.Int) *PrivateKeySigner {
	return &PrivateKeySigner{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		signer:  types.NewLondonSigner(chainId),
	}
}

func (s *PrivateKeySigner) Address() common.Address { return s.address }

func (s *PrivateKeySigner) Sign(tx *types.Transaction) (*types.Transaction, error) {
	return types.SignTx(tx, s.signer, s.key)
}
