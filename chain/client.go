// Package chain is the narrow seam between this daemon and an EVM-shaped
// chain endpoint: reading blocks and logs, estimating fees, and sending
// signed transactions. Everything above this package (watcher, submitter)
// talks only to the Client interface, never to a concrete RPC transport,
// following the same backend-interface-over-concrete-client split the
// teacher uses between its `node/sc` event handlers and the underlying
// `blockchain`/`backend` packages.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Client is every chain operation the watcher and submitter need. A
// production build backs this with `ethclient.Client`; tests back it
// with a hand-rolled fake.
type Client interface {
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	BlockByHash(ctx context.Context, hash common.Hash) (*types.Header, error)

	// FilterLogs services warp mode's ranged getLogs calls.
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	// FilterLogsByBlockHash services follow mode's per-block getLogs
	// calls, which must pin to a specific block hash rather than a
	// number so a concurrent reorg can't silently retarget the query.
	FilterLogsByBlockHash(ctx context.Context, blockHash common.Hash, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error)

	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error)

	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)

	SendTransaction(ctx context.Context, tx *types.Transaction) error

	ChainID(ctx context.Context) (*big.Int, error)
}
