package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// RPCClient adapts *ethclient.Client to the Client interface, the same
// Dial-then-wrap shape the retrieval pack's own submitter fakes use
// (ethclient.Dial(rpcURL) into a thin holder struct) rather than
// depending on ethclient.Client's wider method set directly.
type RPCClient struct {
	eth *ethclient.Client
}

var _ Client = (*RPCClient)(nil)

// Dial connects to an EVM-shaped JSON-RPC endpoint at url.
func Dial(ctx context.Context, url string) (*RPCClient, error) {
	eth, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", url, err)
	}
	return &RPCClient{eth: eth}, nil
}

func (c *RPCClient) Close() {
	c.eth.Close()
}

func (c *RPCClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return c.eth.HeaderByNumber(ctx, number)
}

// BlockByHash only needs the header, not the full body; fetching it
// via HeaderByHash avoids pulling every transaction across the wire
// just to walk reorg ancestry.
func (c *RPCClient) BlockByHash(ctx context.Context, hash common.Hash) (*types.Header, error) {
	return c.eth.HeaderByHash(ctx, hash)
}

func (c *RPCClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return c.eth.FilterLogs(ctx, q)
}

// FilterLogsByBlockHash pins the query to a specific block hash via
// FilterQuery.BlockHash, the standard go-ethereum idiom for a
// reorg-safe single-block log fetch (no separate RPC method exists;
// the node resolves BlockHash itself rather than a caller-supplied
// block number that a concurrent reorg could retarget).
func (c *RPCClient) FilterLogsByBlockHash(ctx context.Context, blockHash common.Hash, addresses []common.Address, topics [][]common.Hash) ([]types.Log, error) {
	q := ethereum.FilterQuery{BlockHash: &blockHash, Addresses: addresses, Topics: topics}
	return c.eth.FilterLogs(ctx, q)
}

func (c *RPCClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.eth.PendingNonceAt(ctx, account)
}

func (c *RPCClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return c.eth.NonceAt(ctx, account, blockNumber)
}

func (c *RPCClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasTipCap(ctx)
}

func (c *RPCClient) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return c.eth.SuggestGasPrice(ctx)
}

func (c *RPCClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.eth.SendTransaction(ctx, tx)
}

func (c *RPCClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.eth.ChainID(ctx)
}
