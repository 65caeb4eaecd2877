package submitter

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldnet/validator/chain"
	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage/memdb"
)

type fakeClient struct {
	chain.Client
	pendingNonce  uint64
	confirmed     uint64
	tip, price    *big.Int
	sendErr       error
	sent          []*types.Transaction
}

func (f *fakeClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return f.pendingNonce, nil
}

func (f *fakeClient) NonceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (uint64, error) {
	return f.confirmed, nil
}

func (f *fakeClient) SuggestGasTipCap(ctx context.Context) (*big.Int, error) { return f.tip, nil }
func (f *fakeClient) SuggestGasPrice(ctx context.Context) (*big.Int, error)  { return f.price, nil }

func (f *fakeClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, tx)
	return nil
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(action protocol.Action, to common.Address) (chain.UnsignedTx, error) {
	return chain.UnsignedTx{To: to, Value: big.NewInt(0), Data: []byte{1, 2, 3}, GasLimit: 21000}, nil
}

func testKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func newTestSubmitter(t *testing.T, client *fakeClient) (*Submitter, *memdb.Store) {
	t.Helper()
	store := memdb.New()
	signer := NewPrivateKeySigner(testKey(t), big.NewInt(1))
	addresses := Addresses{Coordinator: common.Address{1}, Consensus: common.Address{2}}
	fees := chain.NewFeeEstimator(client)
	s := New(DefaultConfig, client, store, fakeEncoder{}, signer, addresses, big.NewInt(1), fees)
	return s, store
}

func TestEnqueueRecordsEntryAtPendingNonce(t *testing.T) {
	client := &fakeClient{pendingNonce: 7, tip: big.NewInt(1), price: big.NewInt(10)}
	s, store := newTestSubmitter(t, client)

	err := s.Enqueue(context.Background(), protocol.SignRequest{GroupId: protocol.GroupId{1}, Message: protocol.MessageDigest{2}})
	require.NoError(t, err)

	entry, err := store.GetEntry(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, protocol.SubmissionPending, entry.Status)
	assert.NotEmpty(t, entry.RawTx)
}

func TestRunTickMarksBelowConfirmedExecuted(t *testing.T) {
	client := &fakeClient{pendingNonce: 5, confirmed: 5, tip: big.NewInt(1), price: big.NewInt(10)}
	s, store := newTestSubmitter(t, client)
	ctx := context.Background()

	for _, n := range []uint64{3, 4} {
		require.NoError(t, store.PutEntry(ctx, &protocol.SubmissionEntry{Nonce: n, Status: protocol.SubmissionSubmitted}))
	}

	require.NoError(t, s.RunTick(ctx, 1))

	for _, n := range []uint64{3, 4} {
		entry, err := store.GetEntry(ctx, n)
		require.NoError(t, err)
		assert.Equal(t, protocol.SubmissionExecuted, entry.Status)
	}
}

func TestRunTickSendsAndBumpsFee(t *testing.T) {
	client := &fakeClient{confirmed: 10, tip: big.NewInt(100), price: big.NewInt(200)}
	s, store := newTestSubmitter(t, client)
	ctx := context.Background()

	raw, err := encodeTemplate(chain.UnsignedTx{To: common.Address{9}, Value: big.NewInt(0), Data: []byte{1}, GasLimit: 21000})
	require.NoError(t, err)
	require.NoError(t, store.PutEntry(ctx, &protocol.SubmissionEntry{
		Nonce:              10,
		RawTx:              raw,
		LastFeeCap:         &protocol.Scalar{V: big.NewInt(100)},
		LastPriorityFeeCap: &protocol.Scalar{V: big.NewInt(50)},
		Status:             protocol.SubmissionSubmitted,
	}))

	require.NoError(t, s.RunTick(ctx, 1))

	entry, err := store.GetEntry(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, protocol.SubmissionSubmitted, entry.Status)
	assert.Equal(t, big.NewInt(202), entry.LastFeeCap.V, "101%% of max(stored=100, estimate=200)")
	assert.Equal(t, big.NewInt(101), entry.LastPriorityFeeCap.V, "101%% of max(stored=50, estimate=100)")
	require.NotNil(t, entry.LastTxHash)
	require.Len(t, client.sent, 1)
}

func TestRunTickNonceTooLowMarksExecutedAndContinues(t *testing.T) {
	client := &fakeClient{confirmed: 10, tip: big.NewInt(1), price: big.NewInt(10), sendErr: errors.New("nonce too low")}
	s, store := newTestSubmitter(t, client)
	ctx := context.Background()

	raw, err := encodeTemplate(chain.UnsignedTx{To: common.Address{9}, GasLimit: 21000})
	require.NoError(t, err)
	require.NoError(t, store.PutEntry(ctx, &protocol.SubmissionEntry{Nonce: 10, RawTx: raw, Status: protocol.SubmissionSubmitted}))

	require.NoError(t, s.RunTick(ctx, 1))

	entry, err := store.GetEntry(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, protocol.SubmissionExecuted, entry.Status)
	assert.Nil(t, entry.LastTxHash, "nonce-too-low reconciliation doesn't rewrite the hash")
}

func TestRunTickStopsTickOnOtherSendError(t *testing.T) {
	client := &fakeClient{confirmed: 10, tip: big.NewInt(1), price: big.NewInt(10), sendErr: errors.New("connection refused")}
	s, store := newTestSubmitter(t, client)
	ctx := context.Background()

	raw, err := encodeTemplate(chain.UnsignedTx{To: common.Address{9}, GasLimit: 21000})
	require.NoError(t, err)
	require.NoError(t, store.PutEntry(ctx, &protocol.SubmissionEntry{Nonce: 10, RawTx: raw, Status: protocol.SubmissionSubmitted}))

	err = s.RunTick(ctx, 1)
	require.Error(t, err)

	entry, getErr := store.GetEntry(ctx, 10)
	require.NoError(t, getErr)
	assert.Equal(t, protocol.SubmissionSubmitted, entry.Status, "entry stays submitted; next tick retries it")
}
