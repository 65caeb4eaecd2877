package memdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
)

func TestGroupRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	g := &protocol.Group{Id: protocol.GroupId{1}, Threshold: 2}

	require.NoError(t, s.PutGroup(ctx, g))
	got, err := s.GetGroup(ctx, g.Id)
	require.NoError(t, err)
	assert.Equal(t, g, got)

	require.NoError(t, s.DeleteGroup(ctx, g.Id))
	_, err = s.GetGroup(ctx, g.Id)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestNonceTreeByChunk(t *testing.T) {
	s := New()
	ctx := context.Background()
	chunk := uint64(5)
	tree := &protocol.NonceTree{GroupId: protocol.GroupId{2}, Root: [32]byte{9}, Chunk: &chunk}

	require.NoError(t, s.PutNonceTree(ctx, tree))

	got, err := s.GetNonceTreeByChunk(ctx, tree.GroupId, chunk)
	require.NoError(t, err)
	assert.Equal(t, tree.Root, got.Root)

	_, err = s.GetNonceTreeByChunk(ctx, tree.GroupId, 99)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestOutboxListFromAscendingNonce(t *testing.T) {
	s := New()
	ctx := context.Background()
	for _, n := range []uint64{5, 1, 3, 2, 4} {
		require.NoError(t, s.PutEntry(ctx, &protocol.SubmissionEntry{Nonce: n}))
	}

	entries, err := s.ListFrom(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i := 1; i < len(entries); i++ {
		assert.Less(t, entries[i-1].Nonce, entries[i].Nonce)
	}
	assert.Equal(t, uint64(2), entries[0].Nonce)
}

func TestOutboxHighestNonce(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, found, err := s.HighestNonce(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.PutEntry(ctx, &protocol.SubmissionEntry{Nonce: 3}))
	require.NoError(t, s.PutEntry(ctx, &protocol.SubmissionEntry{Nonce: 7}))

	max, found, err := s.HighestNonce(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, uint64(7), max)
}

func TestCursorRoundTrip(t *testing.T) {
	s := New()
	ctx := context.Background()
	_, found, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.False(t, found)

	c := protocol.Cursor{Block: 100, LogIndex: 3}
	require.NoError(t, s.PutCursor(ctx, c))

	got, found, err := s.GetCursor(ctx)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, c, got)
}

func TestRolloverDefaultsToWaitingForGenesis(t *testing.T) {
	s := New()
	ctx := context.Background()
	state, err := s.GetRollover(ctx)
	require.NoError(t, err)
	assert.IsType(t, protocol.WaitingForGenesis{}, state)
}

func TestConsensusDefaultsToEmpty(t *testing.T) {
	s := New()
	ctx := context.Background()
	state, err := s.GetConsensus(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.Epoch(0), state.ActiveEpoch)
}

func TestApplyDiffWritesEveryField(t *testing.T) {
	s := New()
	ctx := context.Background()

	kept := &protocol.Group{Id: protocol.GroupId{1}, Threshold: 2}
	require.NoError(t, s.PutGroup(ctx, kept))
	removed := &protocol.Group{Id: protocol.GroupId{2}, Threshold: 2}
	require.NoError(t, s.PutGroup(ctx, removed))
	keptDigest := protocol.MessageDigest{9}
	require.NoError(t, s.PutSigning(ctx, keptDigest, &protocol.SigningEntry{}))

	added := &protocol.Group{Id: protocol.GroupId{3}, Threshold: 3}
	upsertDigest := protocol.MessageDigest{1}
	diff := &protocol.StateDiff{
		Rollover:       protocol.EpochSkipped{},
		GroupUpserts:   []*protocol.Group{added},
		GroupDeletes:   []protocol.GroupId{removed.Id},
		SigningUpserts: map[protocol.MessageDigest]*protocol.SigningEntry{upsertDigest: {}},
		SigningDeletes: []protocol.MessageDigest{keptDigest},
		Consensus:      &protocol.MutableConsensusState{ActiveEpoch: 7},
	}
	require.NoError(t, s.ApplyDiff(ctx, diff))

	_, err := s.GetGroup(ctx, kept.Id)
	require.NoError(t, err)
	_, err = s.GetGroup(ctx, removed.Id)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = s.GetGroup(ctx, added.Id)
	require.NoError(t, err)

	_, err = s.GetSigning(ctx, keptDigest)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
	_, err = s.GetSigning(ctx, upsertDigest)
	require.NoError(t, err)

	rollover, err := s.GetRollover(ctx)
	require.NoError(t, err)
	assert.IsType(t, protocol.EpochSkipped{}, rollover)

	consensus, err := s.GetConsensus(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.Epoch(7), consensus.ActiveEpoch)
}
