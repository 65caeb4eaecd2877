package leveldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
)

func open(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGroupRoundTrip(t *testing.T) {
	s := open(t)
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

func TestListGroups(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	require.NoError(t, s.PutGroup(ctx, &protocol.Group{Id: protocol.GroupId{1}}))
	require.NoError(t, s.PutGroup(ctx, &protocol.Group{Id: protocol.GroupId{2}}))

	groups, err := s.ListGroups(ctx)
	require.NoError(t, err)
	assert.Len(t, groups, 2)
}

func TestNonceTreeByChunk(t *testing.T) {
	s := open(t)
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

func TestSigningRoundTripPreservesDiscriminant(t *testing.T) {
	s := open(t)
	ctx := context.Background()
	digest := protocol.MessageDigest{4}
	responsible := protocol.ParticipantId(7)
	entry := &protocol.SigningEntry{
		Base: protocol.SigningBase{
			GroupId: protocol.GroupId{1},
			Packet:  protocol.AccountTransactionPacket{Epoch: 3},
		},
		Discriminant: protocol.WaitingForRequest{
			Responsible: &responsible,
			Signers:     []protocol.ParticipantId{1, 2, 3},
			Deadline:    protocol.BlockNumber(200),
		},
	}

	require.NoError(t, s.PutSigning(ctx, digest, entry))
	got, err := s.GetSigning(ctx, digest)
	require.NoError(t, err)

	waiting, ok := got.Discriminant.(protocol.WaitingForRequest)
	require.True(t, ok, "discriminant must round-trip through gob as its concrete variant")
	assert.Equal(t, responsible, *waiting.Responsible)
	assert.Equal(t, protocol.BlockNumber(200), waiting.Deadline)

	packet, ok := got.Base.Packet.(protocol.AccountTransactionPacket)
	require.True(t, ok)
	assert.Equal(t, protocol.Epoch(3), packet.Epoch)

	all, err := s.ListSigning(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, s.DeleteSigning(ctx, digest))
	_, err = s.GetSigning(ctx, digest)
	assert.True(t, errors.Is(err, storage.ErrNotFound))
}

func TestRolloverDefaultsToWaitingForGenesisThenRoundTrips(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	state, err := s.GetRollover(ctx)
	require.NoError(t, err)
	assert.IsType(t, protocol.WaitingForGenesis{}, state)

	require.NoError(t, s.PutRollover(ctx, protocol.CollectingCommitments{
		GroupId:   protocol.GroupId{3},
		NextEpoch: 9,
		Deadline:  protocol.BlockNumber(50),
	}))

	state, err = s.GetRollover(ctx)
	require.NoError(t, err)
	collecting, ok := state.(protocol.CollectingCommitments)
	require.True(t, ok)
	assert.Equal(t, protocol.Epoch(9), collecting.NextEpoch)
}

func TestConsensusDefaultsToEmptyThenRoundTrips(t *testing.T) {
	s := open(t)
	ctx := context.Background()

	state, err := s.GetConsensus(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.Epoch(0), state.ActiveEpoch)

	state.ActiveEpoch = 4
	state.EpochGroups[4] = protocol.EpochGroup{GroupId: protocol.GroupId{1}, ParticipantId: 2}
	require.NoError(t, s.PutConsensus(ctx, state))

	got, err := s.GetConsensus(ctx)
	require.NoError(t, err)
	assert.Equal(t, protocol.Epoch(4), got.ActiveEpoch)
	assert.Equal(t, protocol.ParticipantId(2), got.EpochGroups[4].ParticipantId)
}

func TestOutboxListFromAscendingNonce(t *testing.T) {
	s := open(t)
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
	s := open(t)
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

func TestReopenPreservesData(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "db")
	s, err := Open(dir)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, s.PutGroup(ctx, &protocol.Group{Id: protocol.GroupId{7}, Threshold: 3}))
	require.NoError(t, s.Close())

	reopened, err := Open(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetGroup(ctx, protocol.GroupId{7})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Threshold)
}

func TestApplyDiffWritesEveryFieldAtomically(t *testing.T) {
	s := open(t)
	ctx := context.Background()

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

	_, err := s.GetGroup(ctx, removed.Id)
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
