// Package memdb is an in-memory storage.Store, used by tests and by
// any deployment that doesn't need durability across restarts. Its
// map-plus-mutex shape follows the teacher's own in-memory bookkeeping
// in BridgeTxPool (node/sc/bridge_tx_pool.go: `queue`, `all` maps under
// a single sync.RWMutex).
package memdb

import (
	"context"
	"sync"

	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
)

// Store is a storage.Store backed entirely by in-process maps.
type Store struct {
	mu sync.RWMutex

	groups     map[protocol.GroupId]*protocol.Group
	nonceTrees map[[32]byte]*protocol.NonceTree
	// chunkIndex maps (groupId, chunk) -> tree root, maintained
	// alongside nonceTrees so GetNonceTreeByChunk doesn't need a linear
	// scan.
	chunkIndex map[protocol.GroupId]map[uint64][32]byte

	signing  map[protocol.MessageDigest]*protocol.SigningEntry
	rollover protocol.RolloverState
	haveRollover bool

	consensus *protocol.MutableConsensusState

	outbox map[uint64]*protocol.SubmissionEntry

	cursor    protocol.Cursor
	haveCursor bool
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		groups:     make(map[protocol.GroupId]*protocol.Group),
		nonceTrees: make(map[[32]byte]*protocol.NonceTree),
		chunkIndex: make(map[protocol.GroupId]map[uint64][32]byte),
		signing:    make(map[protocol.MessageDigest]*protocol.SigningEntry),
		outbox:     make(map[uint64]*protocol.SubmissionEntry),
	}
}

var _ storage.Store = (*Store)(nil)

func (s *Store) GetGroup(ctx context.Context, id protocol.GroupId) (*protocol.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return g, nil
}

func (s *Store) PutGroup(ctx context.Context, g *protocol.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[g.Id] = g
	return nil
}

func (s *Store) DeleteGroup(ctx context.Context, id protocol.GroupId) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, id)
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*protocol.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*protocol.Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g)
	}
	return out, nil
}

func (s *Store) GetNonceTree(ctx context.Context, root [32]byte) (*protocol.NonceTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.nonceTrees[root]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) PutNonceTree(ctx context.Context, t *protocol.NonceTree) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nonceTrees[t.Root] = t
	if t.Chunk != nil {
		if s.chunkIndex[t.GroupId] == nil {
			s.chunkIndex[t.GroupId] = make(map[uint64][32]byte)
		}
		s.chunkIndex[t.GroupId][*t.Chunk] = t.Root
	}
	return nil
}

func (s *Store) GetNonceTreeByChunk(ctx context.Context, groupId protocol.GroupId, chunk uint64) (*protocol.NonceTree, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	root, ok := s.chunkIndex[groupId][chunk]
	if !ok {
		return nil, storage.ErrNotFound
	}
	t, ok := s.nonceTrees[root]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetSigning(ctx context.Context, digest protocol.MessageDigest) (*protocol.SigningEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.signing[digest]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) PutSigning(ctx context.Context, digest protocol.MessageDigest, e *protocol.SigningEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signing[digest] = e
	return nil
}

func (s *Store) DeleteSigning(ctx context.Context, digest protocol.MessageDigest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.signing, digest)
	return nil
}

func (s *Store) ListSigning(ctx context.Context) (map[protocol.MessageDigest]*protocol.SigningEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[protocol.MessageDigest]*protocol.SigningEntry, len(s.signing))
	for k, v := range s.signing {
		out[k] = v
	}
	return out, nil
}

func (s *Store) GetRollover(ctx context.Context) (protocol.RolloverState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.haveRollover {
		return protocol.WaitingForGenesis{}, nil
	}
	return s.rollover, nil
}

func (s *Store) PutRollover(ctx context.Context, state protocol.RolloverState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollover = state
	s.haveRollover = true
	return nil
}

func (s *Store) GetConsensus(ctx context.Context) (*protocol.MutableConsensusState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.consensus == nil {
		return protocol.NewMutableConsensusState(), nil
	}
	return s.consensus, nil
}

func (s *Store) PutConsensus(ctx context.Context, state *protocol.MutableConsensusState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consensus = state
	return nil
}

// ApplyDiff writes every field of diff under a single mutex hold, the
// in-memory equivalent of the batched write storage/leveldb uses for
// the same atomicity guarantee.
func (s *Store) ApplyDiff(ctx context.Context, diff *protocol.StateDiff) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, g := range diff.GroupUpserts {
		s.groups[g.Id] = g
	}
	for _, id := range diff.GroupDeletes {
		delete(s.groups, id)
	}
	for digest, e := range diff.SigningUpserts {
		s.signing[digest] = e
	}
	for _, digest := range diff.SigningDeletes {
		delete(s.signing, digest)
	}
	if diff.Rollover != nil {
		s.rollover = diff.Rollover
		s.haveRollover = true
	}
	if diff.Consensus != nil {
		s.consensus = diff.Consensus
	}
	return nil
}

func (s *Store) GetEntry(ctx context.Context, nonce uint64) (*protocol.SubmissionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.outbox[nonce]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

func (s *Store) PutEntry(ctx context.Context, e *protocol.SubmissionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outbox[e.Nonce] = e
	return nil
}

func (s *Store) ListFrom(ctx context.Context, from uint64) ([]*protocol.SubmissionEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*protocol.SubmissionEntry, 0)
	for nonce, e := range s.outbox {
		if nonce >= from {
			out = append(out, e)
		}
	}
	sortEntriesByNonce(out)
	return out, nil
}

func (s *Store) HighestNonce(ctx context.Context) (uint64, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var max uint64
	found := false
	for nonce := range s.outbox {
		if !found || nonce > max {
			max = nonce
			found = true
		}
	}
	return max, found, nil
}

func (s *Store) GetCursor(ctx context.Context) (protocol.Cursor, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursor, s.haveCursor, nil
}

func (s *Store) PutCursor(ctx context.Context, c protocol.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
	s.haveCursor = true
	return nil
}

func sortEntriesByNonce(entries []*protocol.SubmissionEntry) {
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Nonce < entries[j-1].Nonce; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}
