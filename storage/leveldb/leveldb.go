// Package leveldb is a storage.Store backend on top of
// syndtr/goleveldb, the engine the teacher itself wraps in
// storage/database/leveldb_database.go. It keeps every logical table
// (groups, nonce trees, signing entries, rollover state, consensus
// mirror, outbox) inside one physical database, namespaced by a
// per-table key prefix — the same `table` wrapper idiom the teacher
// layers over its raw levelDB (prefix-then-delegate), collapsed here
// into one Store rather than one wrapper type per table.
//
// It does not implement storage.CursorStore: the watcher's follow
// cursor lives on a separate engine (storage/badgerdb) so the watcher
// can write it without taking a lock shared with the machine/submitter
// path, per the "watcher exclusively owns its follow cursor" ownership
// rule.
package leveldb

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	goleveldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/shieldnet/validator/log"
	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
)

var logger = log.NewModuleLogger(log.ModuleStorage)

// gob only round-trips an interface-typed field (RolloverState,
// SigningDiscriminant, Packet) if every concrete variant it might hold
// has been registered once, package-wide.
func init() {
	gob.Register(protocol.WaitingForGenesis{})
	gob.Register(protocol.EpochSkipped{})
	gob.Register(protocol.CollectingCommitments{})
	gob.Register(protocol.CollectingShares{})
	gob.Register(protocol.CollectingConfirmations{})
	gob.Register(protocol.SignRollover{})
	gob.Register(protocol.EpochStaged{})
	gob.Register(protocol.WaitingForRollover{})

	gob.Register(protocol.WaitingForRequest{})
	gob.Register(protocol.CollectNonceCommitments{})
	gob.Register(protocol.CollectSigningShares{})
	gob.Register(protocol.WaitingForAttestation{})

	gob.Register(protocol.EpochRolloverPacket{})
	gob.Register(protocol.AccountTransactionPacket{})
}

const (
	prefixGroup      = "g:"
	prefixNonceTree  = "n:"
	prefixChunkIndex = "c:"
	prefixSigning    = "s:"
	prefixOutbox     = "o:"
	keyRollover      = "rollover"
	keyConsensus     = "consensus"
)

// Store is a storage.MachineStore and storage.OutboxStore backed by a
// single goleveldb database.
type Store struct {
	db *leveldb.DB
}

var (
	_ storage.MachineStore = (*Store)(nil)
	_ storage.OutboxStore  = (*Store)(nil)
)

// Open opens (or creates) the database at path, recovering from
// corruption the same way the teacher's NewLDBDatabase does: retry via
// RecoverFile once if the initial OpenFile reports corruption.
func Open(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if _, corrupted := err.(*goleveldberrors.ErrCorrupted); corrupted {
		logger.Warn("recovering corrupted database", "path", path)
		db, err = leveldb.RecoverFile(path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb: open %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func encodeValue(v interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, fmt.Errorf("leveldb: encode: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeValue(raw []byte, v interface{}) error {
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("leveldb: decode: %w", err)
	}
	return nil
}

func (s *Store) get(key []byte, v interface{}) error {
	raw, err := s.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("leveldb: get: %w", err)
	}
	return decodeValue(raw, v)
}

func (s *Store) put(key []byte, v interface{}) error {
	raw, err := encodeValue(v)
	if err != nil {
		return err
	}
	if err := s.db.Put(key, raw, nil); err != nil {
		return fmt.Errorf("leveldb: put: %w", err)
	}
	return nil
}

// --- groups ---------------------------------------------------------

func groupKey(id protocol.GroupId) []byte {
	return append([]byte(prefixGroup), id[:]...)
}

func (s *Store) GetGroup(ctx context.Context, id protocol.GroupId) (*protocol.Group, error) {
	var g protocol.Group
	if err := s.get(groupKey(id), &g); err != nil {
		return nil, err
	}
	return &g, nil
}

func (s *Store) PutGroup(ctx context.Context, g *protocol.Group) error {
	return s.put(groupKey(g.Id), g)
}

func (s *Store) DeleteGroup(ctx context.Context, id protocol.GroupId) error {
	if err := s.db.Delete(groupKey(id), nil); err != nil {
		return fmt.Errorf("leveldb: delete group: %w", err)
	}
	return nil
}

func (s *Store) ListGroups(ctx context.Context) ([]*protocol.Group, error) {
	var out []*protocol.Group
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefixGroup)), nil)
	defer it.Release()
	for it.Next() {
		var g protocol.Group
		if err := decodeValue(it.Value(), &g); err != nil {
			return nil, err
		}
		out = append(out, &g)
	}
	return out, it.Error()
}

// --- nonce trees ------------------------------------------------------

func nonceTreeKey(root [32]byte) []byte {
	return append([]byte(prefixNonceTree), root[:]...)
}

func chunkIndexKey(groupId protocol.GroupId, chunk uint64) []byte {
	key := append([]byte(prefixChunkIndex), groupId[:]...)
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], chunk)
	return append(key, n[:]...)
}

func (s *Store) GetNonceTree(ctx context.Context, root [32]byte) (*protocol.NonceTree, error) {
	var t protocol.NonceTree
	if err := s.get(nonceTreeKey(root), &t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) PutNonceTree(ctx context.Context, t *protocol.NonceTree) error {
	if err := s.put(nonceTreeKey(t.Root), t); err != nil {
		return err
	}
	if t.Chunk != nil {
		if err := s.db.Put(chunkIndexKey(t.GroupId, *t.Chunk), t.Root[:], nil); err != nil {
			return fmt.Errorf("leveldb: put chunk index: %w", err)
		}
	}
	return nil
}

func (s *Store) GetNonceTreeByChunk(ctx context.Context, groupId protocol.GroupId, chunk uint64) (*protocol.NonceTree, error) {
	raw, err := s.db.Get(chunkIndexKey(groupId, chunk), nil)
	if err == leveldb.ErrNotFound {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("leveldb: get chunk index: %w", err)
	}
	var root [32]byte
	copy(root[:], raw)
	return s.GetNonceTree(ctx, root)
}

// --- signing entries --------------------------------------------------

func signingKey(digest protocol.MessageDigest) []byte {
	return append([]byte(prefixSigning), digest[:]...)
}

func (s *Store) GetSigning(ctx context.Context, digest protocol.MessageDigest) (*protocol.SigningEntry, error) {
	var e protocol.SigningEntry
	if err := s.get(signingKey(digest), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) PutSigning(ctx context.Context, digest protocol.MessageDigest, e *protocol.SigningEntry) error {
	return s.put(signingKey(digest), e)
}

func (s *Store) DeleteSigning(ctx context.Context, digest protocol.MessageDigest) error {
	if err := s.db.Delete(signingKey(digest), nil); err != nil {
		return fmt.Errorf("leveldb: delete signing: %w", err)
	}
	return nil
}

func (s *Store) ListSigning(ctx context.Context) (map[protocol.MessageDigest]*protocol.SigningEntry, error) {
	out := make(map[protocol.MessageDigest]*protocol.SigningEntry)
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefixSigning)), nil)
	defer it.Release()
	for it.Next() {
		var digest protocol.MessageDigest
		copy(digest[:], it.Key()[len(prefixSigning):])
		var e protocol.SigningEntry
		if err := decodeValue(it.Value(), &e); err != nil {
			return nil, err
		}
		out[digest] = &e
	}
	return out, it.Error()
}

// --- rollover / consensus singletons -----------------------------------

func (s *Store) GetRollover(ctx context.Context) (protocol.RolloverState, error) {
	var e rolloverEnvelope
	if err := s.get([]byte(keyRollover), &e); err != nil {
		if err == storage.ErrNotFound {
			return protocol.WaitingForGenesis{}, nil
		}
		return nil, err
	}
	return e.State, nil
}

func (s *Store) PutRollover(ctx context.Context, state protocol.RolloverState) error {
	return s.put([]byte(keyRollover), rolloverEnvelope{State: state})
}

// rolloverEnvelope lets gob round-trip protocol.RolloverState (an
// interface) by registering every concrete variant once at package
// init instead of at every call site.
type rolloverEnvelope struct {
	State protocol.RolloverState
}

func (s *Store) GetConsensus(ctx context.Context) (*protocol.MutableConsensusState, error) {
	var st protocol.MutableConsensusState
	if err := s.get([]byte(keyConsensus), &st); err != nil {
		if err == storage.ErrNotFound {
			return protocol.NewMutableConsensusState(), nil
		}
		return nil, err
	}
	return &st, nil
}

func (s *Store) PutConsensus(ctx context.Context, st *protocol.MutableConsensusState) error {
	return s.put([]byte(keyConsensus), st)
}

// --- atomic diff application -------------------------------------------

// ApplyDiff writes every field of diff through a single leveldb.Batch,
// goleveldb's atomic multi-key write primitive — the concrete mechanism
// behind the "single wall of atomicity" spec.md §5 requires.
func (s *Store) ApplyDiff(ctx context.Context, diff *protocol.StateDiff) error {
	batch := new(leveldb.Batch)

	for _, g := range diff.GroupUpserts {
		raw, err := encodeValue(g)
		if err != nil {
			return err
		}
		batch.Put(groupKey(g.Id), raw)
	}
	for _, id := range diff.GroupDeletes {
		batch.Delete(groupKey(id))
	}
	for digest, e := range diff.SigningUpserts {
		raw, err := encodeValue(e)
		if err != nil {
			return err
		}
		batch.Put(signingKey(digest), raw)
	}
	for _, digest := range diff.SigningDeletes {
		batch.Delete(signingKey(digest))
	}
	if diff.Rollover != nil {
		raw, err := encodeValue(rolloverEnvelope{State: diff.Rollover})
		if err != nil {
			return err
		}
		batch.Put([]byte(keyRollover), raw)
	}
	if diff.Consensus != nil {
		raw, err := encodeValue(diff.Consensus)
		if err != nil {
			return err
		}
		batch.Put([]byte(keyConsensus), raw)
	}

	if err := s.db.Write(batch, nil); err != nil {
		return fmt.Errorf("leveldb: apply diff: %w", err)
	}
	return nil
}

// --- outbox ----------------------------------------------------------

func outboxKey(nonce uint64) []byte {
	key := make([]byte, len(prefixOutbox)+8)
	copy(key, prefixOutbox)
	binary.BigEndian.PutUint64(key[len(prefixOutbox):], nonce)
	return key
}

func (s *Store) GetEntry(ctx context.Context, nonce uint64) (*protocol.SubmissionEntry, error) {
	var e protocol.SubmissionEntry
	if err := s.get(outboxKey(nonce), &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func (s *Store) PutEntry(ctx context.Context, e *protocol.SubmissionEntry) error {
	return s.put(outboxKey(e.Nonce), e)
}

// ListFrom relies on outboxKey's big-endian nonce suffix sorting
// lexicographically the same as numerically, so a single prefixed
// range scan returns entries already in ascending nonce order.
func (s *Store) ListFrom(ctx context.Context, from uint64) ([]*protocol.SubmissionEntry, error) {
	var out []*protocol.SubmissionEntry
	rng := util.BytesPrefix([]byte(prefixOutbox))
	rng.Start = outboxKey(from)
	it := s.db.NewIterator(rng, nil)
	defer it.Release()
	for it.Next() {
		var e protocol.SubmissionEntry
		if err := decodeValue(it.Value(), &e); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, it.Error()
}

func (s *Store) HighestNonce(ctx context.Context) (uint64, bool, error) {
	it := s.db.NewIterator(util.BytesPrefix([]byte(prefixOutbox)), nil)
	defer it.Release()
	found := it.Last()
	if !found {
		return 0, false, it.Error()
	}
	var e protocol.SubmissionEntry
	if err := decodeValue(it.Value(), &e); err != nil {
		return 0, false, err
	}
	return e.Nonce, true, nil
}
