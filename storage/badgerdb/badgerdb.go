// Package badgerdb is a storage.CursorStore backend on top of
// dgraph-io/badger, the second database engine the teacher itself
// wraps (storage/database/badger_database.go) alongside its leveldb
// one. It deliberately implements nothing else in storage.Store: the
// watcher exclusively owns its follow cursor, so giving it its own
// engine and its own write path means a crash or a slow compaction on
// the machine/submitter's leveldb handle can never stall or corrupt
// cursor advancement, and vice versa.
package badgerdb

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"time"

	badger "github.com/dgraph-io/badger"

	"github.com/shieldnet/validator/log"
	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
)

var logger = log.NewModuleLogger(log.ModuleStorage)

const gcThreshold = int64(1 << 30)
const gcTickerPeriod = 1 * time.Minute

var cursorKey = []byte("cursor")

// Store is a storage.CursorStore backed by badger.
type Store struct {
	db       *badger.DB
	gcTicker *time.Ticker
	stopGC   chan struct{}
}

var _ storage.CursorStore = (*Store)(nil)

// Open opens (or creates) the database directory at path, mirroring
// the teacher's NewBadgerDB: create the directory if missing, open
// with badger's own default options pointed at it, and start the
// periodic value-log GC loop.
func Open(path string) (*Store, error) {
	if fi, err := os.Stat(path); err == nil {
		if !fi.IsDir() {
			return nil, fmt.Errorf("badgerdb: %s is not a directory", path)
		}
	} else if os.IsNotExist(err) {
		if err := os.MkdirAll(path, 0755); err != nil {
			return nil, fmt.Errorf("badgerdb: mkdir %s: %w", path, err)
		}
	} else {
		return nil, fmt.Errorf("badgerdb: stat %s: %w", path, err)
	}

	opts := badger.DefaultOptions
	opts.Dir = path
	opts.ValueDir = path

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerdb: open %s: %w", path, err)
	}

	s := &Store{db: db, gcTicker: time.NewTicker(gcTickerPeriod), stopGC: make(chan struct{})}
	go s.runValueLogGC()
	return s, nil
}

// runValueLogGC periodically reclaims value-log space once growth
// since the last pass exceeds gcThreshold, the same size-triggered
// loop the teacher runs for its own badger backend.
func (s *Store) runValueLogGC() {
	_, lastSize := s.db.Size()
	for {
		select {
		case <-s.stopGC:
			return
		case <-s.gcTicker.C:
			_, currSize := s.db.Size()
			if currSize-lastSize < gcThreshold {
				continue
			}
			if err := s.db.RunValueLogGC(0.5); err != nil {
				logger.Warn("value log gc failed", "err", err)
				continue
			}
			_, lastSize = s.db.Size()
		}
	}
}

func (s *Store) Close() error {
	s.gcTicker.Stop()
	close(s.stopGC)
	return s.db.Close()
}

// GetCursor reads the watcher's single persisted cursor. A missing key
// (never-yet-persisted) is reported via the bool return rather than
// storage.ErrNotFound, since "no cursor yet" is a valid steady state
// (a fresh deployment warping from genesis), not an error.
func (s *Store) GetCursor(ctx context.Context) (protocol.Cursor, bool, error) {
	var cursor protocol.Cursor
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(cursorKey)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		raw, err := item.Value()
		if err != nil {
			return err
		}
		cursor = decodeCursor(raw)
		found = true
		return nil
	})
	if err != nil {
		return protocol.Cursor{}, false, fmt.Errorf("badgerdb: get cursor: %w", err)
	}
	return cursor, found, nil
}

func (s *Store) PutCursor(ctx context.Context, c protocol.Cursor) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(cursorKey, encodeCursor(c))
	})
	if err != nil {
		return fmt.Errorf("badgerdb: put cursor: %w", err)
	}
	return nil
}

func encodeCursor(c protocol.Cursor) []byte {
	buf := make([]byte, 12)
	binary.BigEndian.PutUint64(buf[:8], uint64(c.Block))
	binary.BigEndian.PutUint32(buf[8:], uint32(c.LogIndex))
	return buf
}

func decodeCursor(raw []byte) protocol.Cursor {
	return protocol.Cursor{
		Block:    protocol.BlockNumber(binary.BigEndian.Uint64(raw[:8])),
		LogIndex: protocol.LogIndex(binary.BigEndian.Uint32(raw[8:])),
	}
}
