package watcher

import (
	lru "github.com/hashicorp/golang-lru"

	"github.com/ethereum/go-ethereum/common"

	"github.com/shieldnet/validator/protocol"
)

// reorgRing remembers the hash of every recently-indexed block so
// follow mode can detect a reorg by comparing a freshly observed
// parent/self hash against what it saw before, the same
// known-key-to-recent-value shape the teacher's lru.Cache wraps for
// its block/tx caches, applied here to block hashes instead.
type reorgRing struct {
	cache *lru.Cache
}

func newReorgRing(depth uint64) (*reorgRing, error) {
	size := int(depth) * 2
	if size < 16 {
		size = 16
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &reorgRing{cache: c}, nil
}

func (r *reorgRing) remember(block protocol.BlockNumber, hash common.Hash) {
	r.cache.Add(block, hash)
}

// lookup returns the hash remembered for block, if any.
func (r *reorgRing) lookup(block protocol.BlockNumber) (common.Hash, bool) {
	v, ok := r.cache.Get(block)
	if !ok {
		return common.Hash{}, false
	}
	return v.(common.Hash), true
}
