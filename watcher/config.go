package watcher

import (
	"time"

	"github.com/shieldnet/validator/protocol"
)

// Config carries the watcher's own recognised options (spec.md §6
// configuration: `watcher{blockTimeMs, maxReorgDepth, pageSize,
// maxLogsPerQuery, blockSingleQueryRetryCount, fallibleEvents[],
// backoffDelaysMs[]}`).
type Config struct {
	BlockTimeMs                uint64
	MaxReorgDepth              uint64
	PageSize                   uint64
	MaxLogsPerQuery            uint64
	BlockSingleQueryRetryCount int
	FallibleEvents             []protocol.EventKind
	BackoffDelaysMs            []uint64
}

// DefaultConfig is a conservative starting point for a mainnet-shaped
// deployment.
var DefaultConfig = Config{
	BlockTimeMs:                3000,
	MaxReorgDepth:              64,
	PageSize:                   2000,
	MaxLogsPerQuery:            5000,
	BlockSingleQueryRetryCount: 3,
	BackoffDelaysMs:            []uint64{1000, 2000, 4000, 8000, 16000},
}

// sanitize repairs unworkable values the same way the teacher's
// BridgeTxPoolConfig.sanitize does, rather than letting a zero page
// size or retry count wedge the loop.
// Sanitize repairs unworkable values and is the entry point callers
// outside this package (params) use before persisting or displaying a
// Config; New applies it again internally so a caller can never forget.
func (c Config) Sanitize() Config {
	return c.sanitize()
}

func (c Config) sanitize() Config {
	conf := c
	if conf.BlockTimeMs == 0 {
		conf.BlockTimeMs = DefaultConfig.BlockTimeMs
	}
	if conf.PageSize == 0 {
		conf.PageSize = DefaultConfig.PageSize
	}
	if conf.MaxLogsPerQuery == 0 {
		conf.MaxLogsPerQuery = DefaultConfig.MaxLogsPerQuery
	}
	if conf.BlockSingleQueryRetryCount <= 0 {
		conf.BlockSingleQueryRetryCount = DefaultConfig.BlockSingleQueryRetryCount
	}
	if len(conf.BackoffDelaysMs) == 0 {
		conf.BackoffDelaysMs = DefaultConfig.BackoffDelaysMs
	}
	return conf
}

func (c Config) blockDelay() time.Duration {
	return time.Duration(c.BlockTimeMs) * time.Millisecond
}

func (c Config) backoff(attempt int) time.Duration {
	delays := c.BackoffDelaysMs
	if attempt >= len(delays) {
		attempt = len(delays) - 1
	}
	return time.Duration(delays[attempt]) * time.Millisecond
}

func (c Config) isFallible(kind protocol.EventKind) bool {
	for _, k := range c.FallibleEvents {
		if k == kind {
			return true
		}
	}
	return false
}
