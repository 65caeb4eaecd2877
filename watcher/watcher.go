// Package watcher is component C1: it turns a raw chain endpoint into
// the canonical, gap-free, in-order Transition stream the state
// machine consumes (spec.md §4.1). It owns exactly one piece of
// durable state, the follow cursor, persisted only after a transition
// has been handed to and accepted by its caller — giving at-least-once
// delivery with in-order replay after a crash.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/shieldnet/validator/chain"
	"github.com/shieldnet/validator/log"
	"github.com/shieldnet/validator/metrics"
	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
)

var logger = log.NewModuleLogger(log.ModuleWatcher)

var (
	warpPages  = metrics.NewRegisteredCounter("watcher/warp.pages", nil)
	reorgDepth = metrics.NewRegisteredGauge("watcher/reorg.depth", nil)
)

// Handler is called once per Transition, in order. Returning an error
// stops the run loop without advancing the cursor, so the same
// transition is replayed from the last persisted cursor on restart.
type Handler func(protocol.Transition) error

// Watcher drives the warp/follow state machine over a chain.Client.
type Watcher struct {
	cfg       Config
	client    chain.Client
	decoder   chain.LogDecoder
	store     storage.CursorStore
	addresses []common.Address
	ring      *reorgRing
}

// New returns a Watcher watching addresses for the topics chain.AllTopics
// enumerates.
func New(cfg Config, client chain.Client, decoder chain.LogDecoder, store storage.CursorStore, addresses []common.Address) (*Watcher, error) {
	ring, err := newReorgRing(cfg.sanitize().MaxReorgDepth)
	if err != nil {
		return nil, fmt.Errorf("watcher: build reorg ring: %w", err)
	}
	return &Watcher{
		cfg:       cfg.sanitize(),
		client:    client,
		decoder:   decoder,
		store:     store,
		addresses: addresses,
		ring:      ring,
	}, nil
}

// Run warps from the persisted cursor up to the chain head, then
// follows new blocks until ctx is cancelled or a fatal error occurs
// (protocol.ErrFatal-wrapping, e.g. protocol.ErrReorgTooDeep).
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	cursor, ok, err := w.store.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("watcher: load cursor: %w", err)
	}

	head, err := w.headNumber(ctx)
	if err != nil {
		return fmt.Errorf("watcher: fetch head: %w", err)
	}
	if err := w.warp(ctx, cursor, ok, head, handle); err != nil {
		return err
	}
	return w.follow(ctx, handle)
}

func (w *Watcher) headNumber(ctx context.Context) (protocol.BlockNumber, error) {
	h, err := w.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return 0, err
	}
	return protocol.BlockNumber(h.Number.Uint64()), nil
}

// --- warp mode ---------------------------------------------------------

// warp pulls every event from cursor up to and including block `to`
// via ranged getLogs, halving the page on error and splitting per
// event kind once halved to a single block (spec.md §4.1 "Warp mode").
// It resumes at cursor.Block itself (not cursor.Block+1): a crash may
// have persisted the cursor mid-block, after some but not all of that
// block's logs, so the first block of the first page is re-fetched
// and filtered down to logs at or after cursor.LogIndex+1.
func (w *Watcher) warp(ctx context.Context, cursor protocol.Cursor, haveCursor bool, to protocol.BlockNumber, handle Handler) error {
	start := cursor.Block
	minLogIndex := cursor.LogIndex + 1
	if !haveCursor {
		start = 1
		minLogIndex = 0
	}
	if start > to {
		return nil
	}
	pageSize := protocol.BlockNumber(w.cfg.PageSize)

	for start <= to {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		end := start + pageSize - 1
		if end > to {
			end = to
		}
		logs, err := w.queryRange(ctx, start, end, nil)
		if err != nil {
			if pageSize > 1 {
				pageSize /= 2
				continue
			}
			// A single block still fails: split by event kind.
			logs, err = w.queryRangeByEvent(ctx, start, end)
			if err != nil {
				return fmt.Errorf("watcher: warp range [%d,%d]: %w", start, end, err)
			}
		}

		logs = dropBelowInBlock(logs, start, minLogIndex)
		if err := w.deliverLogs(ctx, logs, handle); err != nil {
			return err
		}
		if err := w.deliverBlockTicks(ctx, start, end, handle); err != nil {
			return err
		}

		warpPages.Inc(1)
		start = end + 1
		minLogIndex = 0
		pageSize = protocol.BlockNumber(w.cfg.PageSize)
	}
	return nil
}

// dropBelowInBlock filters logs at block == atBlock whose index is
// below minIndex, leaving every other block's logs untouched.
func dropBelowInBlock(logs []types.Log, atBlock protocol.BlockNumber, minIndex protocol.LogIndex) []types.Log {
	if minIndex == 0 {
		return logs
	}
	out := logs[:0]
	for _, l := range logs {
		if protocol.BlockNumber(l.BlockNumber) == atBlock && protocol.LogIndex(l.Index) < minIndex {
			continue
		}
		out = append(out, l)
	}
	return out
}

func (w *Watcher) queryRange(ctx context.Context, from, to protocol.BlockNumber, topics []common.Hash) ([]types.Log, error) {
	q := ethereum.FilterQuery{
		FromBlock: bigFromBlock(from),
		ToBlock:   bigFromBlock(to),
		Addresses: w.addresses,
	}
	if topics != nil {
		q.Topics = [][]common.Hash{topics}
	}
	logs, err := w.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, err
	}
	if uint64(len(logs)) >= w.cfg.MaxLogsPerQuery {
		return nil, fmt.Errorf("watcher: range [%d,%d] returned %d logs, overflow", from, to, len(logs))
	}
	return logs, nil
}

// queryRangeByEvent retries a single, still-failing block one event
// kind at a time, dropping fallible kinds that keep failing after
// BlockSingleQueryRetryCount attempts.
func (w *Watcher) queryRangeByEvent(ctx context.Context, from, to protocol.BlockNumber) ([]types.Log, error) {
	var out []types.Log
	for _, topic := range chain.AllTopics() {
		kind, _ := chain.KindForTopic(topic)
		logs, err := w.retryEventQuery(ctx, from, to, topic)
		if err != nil {
			if w.cfg.isFallible(kind) {
				logger.Warn("dropping fallible event after retries", "kind", kind, "from", from, "to", to, "err", err)
				continue
			}
			return nil, err
		}
		out = append(out, logs...)
	}
	return out, nil
}

func (w *Watcher) retryEventQuery(ctx context.Context, from, to protocol.BlockNumber, topic common.Hash) ([]types.Log, error) {
	var lastErr error
	for attempt := 0; attempt < w.cfg.BlockSingleQueryRetryCount; attempt++ {
		logs, err := w.queryRange(ctx, from, to, []common.Hash{topic})
		if err == nil {
			return logs, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.cfg.backoff(attempt)):
		}
	}
	return nil, lastErr
}

// --- follow mode ---------------------------------------------------------

// follow polls for new block heights and, per new block, uses the
// header's logsBloom to skip getLogs entirely when nothing watched can
// possibly be present (spec.md §4.1 "Follow mode").
func (w *Watcher) follow(ctx context.Context, handle Handler) error {
	cursor, ok, err := w.store.GetCursor(ctx)
	if err != nil {
		return fmt.Errorf("watcher: load cursor: %w", err)
	}
	// Resume at cursor.Block itself, not cursor.Block+1: the cursor may
	// have been persisted mid-block (after one of several logs in that
	// block, before the rest). Re-fetching the block and skipping
	// already-delivered log indices keeps delivery at-least-once without
	// ever regressing past what was already accepted.
	next := cursor.Block
	minLogIndex := cursor.LogIndex + 1
	if !ok {
		next = 1
		minLogIndex = 0
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.blockDelay()):
		}

		header, err := w.headerWithRetry(ctx, uint64(next))
		if err != nil {
			if isRateLimited(err) {
				continue
			}
			return fmt.Errorf("watcher: fetch header %d: %w", next, err)
		}
		if header == nil {
			continue // not mined yet
		}

		if err := w.checkReorg(ctx, next, header); err != nil {
			return err
		}
		w.ring.remember(next, header.Hash())

		logs, err := w.logsForBlock(ctx, next, header)
		if err != nil {
			return fmt.Errorf("watcher: block %d logs: %w", next, err)
		}
		logs = dropBelow(logs, minLogIndex)
		if err := w.deliverLogs(ctx, logs, handle); err != nil {
			return err
		}
		if err := w.deliverOne(ctx, protocol.BlockTick{Block: next}, handle); err != nil {
			return err
		}
		next++
		minLogIndex = 0
	}
}

// dropBelow filters out logs already delivered before a crash-induced
// resume (spec.md §4.1: "in-order replay after a crash").
func dropBelow(logs []types.Log, minIndex protocol.LogIndex) []types.Log {
	if minIndex == 0 {
		return logs
	}
	out := logs[:0]
	for _, l := range logs {
		if protocol.LogIndex(l.Index) >= minIndex {
			out = append(out, l)
		}
	}
	return out
}

func (w *Watcher) headerWithRetry(ctx context.Context, number uint64) (*types.Header, error) {
	h, err := w.client.HeaderByNumber(ctx, new(big.Int).SetUint64(number))
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, nil
		}
		return nil, err
	}
	return h, nil
}

// checkReorg detects a parent-hash mismatch against what was
// remembered for the previous height and, if found, walks back along
// the new fork's parent chain looking for a block this watcher has
// already seen, bounded by MaxReorgDepth. Finding one means the reorg
// is within window (spec.md §4.1/§8 scenario 3: an "uncle" signal,
// logged only — events are append-only, so the machine has nothing to
// undo). Not finding one within the bound is fatal.
func (w *Watcher) checkReorg(ctx context.Context, block protocol.BlockNumber, header *types.Header) error {
	parent := block - 1
	known, ok := w.ring.lookup(parent)
	if !ok || known == header.ParentHash {
		return nil
	}

	cursor := header
	for depth := uint64(1); depth <= w.cfg.MaxReorgDepth; depth++ {
		ancestor, err := w.client.BlockByHash(ctx, cursor.ParentHash)
		if err != nil {
			return fmt.Errorf("watcher: walk reorg ancestry: %w", err)
		}
		at := protocol.BlockNumber(ancestor.Number.Uint64())
		if seen, ok := w.ring.lookup(at); ok && seen == ancestor.Hash() {
			reorgDepth.Update(int64(depth))
			logger.Warn("uncle: reorg within window", "depth", depth, "block", block)
			return nil
		}
		cursor = ancestor
	}
	return fmt.Errorf("watcher: %w: %w", protocol.ErrFatal, protocol.ErrReorgTooDeep)
}

// logsForBlock inspects header.Bloom before paying for a getLogs call:
// if none of the watched addresses or event selectors could appear in
// this block, there is nothing to fetch.
func (w *Watcher) logsForBlock(ctx context.Context, block protocol.BlockNumber, header *types.Header) ([]types.Log, error) {
	if !w.maybePresent(header.Bloom) {
		return nil, nil
	}
	logs, err := w.client.FilterLogsByBlockHash(ctx, header.Hash(), w.addresses, [][]common.Hash{chain.AllTopics()})
	if err == nil {
		return logs, nil
	}

	for attempt := 0; attempt < w.cfg.BlockSingleQueryRetryCount; attempt++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(w.cfg.backoff(attempt)):
		}
		logs, err = w.client.FilterLogsByBlockHash(ctx, header.Hash(), w.addresses, [][]common.Hash{chain.AllTopics()})
		if err == nil {
			return logs, nil
		}
	}

	// Still failing: split per event kind, skipping ones the bloom
	// rules out and dropping fallible ones that keep failing.
	var out []types.Log
	for _, topic := range chain.AllTopics() {
		if !header.Bloom.Test(topic.Bytes()) {
			continue
		}
		kind, _ := chain.KindForTopic(topic)
		logs, err := w.client.FilterLogsByBlockHash(ctx, header.Hash(), w.addresses, [][]common.Hash{{topic}})
		if err != nil {
			if w.cfg.isFallible(kind) {
				logger.Warn("dropping fallible event for block", "kind", kind, "block", block, "err", err)
				continue
			}
			return nil, err
		}
		out = append(out, logs...)
	}
	return out, nil
}

// maybePresent is the bloom short-circuit: go-ethereum's
// types.Bloom.Test reports whether data might be a member (false
// positives allowed, false negatives not), the standard way the
// go-ethereum ecosystem (e.g. eth/filters) prunes getLogs calls
// against a header's logsBloom.
func (w *Watcher) maybePresent(bloom types.Bloom) bool {
	for _, addr := range w.addresses {
		if bloom.Test(addr.Bytes()) {
			return true
		}
	}
	for _, topic := range chain.AllTopics() {
		if bloom.Test(topic.Bytes()) {
			return true
		}
	}
	return false
}

// --- delivery --------------------------------------------------------

func (w *Watcher) deliverLogs(ctx context.Context, logs []types.Log, handle Handler) error {
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		return logs[i].Index < logs[j].Index
	})
	for _, l := range logs {
		kind, ok := chain.KindForTopic(l.Topics[0])
		if !ok {
			continue
		}
		args, err := w.decoder.Decode(kind, l)
		if err != nil {
			if w.cfg.isFallible(kind) {
				logger.Warn("dropping fallible event, decode failed", "kind", kind, "err", err)
				continue
			}
			return fmt.Errorf("watcher: decode %s: %w", kind, err)
		}
		ev := protocol.Event{Block: protocol.BlockNumber(l.BlockNumber), LogIndex: protocol.LogIndex(l.Index), Args: args}
		if err := w.deliverOne(ctx, ev, handle); err != nil {
			return err
		}
	}
	return nil
}

// deliverBlockTicks emits one BlockTick per block in [from,to] that
// warp mode just consumed, so every block still produces a tick even
// when it carried no watched logs.
func (w *Watcher) deliverBlockTicks(ctx context.Context, from, to protocol.BlockNumber, handle Handler) error {
	for b := from; b <= to; b++ {
		if err := w.deliverOne(ctx, protocol.BlockTick{Block: b}, handle); err != nil {
			return err
		}
	}
	return nil
}

// deliverOne hands t to handle and only then persists the cursor,
// giving at-least-once delivery with in-order replay after a crash
// (spec.md §4.1).
func (w *Watcher) deliverOne(ctx context.Context, t protocol.Transition, handle Handler) error {
	if err := handle(t); err != nil {
		return fmt.Errorf("watcher: handler rejected %s: %w", t.Cursor(), err)
	}
	if err := w.store.PutCursor(ctx, t.Cursor()); err != nil {
		return fmt.Errorf("watcher: persist cursor %s: %w", t.Cursor(), err)
	}
	return nil
}

func bigFromBlock(b protocol.BlockNumber) *big.Int {
	return new(big.Int).SetUint64(uint64(b))
}

func isRateLimited(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(chain.ClassifyError(err), chain.ErrRateLimited) || strings.Contains(strings.ToLower(err.Error()), "429")
}
