// Package submitter is component C6 (spec.md §4.6): a durable,
// nonce-ordered outbox that serialises every outbound chain transaction
// for one signing identity. It is the only allocator of chain nonces
// for that identity — the machine never sends a transaction itself, it
// only emits Actions (spec.md §9 "Actions, not side effects").
package submitter

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/crypto/sha3"

	"github.com/shieldnet/validator/chain"
	"github.com/shieldnet/validator/log"
	"github.com/shieldnet/validator/metrics"
	"github.com/shieldnet/validator/protocol"
	"github.com/shieldnet/validator/storage"
)

var logger = log.NewModuleLogger(log.ModuleSubmitter)

var (
	outboxPending = metrics.NewRegisteredGauge("submitter/outbox.pending", nil)
	sendFailures  = metrics.NewRegisteredCounter("submitter/send.failures", nil)
)

// Addresses resolves an action's target into the contract address it's
// destined for (spec.md §6: every action names either "coordinator" or
// "consensus" as its target).
type Addresses struct {
	Coordinator common.Address
	Consensus   common.Address
}

func (a Addresses) resolve(target protocol.ActionTarget) common.Address {
	if target == protocol.TargetConsensus {
		return a.Consensus
	}
	return a.Coordinator
}

// Submitter is one validator's outbound transaction pipeline.
type Submitter struct {
	cfg       Config
	client    chain.Client
	store     storage.OutboxStore
	encoder   chain.ActionEncoder
	signer    Signer
	addresses Addresses
	chainId   *big.Int
	fees      *chain.FeeEstimator
}

// New returns a Submitter. fees may be shared with the watcher/machine
// if they also need fee estimates within the same tick (spec.md §4.6:
// "a per-block cache so repeated calls in one tick reuse the result").
func New(cfg Config, client chain.Client, store storage.OutboxStore, encoder chain.ActionEncoder, signer Signer, addresses Addresses, chainId *big.Int, fees *chain.FeeEstimator) *Submitter {
	return &Submitter{
		cfg:       cfg.sanitize(),
		client:    client,
		store:     store,
		encoder:   encoder,
		signer:    signer,
		addresses: addresses,
		chainId:   chainId,
		fees:      fees,
	}
}

// Enqueue translates action to a raw transaction via the configured
// encoder, allocates it the account's current pending nonce (or the
// nonce after the outbox's highest entry, when that is larger), and
// durably records it at that nonce (spec.md §4.6 "Enqueue").
func (s *Submitter) Enqueue(ctx context.Context, action protocol.Action) error {
	to := s.addresses.resolve(action.Target())
	unsigned, err := s.encoder.Encode(action, to)
	if err != nil {
		return fmt.Errorf("submitter: encode action: %w", err)
	}
	raw, err := encodeTemplate(unsigned)
	if err != nil {
		return err
	}
	nonce, err := s.client.PendingNonceAt(ctx, s.signer.Address())
	if err != nil {
		return fmt.Errorf("submitter: fetch pending nonce: %w", chain.ClassifyError(err))
	}
	highest, found, err := s.store.HighestNonce(ctx)
	if err != nil {
		return fmt.Errorf("submitter: read highest outbox nonce: %w", err)
	}
	if found && highest+1 > nonce {
		nonce = highest + 1
	}
	entry := &protocol.SubmissionEntry{
		Nonce:    nonce,
		ActionId: deriveActionId(action),
		RawTx:    raw,
		Status:   protocol.SubmissionPending,
	}
	if err := s.store.PutEntry(ctx, entry); err != nil {
		return fmt.Errorf("submitter: persist outbox entry: %w", err)
	}
	return nil
}

// RunTick drives one pass of the submitter's loop (spec.md §4.6
// "Loop"); the daemon runs it once per BlockTick.
func (s *Submitter) RunTick(ctx context.Context, block uint64) error {
	if err := s.markExecutedBelowConfirmed(ctx); err != nil {
		return err
	}
	return s.sendPending(ctx, block)
}

func (s *Submitter) markExecutedBelowConfirmed(ctx context.Context) error {
	confirmed, err := s.client.NonceAt(ctx, s.signer.Address(), nil)
	if err != nil {
		return fmt.Errorf("submitter: fetch confirmed nonce: %w", chain.ClassifyError(err))
	}
	all, err := s.store.ListFrom(ctx, 0)
	if err != nil {
		return fmt.Errorf("submitter: list outbox: %w", err)
	}
	for _, e := range all {
		if e.Nonce < confirmed && !e.IsTerminal() {
			e.Status = protocol.SubmissionExecuted
			if err := s.store.PutEntry(ctx, e); err != nil {
				return fmt.Errorf("submitter: mark executed: %w", err)
			}
		}
	}
	return s.reportPending(ctx)
}

func (s *Submitter) sendPending(ctx context.Context, block uint64) error {
	confirmed, err := s.client.NonceAt(ctx, s.signer.Address(), nil)
	if err != nil {
		return fmt.Errorf("submitter: fetch confirmed nonce: %w", chain.ClassifyError(err))
	}
	entries, err := s.store.ListFrom(ctx, confirmed)
	if err != nil {
		return fmt.Errorf("submitter: list outbox: %w", err)
	}

	for _, e := range entries {
		if e.IsTerminal() {
			continue
		}
		if err := s.sendOne(ctx, block, e); err != nil {
			if errors.Is(err, chain.ErrNonceTooLow) {
				// Covers spec.md §4.6 scenario 5: mark executed without
				// rewriting the hash, and keep going — the next entry may
				// still be sendable.
				e.Status = protocol.SubmissionExecuted
				if putErr := s.store.PutEntry(ctx, e); putErr != nil {
					return fmt.Errorf("submitter: mark nonce-too-low entry executed: %w", putErr)
				}
				continue
			}
			sendFailures.Inc(1)
			logger.Error("send failed, stopping tick", "nonce", e.Nonce, "err", err)
			return err
		}
	}
	return s.reportPending(ctx)
}

func (s *Submitter) sendOne(ctx context.Context, block uint64, e *protocol.SubmissionEntry) error {
	estimate, err := s.fees.Estimate(ctx, block)
	if err != nil {
		return fmt.Errorf("submitter: estimate fee: %w", err)
	}
	stored := chain.FeeEstimate{MaxFeePerGas: scalarValue(e.LastFeeCap), MaxPriorityFeePerGas: scalarValue(e.LastPriorityFeeCap)}
	target := chain.BumpFee(stored, estimate, s.cfg.FeeBumpNumerator, s.cfg.FeeBumpDenominator)

	tmpl, err := decodeTemplate(e.RawTx)
	if err != nil {
		return err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   s.chainId,
		Nonce:     e.Nonce,
		GasTipCap: target.MaxPriorityFeePerGas,
		GasFeeCap: target.MaxFeePerGas,
		Gas:       tmpl.GasLimit,
		To:        &tmpl.To,
		Value:     tmpl.Value,
		Data:      tmpl.Data,
	})
	signed, err := s.signer.Sign(tx)
	if err != nil {
		return fmt.Errorf("submitter: sign transaction: %w", err)
	}

	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return chain.ClassifyError(err)
	}

	hash := signed.Hash()
	e.Status = protocol.SubmissionSubmitted
	e.LastFeeCap = &protocol.Scalar{V: target.MaxFeePerGas}
	e.LastPriorityFeeCap = &protocol.Scalar{V: target.MaxPriorityFeePerGas}
	e.LastTxHash = &hash
	return s.store.PutEntry(ctx, e)
}

func (s *Submitter) reportPending(ctx context.Context) error {
	all, err := s.store.ListFrom(ctx, 0)
	if err != nil {
		return nil
	}
	pending := 0
	for _, e := range all {
		if !e.IsTerminal() {
			pending++
		}
	}
	outboxPending.Update(int64(pending))
	return nil
}

func scalarValue(s *protocol.Scalar) *big.Int {
	if s == nil {
		return nil
	}
	return s.V
}

// deriveActionId computes a stable identifier for an action from its
// Go representation, so an outbox row can later be matched back to the
// signing/rollover state it serves (spec.md §4.5.1 abort detection).
// This is an outbox bookkeeping detail, not a protocol digest, so it
// doesn't need domain separation against protocol/hash.go's tags.
func deriveActionId(action protocol.Action) protocol.ActionId {
	h := sha3.NewLegacyKeccak256()
	fmt.Fprintf(h, "%#v", action)
	var out protocol.ActionId
	copy(out[:], h.Sum(nil))
	return out
}
