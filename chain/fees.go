package chain

import (
	"context"
	"math/big"
	"sync"

	"github.com/shieldnet/validator/log"
	"github.com/shieldnet/validator/metrics"
)

var logger = log.NewModuleLogger(log.ModuleChain)

var feeEstimateCalls = metrics.NewRegisteredCounter("chain/fees.estimate_calls", nil)

// FeeEstimate is the fee pair the submitter needs for an EIP-1559 send.
type FeeEstimate struct {
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// FeeEstimator caches one estimate per block so that a single tick's
// several sends reuse the same query result (spec.md §4.6: "a per-block
// cache so repeated calls in one tick reuse the result"). A failed
// estimate is cached too, so a bad block doesn't retry the RPC call
// once per pending entry.
type FeeEstimator struct {
	client Client

	mu      sync.Mutex
	block   uint64
	hasRun  bool
	result  FeeEstimate
	err     error
	inFlight chan struct{}
}

// NewFeeEstimator returns an estimator drawing gas prices from client.
func NewFeeEstimator(client Client) *FeeEstimator {
	return &FeeEstimator{client: client}
}

// Estimate returns the fee pair for block, querying the chain at most
// once per block even under concurrent callers within the same tick
// (in-flight sharing, spec.md §4.6 / §9's caching design note).
func (f *FeeEstimator) Estimate(ctx context.Context, block uint64) (FeeEstimate, error) {
	f.mu.Lock()
	if f.hasRun && f.block == block {
		result, err := f.result, f.err
		inFlight := f.inFlight
		f.mu.Unlock()
		if inFlight != nil {
			<-inFlight
			f.mu.Lock()
			result, err = f.result, f.err
			f.mu.Unlock()
		}
		return result, err
	}

	f.block = block
	f.hasRun = true
	f.inFlight = make(chan struct{})
	inFlight := f.inFlight
	f.mu.Unlock()

	feeEstimateCalls.Inc(1)
	result, err := f.query(ctx)

	f.mu.Lock()
	f.result, f.err = result, err
	f.inFlight = nil
	f.mu.Unlock()
	close(inFlight)

	if err != nil {
		logger.Warn("fee estimate failed", "block", block, "err", err)
	}
	return result, err
}

func (f *FeeEstimator) query(ctx context.Context) (FeeEstimate, error) {
	tip, err := f.client.SuggestGasTipCap(ctx)
	if err != nil {
		return FeeEstimate{}, ClassifyError(err)
	}
	price, err := f.client.SuggestGasPrice(ctx)
	if err != nil {
		return FeeEstimate{}, ClassifyError(err)
	}
	return FeeEstimate{MaxFeePerGas: price, MaxPriorityFeePerGas: tip}, nil
}

// BumpFee computes max(stored, estimate) * numerator / denominator for
// each fee field, the reconciliation rule spec.md §4.6 scenario 4
// spells out (e.g. "101% of max(stored, estimate)").
func BumpFee(stored, estimate FeeEstimate, numerator, denominator int64) FeeEstimate {
	return FeeEstimate{
		MaxFeePerGas:         bumpOne(stored.MaxFeePerGas, estimate.MaxFeePerGas, numerator, denominator),
		MaxPriorityFeePerGas: bumpOne(stored.MaxPriorityFeePerGas, estimate.MaxPriorityFeePerGas, numerator, denominator),
	}
}

func bumpOne(stored, estimate *big.Int, numerator, denominator int64) *big.Int {
	base := estimate
	if base == nil {
		base = big.NewInt(0)
	}
	if stored != nil && stored.Cmp(base) > 0 {
		base = stored
	}
	bumped := new(big.Int).Mul(base, big.NewInt(numerator))
	return bumped.Div(bumped, big.NewInt(denominator))
}
