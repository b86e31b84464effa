// Package montecarlo aggregates N independent simulation runs over a
// stochastic price model and searches a range grid for the
// highest-scoring candidate. Iterations are embarrassingly parallel; Run
// fans them out across a worker pool sized to GOMAXPROCS, the same
// goroutine-per-worker/wg idiom internal/engine uses for its background
// loops, scaled down to a bounded worker count rather than one goroutine
// per tracked position.
package montecarlo

import (
	"math"
	"runtime"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/models"
	"clmmstrat/internal/rebalance"
	"clmmstrat/internal/simulate"
	"clmmstrat/pkg/types"
)

// PricePathFactory produces a fresh, independent PricePath for each
// iteration. Stateful models (e.g. GBM with a PRNG) must be cloned per-run
// so iterations are independent; the factory is the seam that enforces
// this — it is called once per iteration, never shared.
type PricePathFactory func(iteration int) models.PricePath

// Run executes iterations independent simulations and aggregates the
// resulting PnL, fee, and IL distributions.
func Run(cfg types.SimulationConfig, pathFactory PricePathFactory, strategy rebalance.Strategy, volume models.VolumeModel, liquidity models.LiquidityModel, iterations int) types.AggregateResult {
	if iterations <= 0 {
		return types.AggregateResult{
			MeanNetPnL: decimal.Zero, MedianNetPnL: decimal.Zero, VaR95NetPnL: decimal.Zero,
			MeanFees: decimal.Zero, MeanIL: decimal.Zero, Iterations: 0,
		}
	}

	summaries := make([]types.SimulationSummary, iterations)

	workers := runtime.GOMAXPROCS(0)
	if workers > iterations {
		workers = iterations
	}
	if workers < 1 {
		workers = 1
	}

	var wg sync.WaitGroup
	jobs := make(chan int)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				path := pathFactory(i).Generate(cfg.Steps)
				summaries[i] = simulate.Simulate(cfg, path, strategy, volume, liquidity)
			}
		}()
	}
	for i := 0; i < iterations; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return aggregate(summaries)
}

func aggregate(summaries []types.SimulationSummary) types.AggregateResult {
	n := len(summaries)
	pnls := make([]decimal.Decimal, n)
	var sumPnL, sumFees, sumIL decimal.Decimal

	for i, s := range summaries {
		pnls[i] = s.NetPnL
		sumPnL = sumPnL.Add(s.NetPnL)
		sumFees = sumFees.Add(s.TotalFeesEarned)
		sumIL = sumIL.Add(s.FinalIL)
	}

	sort.Slice(pnls, func(i, j int) bool { return pnls[i].LessThan(pnls[j]) })

	nDec := decimal.NewFromInt(int64(n))
	meanPnL := sumPnL.DivRound(nDec, 28)
	meanFees := sumFees.DivRound(nDec, 28)
	meanIL := sumIL.DivRound(nDec, 28)

	var sumSqDev decimal.Decimal
	for _, p := range pnls {
		d := p.Sub(meanPnL)
		sumSqDev = sumSqDev.Add(d.Mul(d))
	}
	stdPnL := sqrtDecimal(sumSqDev.DivRound(nDec, 28))

	median := percentile(pnls, 0.5)
	var95 := pnls[int(0.05*float64(n))]

	return types.AggregateResult{
		MeanNetPnL:   meanPnL,
		MedianNetPnL: median,
		VaR95NetPnL:  var95,
		StdNetPnL:    stdPnL,
		MeanFees:     meanFees,
		MeanIL:       meanIL,
		Iterations:   n,
	}
}

// sqrtDecimal computes a population standard deviation via float64 — the
// variance is already a lossy aggregate, so the transient float round trip
// costs nothing the mean/median decimals don't already accept.
func sqrtDecimal(variance decimal.Decimal) decimal.Decimal {
	f, _ := variance.Float64()
	if f <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromFloat(math.Sqrt(f))
}

// percentile returns the value at the given fraction of an ascending-sorted
// slice, using the floor index (e.g. the 5th percentile of I samples is
// sorted[floor(0.05*I)]).
func percentile(sorted []decimal.Decimal, frac float64) decimal.Decimal {
	if len(sorted) == 0 {
		return decimal.Zero
	}
	idx := int(frac * float64(len(sorted)))
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
