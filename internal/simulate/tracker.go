// Package simulate runs a strategy against a generated or replayed price
// path step by step, producing a SimulationSummary. It is the backtest half
// of the engine; internal/executor is its live counterpart. Strategies here
// follow internal/rebalance's Strategy contract, while the executor makes
// its live decisions with its own DecisionEngine.
package simulate

import (
	"github.com/shopspring/decimal"

	"clmmstrat/internal/rebalance"
	"clmmstrat/pkg/types"
)

// tracker holds the mutable per-run state the simulator threads through
// each step: the live range, fee/cost accumulators, and drawdown
// bookkeeping. It has no exported surface of its own; it is driven by
// Simulate's batch loop and by the exported PositionTracker facade.
type tracker struct {
	currentRange        types.PriceRange
	stepsSinceOpen      uint64
	stepsSinceRebalance uint64
	totalFees           decimal.Decimal
	totalRebalanceCost  decimal.Decimal
	rebalanceCount      int
	maxValue            decimal.Decimal
	maxDrawdown         decimal.Decimal
	closed              bool
}

func newTracker(initialRange types.PriceRange, initialCapital decimal.Decimal) *tracker {
	return &tracker{
		currentRange: initialRange,
		totalFees:    decimal.Zero,
		maxValue:     initialCapital,
		maxDrawdown:  decimal.Zero,
	}
}

// applyAction mutates tracker state for a strategy decision already made
// this step. It never touches IL or fees; the caller computes those around
// the call using the range that was current before and after this call.
func (tr *tracker) applyAction(action rebalance.Action, rebalanceCost decimal.Decimal) {
	switch action.Kind {
	case rebalance.ActionRebalance:
		tr.currentRange = action.NewRange
		tr.stepsSinceRebalance = 0
		tr.rebalanceCount++
		tr.totalRebalanceCost = tr.totalRebalanceCost.Add(rebalanceCost)
	case rebalance.ActionClose:
		tr.closed = true
	default:
		tr.stepsSinceRebalance++
	}
}

// accrueFee adds feeAmount to the running total and reports whether it was
// non-zero, so the caller can decide whether to record a FeesCollected event.
func (tr *tracker) accrueFee(feeAmount decimal.Decimal) bool {
	if feeAmount.Sign() <= 0 {
		return false
	}
	tr.totalFees = tr.totalFees.Add(feeAmount)
	return true
}

// observeValue updates the high-water mark and max drawdown for value,
// returning the current drawdown (<=0, or 0 if value is at or above the
// high-water mark).
func (tr *tracker) observeValue(value decimal.Decimal) decimal.Decimal {
	if value.GreaterThan(tr.maxValue) {
		tr.maxValue = value
	}
	if tr.maxValue.IsZero() {
		return decimal.Zero
	}
	drawdown := value.Sub(tr.maxValue).DivRound(tr.maxValue, 28)
	if drawdown.LessThan(tr.maxDrawdown) {
		tr.maxDrawdown = drawdown
	}
	return drawdown
}
