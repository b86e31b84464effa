package simulate

import (
	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmath"
	"clmmstrat/internal/rebalance"
	"clmmstrat/pkg/types"
)

// PositionTracker is the public per-step facade over the package's
// internal tracker: callers drive it one step at a time via RecordStep
// rather than through Simulate's batch loop, making it the canonical
// surface for unit-testing strategy behavior, IL accrual, and drawdown
// tracking in isolation from the full simulation.
type PositionTracker struct {
	tr             *tracker
	entryPrice     types.Price
	initialCapital decimal.Decimal
	rebalanceCost  decimal.Decimal
	step           uint64
	lastIL         decimal.Decimal
}

// NewPositionTracker opens a tracker at initialRange with initialCapital
// already deployed at entryPrice; rebalanceCost is charged against every
// rebalance RecordStep triggers.
func NewPositionTracker(initialRange types.PriceRange, initialCapital, rebalanceCost decimal.Decimal, entryPrice types.Price) *PositionTracker {
	return &PositionTracker{
		tr:             newTracker(initialRange, initialCapital),
		entryPrice:     entryPrice,
		initialCapital: initialCapital,
		rebalanceCost:  rebalanceCost,
	}
}

// CurrentRange returns the tracker's active price range.
func (pt *PositionTracker) CurrentRange() types.PriceRange { return pt.tr.currentRange }

// TotalFees returns fees accrued so far.
func (pt *PositionTracker) TotalFees() decimal.Decimal { return pt.tr.totalFees }

// RebalanceCount returns the number of rebalances applied so far.
func (pt *PositionTracker) RebalanceCount() int { return pt.tr.rebalanceCount }

// Closed reports whether a Close action has ended the tracked run.
func (pt *PositionTracker) Closed() bool { return pt.tr.closed }

// Value returns the tracker's current mark-to-market value: initial
// capital less the absolute impermanent loss observed at the last
// RecordStep, plus fees earned, less rebalance costs paid.
func (pt *PositionTracker) Value() decimal.Decimal {
	return pt.initialCapital.
		Sub(pt.initialCapital.Mul(pt.lastIL.Abs())).
		Add(pt.tr.totalFees).
		Sub(pt.tr.totalRebalanceCost)
}

// MaxDrawdown returns the largest peak-to-trough decline in Value
// observed so far, as a non-positive ratio.
func (pt *PositionTracker) MaxDrawdown() decimal.Decimal { return pt.tr.maxDrawdown }

// RecordStep advances the tracker by one step at price, crediting stepFees
// if the current range contains price. If strategy is non-nil it is
// consulted for an action (rebalance/close/hold), which is applied before
// the step's value and drawdown are recorded. It returns the action taken
// (the zero-value Hold action if strategy is nil) and any error from the
// underlying impermanent-loss computation, which is treated as zero-impact
// for this step rather than aborting the call.
func (pt *PositionTracker) RecordStep(price types.Price, stepFees decimal.Decimal, strategy rebalance.Strategy) (rebalance.Action, error) {
	pt.step++

	il, err := clmath.ILConcentrated(pt.entryPrice.Value, price.Value, pt.tr.currentRange.Lower.Value, pt.tr.currentRange.Upper.Value)
	if err != nil {
		il = decimal.Zero
	}
	pt.lastIL = il

	action := rebalance.Hold
	if strategy != nil {
		ctx := rebalance.StrategyContext{
			CurrentPrice:        price,
			CurrentRange:        pt.tr.currentRange,
			EntryPrice:          pt.entryPrice,
			StepsSinceOpen:      pt.step,
			StepsSinceRebalance: pt.tr.stepsSinceRebalance,
			CurrentILPct:        il,
			TotalFeesEarned:     pt.tr.totalFees,
		}
		action = strategy.Evaluate(ctx)
	}
	pt.tr.applyAction(action, pt.rebalanceCost)

	if pt.tr.currentRange.Contains(price) {
		pt.tr.accrueFee(stepFees)
	}

	pt.tr.observeValue(pt.Value())

	return action, err
}
