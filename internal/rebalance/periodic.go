package rebalance

import (
	"github.com/shopspring/decimal"

	"clmmstrat/pkg/types"
)

// Periodic rebalances every RebalanceInterval steps, optionally only when
// the price has drifted out of the current range, centering the new range
// on the current price with total width CurrentPrice*RangeWidthPct.
type Periodic struct {
	RebalanceInterval  uint64
	RangeWidthPct      decimal.Decimal
	OnlyWhenOutOfRange bool
}

func (p Periodic) Evaluate(ctx StrategyContext) Action {
	if ctx.StepsSinceRebalance < p.RebalanceInterval {
		return Hold
	}
	if p.OnlyWhenOutOfRange && ctx.IsInRange() {
		return Hold
	}

	newRange, err := types.CenteredRange(ctx.CurrentPrice, p.RangeWidthPct)
	if err != nil {
		return Hold
	}
	return Action{Kind: ActionRebalance, NewRange: newRange, Reason: types.ReasonPeriodic}
}

func (Periodic) Name() string { return "periodic" }
