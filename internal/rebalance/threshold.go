package rebalance

import (
	"github.com/shopspring/decimal"

	"clmmstrat/pkg/types"
)

// Threshold reacts to price movement: it closes the position outright if
// IL exceeds MaxILPct, rebalances on out-of-range excursions, and
// rebalances when the price drifts ThresholdPct away from the range
// midpoint. Checked in that order.
type Threshold struct {
	ThresholdPct          decimal.Decimal
	RangeWidthPct         decimal.Decimal
	RebalanceOnOutOfRange bool
	MaxILPct              *decimal.Decimal // nil = no IL-based close
}

func (th Threshold) Evaluate(ctx StrategyContext) Action {
	if th.MaxILPct != nil {
		if ctx.CurrentILPct.Abs().GreaterThan(th.MaxILPct.Abs()) {
			return Action{Kind: ActionClose, Reason: types.ReasonILThreshold}
		}
	}

	if !ctx.IsInRange() && th.RebalanceOnOutOfRange {
		newRange, err := types.CenteredRange(ctx.CurrentPrice, th.RangeWidthPct)
		if err == nil {
			return Action{Kind: ActionRebalance, NewRange: newRange, Reason: types.ReasonOutOfRange}
		}
	}

	if ctx.PriceChangeFromMidpoint().Abs().GreaterThanOrEqual(th.ThresholdPct) {
		newRange, err := types.CenteredRange(ctx.CurrentPrice, th.RangeWidthPct)
		if err == nil {
			return Action{Kind: ActionRebalance, NewRange: newRange, Reason: types.ReasonPriceThreshold}
		}
	}

	return Hold
}

func (Threshold) Name() string { return "threshold" }
