package simulate

import (
	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmath"
	"clmmstrat/internal/models"
	"clmmstrat/internal/rebalance"
	"clmmstrat/pkg/types"
)

// Simulate drives strategy over path, a price-path already generated by a
// models.PricePath (path[0] is the entry price, path[1:] are the per-step
// prices), accruing fees from volume and liquidity at each in-range step.
// It implements the per-step sequence in order: range-transition event,
// impermanent-loss recompute, strategy evaluation, fee accrual on the
// resulting range, value/drawdown bookkeeping. A Close action ends the run
// after that step's accounting; it earns no further fees.
func Simulate(cfg types.SimulationConfig, path []types.Price, strategy rebalance.Strategy, volume models.VolumeModel, liquidity models.LiquidityModel) types.SimulationSummary {
	if cfg.Steps <= 0 || len(path) == 0 {
		return emptyResult(cfg)
	}

	entry := path[0]
	tr := newTracker(cfg.InitialRange, cfg.InitialCapital)
	wasInRange := tr.currentRange.Contains(entry)

	maxIL := decimal.Zero
	var lastIL decimal.Decimal
	var lastValue decimal.Decimal = cfg.InitialCapital
	stepsInRange := 0
	stepsExecuted := 0

	var events []types.SimEvent
	var stepErrors []types.SimStepError
	var prices, pnlHistory, ilHistory, feeHistory []decimal.Decimal
	var rangeHistory []types.PriceRange

	limit := cfg.Steps
	if limit > len(path)-1 {
		limit = len(path) - 1
	}

	for k := 1; k <= limit; k++ {
		p := path[k]

		inRange := tr.currentRange.Contains(p)
		if inRange != wasInRange {
			kind := types.RangeEventOutOfRange
			if inRange {
				kind = types.RangeEventBackInRange
			}
			events = append(events, types.SimEvent{Step: k, Kind: string(kind)})
		}
		wasInRange = inRange

		il, err := clmath.ILConcentrated(entry.Value, p.Value, tr.currentRange.Lower.Value, tr.currentRange.Upper.Value)
		if err != nil {
			stepErrors = append(stepErrors, types.SimStepError{Step: k, Op: "il_concentrated", Err: err.Error()})
			il = decimal.Zero
		}
		if il.LessThan(maxIL) {
			maxIL = il
		}

		ctx := rebalance.StrategyContext{
			CurrentPrice:        p,
			CurrentRange:        tr.currentRange,
			EntryPrice:          entry,
			StepsSinceOpen:      uint64(k),
			StepsSinceRebalance: tr.stepsSinceRebalance,
			CurrentILPct:        il,
			TotalFeesEarned:     tr.totalFees,
		}
		action := strategy.Evaluate(ctx)
		tr.applyAction(action, cfg.RebalanceCost)

		switch action.Kind {
		case rebalance.ActionRebalance:
			events = append(events, types.SimEvent{Step: k, Kind: string(types.EventRebalanced), Note: string(action.Reason)})
			inRange = tr.currentRange.Contains(p)
			wasInRange = inRange
		case rebalance.ActionClose:
			events = append(events, types.SimEvent{Step: k, Kind: string(types.EventPositionClosed), Note: string(action.Reason)})
		}

		if inRange {
			vol := volume.Volume(k, p.Value)
			poolLiquidity := liquidity.Liquidity(k, p.Value)
			if poolLiquidity.Sign() > 0 {
				lpShare := cfg.LPLiquidity.DivRound(poolLiquidity, 28)
				fee := vol.Mul(cfg.FeeRate).Mul(lpShare)
				if tr.accrueFee(fee) {
					events = append(events, types.SimEvent{Step: k, Kind: string(types.EventFeesCollected)})
				}
			}
			stepsInRange++
		}

		value := cfg.InitialCapital.Sub(cfg.InitialCapital.Mul(il.Abs())).Add(tr.totalFees).Sub(tr.totalRebalanceCost)
		tr.observeValue(value)

		prices = append(prices, p.Value)
		pnlHistory = append(pnlHistory, value.Sub(cfg.InitialCapital))
		ilHistory = append(ilHistory, il)
		feeHistory = append(feeHistory, tr.totalFees)
		rangeHistory = append(rangeHistory, tr.currentRange)

		lastIL = il
		lastValue = value
		stepsExecuted = k

		if tr.closed {
			break
		}
	}

	hodlValue := cfg.InitialCapital.Mul(path[stepsExecuted].Value.DivRound(entry.Value, 28))
	timeInRangePct := decimal.Zero
	if stepsExecuted > 0 {
		timeInRangePct = decimal.NewFromInt(int64(stepsInRange)).DivRound(decimal.NewFromInt(int64(stepsExecuted)), 28)
	}

	return types.SimulationSummary{
		FinalValue:         lastValue,
		NetPnL:             lastValue.Sub(cfg.InitialCapital),
		NetPnLPct:          safeRatio(lastValue.Sub(cfg.InitialCapital), cfg.InitialCapital),
		HodlValue:          hodlValue,
		VsHodl:             lastValue.Sub(hodlValue),
		TotalFeesEarned:    tr.totalFees,
		MaxIL:              maxIL,
		FinalIL:            lastIL,
		MaxDrawdown:        tr.maxDrawdown,
		RebalanceCount:     tr.rebalanceCount,
		TotalRebalanceCost: tr.totalRebalanceCost,
		TimeInRangePct:     timeInRangePct,
		StepsExecuted:      stepsExecuted,
		Closed:             tr.closed,
		Prices:             prices,
		PnLHistory:         pnlHistory,
		ILHistory:          ilHistory,
		FeeHistory:         feeHistory,
		RangeHistory:       rangeHistory,
		Events:             events,
		StepErrors:         stepErrors,
	}
}

func safeRatio(num, denom decimal.Decimal) decimal.Decimal {
	if denom.IsZero() {
		return decimal.Zero
	}
	return num.DivRound(denom, 28)
}

// emptyResult is the zero-activity summary for an empty price path or a
// zero-step configuration: the position never opens against a live price,
// so it is marked at cost with no fees, no IL, and no time in range.
func emptyResult(cfg types.SimulationConfig) types.SimulationSummary {
	return types.SimulationSummary{
		FinalValue:         cfg.InitialCapital,
		NetPnL:             decimal.Zero,
		NetPnLPct:          decimal.Zero,
		HodlValue:          cfg.InitialCapital,
		VsHodl:             decimal.Zero,
		TotalFeesEarned:    decimal.Zero,
		MaxIL:              decimal.Zero,
		FinalIL:            decimal.Zero,
		MaxDrawdown:        decimal.Zero,
		RebalanceCount:     0,
		TotalRebalanceCost: decimal.Zero,
		TimeInRangePct:     decimal.Zero,
		StepsExecuted:      0,
		Closed:             false,
	}
}
