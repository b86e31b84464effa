package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// SimulationConfig parameterizes a single backtest run over a price path.
// LPLiquidity is a plain decimal rather than the 128-bit on-chain liquidity
// type: the simulator only ever uses it as a fee-share ratio numerator,
// never as an amount to be settled on-chain (that's Position.Liquidity's
// job, which stays a uint256). The pool's own liquidity is supplied
// per-step by a LiquidityModel rather than fixed here.
type SimulationConfig struct {
	InitialCapital decimal.Decimal
	InitialRange   PriceRange
	FeeRate        decimal.Decimal // in [0, 1]
	LPLiquidity    decimal.Decimal // the simulated position's own liquidity
	RebalanceCost  decimal.Decimal
	Steps          int // steps >= 0
	StepDuration   time.Duration
}

// RangeEventKind distinguishes in-range/out-of-range transitions recorded
// during a simulation.
type RangeEventKind string

const (
	RangeEventBackInRange RangeEventKind = "back_in_range"
	RangeEventOutOfRange  RangeEventKind = "out_of_range"
)

// SimStepError is a diagnostic record of a per-step math failure that the
// simulator treated as zero-impact and continued past rather than
// aborting the run.
type SimStepError struct {
	Step int
	Op   string
	Err  string
}

// SimulationSummary is the derived, read-only result of running the
// simulator to completion (or to an early Close).
type SimulationSummary struct {
	FinalValue         decimal.Decimal
	NetPnL             decimal.Decimal
	NetPnLPct          decimal.Decimal
	HodlValue          decimal.Decimal
	VsHodl             decimal.Decimal
	TotalFeesEarned    decimal.Decimal
	MaxIL              decimal.Decimal // most negative IL observed
	FinalIL            decimal.Decimal
	MaxDrawdown        decimal.Decimal
	RebalanceCount     int
	TotalRebalanceCost decimal.Decimal
	TimeInRangePct     decimal.Decimal
	StepsExecuted      int
	Closed             bool

	// Per-step histories, index-aligned with the executed steps.
	Prices       []decimal.Decimal
	PnLHistory   []decimal.Decimal
	ILHistory    []decimal.Decimal
	FeeHistory   []decimal.Decimal
	RangeHistory []PriceRange

	// Events recorded during the run (range transitions, rebalances,
	// fee collections, close); a light-weight projection suitable for
	// reporting, distinct from the live LifecycleEvent log.
	Events []SimEvent

	// StepErrors accumulates any per-step math failures that were
	// swallowed and treated as zero-impact.
	StepErrors []SimStepError

	SharpeRatio *decimal.Decimal
}

// SimEvent is a single notable occurrence during a simulation run.
type SimEvent struct {
	Step int
	Kind string
	Note string
}
