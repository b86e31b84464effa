// Package executor is the live analogue of internal/rebalance: the
// DecisionEngine maps monitored on-chain state to an action, and the
// RebalanceExecutor carries that action out through the chain collaborator
// in a five-phase sequence. Its tick-loop shape (evaluate, gate on the
// breaker, act, record) mirrors internal/engine's own dispatch loop,
// generalized from a single cadence to per-decision gating.
package executor

import (
	"github.com/shopspring/decimal"

	"clmmstrat/internal/monitor"
	"clmmstrat/pkg/types"
)

// DecisionKind is the closed set of actions the live decision engine can
// return.
type DecisionKind string

const (
	DecisionHold              DecisionKind = "hold"
	DecisionRebalance         DecisionKind = "rebalance"
	DecisionClose             DecisionKind = "close"
	DecisionIncreaseLiquidity DecisionKind = "increase_liquidity"
	DecisionDecreaseLiquidity DecisionKind = "decrease_liquidity"
	DecisionCollectFees       DecisionKind = "collect_fees"
)

// Decision is a tagged union over the live action space, shaped the same
// way internal/rebalance.Action is: a closed set of variants rather than
// an open-world interface.
type Decision struct {
	Kind         DecisionKind
	NewTickLower int32
	NewTickUpper int32
	Amount       *decimal.Decimal // set for IncreaseLiquidity/DecreaseLiquidity
}

// RequiresTransaction reports whether carrying out d needs an on-chain
// transaction; only Hold does not.
func (d Decision) RequiresTransaction() bool {
	return d.Kind != DecisionHold
}

// DecisionConfig tunes the live decision engine.
type DecisionConfig struct {
	RebalanceOnOutOfRange     bool
	ILThresholdPct            decimal.Decimal
	MinHoursBetweenRebalances uint64
	TargetHalfWidthPct        decimal.Decimal
}

// DecisionEngine evaluates monitored positions against current pool state
// and produces a Decision.
type DecisionEngine struct {
	cfg DecisionConfig
}

// NewDecisionEngine creates a DecisionEngine with the given configuration.
func NewDecisionEngine(cfg DecisionConfig) *DecisionEngine {
	return &DecisionEngine{cfg: cfg}
}

// Decide evaluates a single monitored position. Unlike the backtest
// Threshold strategy, IL exceeding the configured threshold triggers a
// Rebalance here, never a Close — live closes are reserved for
// manual/emergency paths.
func (e *DecisionEngine) Decide(mp monitor.MonitoredPosition, pool types.PoolState, hoursSinceRebalance uint64) Decision {
	if mp.ILPct.Abs().GreaterThan(e.cfg.ILThresholdPct) && hoursSinceRebalance >= e.cfg.MinHoursBetweenRebalances {
		return e.rebalanceTo(pool)
	}

	if !mp.InRange && e.cfg.RebalanceOnOutOfRange && hoursSinceRebalance >= e.cfg.MinHoursBetweenRebalances {
		return e.rebalanceTo(pool)
	}

	return Decision{Kind: DecisionHold}
}

func (e *DecisionEngine) rebalanceTo(pool types.PoolState) Decision {
	newRange, err := types.CenteredRange(pool.CurrentPrice, e.cfg.TargetHalfWidthPct.Mul(decimal.NewFromInt(2)))
	if err != nil {
		return Decision{Kind: DecisionHold}
	}
	lowerTick, errL := tickFromPrice(newRange.Lower)
	upperTick, errU := tickFromPrice(newRange.Upper)
	if errL != nil || errU != nil {
		return Decision{Kind: DecisionHold}
	}
	return Decision{Kind: DecisionRebalance, NewTickLower: lowerTick, NewTickUpper: upperTick}
}
