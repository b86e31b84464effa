// Package rebalance implements the pluggable per-step rebalance strategies
// the simulator evaluates: Static, Periodic, and Threshold. The live
// decision engine in internal/executor has its own decision logic and does
// not evaluate these strategies.
package rebalance

import (
	"github.com/shopspring/decimal"

	"clmmstrat/pkg/types"
)

// StrategyContext is the read-only view a strategy evaluates per step.
type StrategyContext struct {
	CurrentPrice        types.Price
	CurrentRange        types.PriceRange
	EntryPrice          types.Price
	StepsSinceOpen      uint64
	StepsSinceRebalance uint64
	CurrentILPct        decimal.Decimal
	TotalFeesEarned     decimal.Decimal
}

// IsInRange reports whether CurrentPrice falls within CurrentRange.
func (c StrategyContext) IsInRange() bool {
	return c.CurrentRange.Contains(c.CurrentPrice)
}

// PriceChangeFromMidpoint returns (price - midpoint) / midpoint.
func (c StrategyContext) PriceChangeFromMidpoint() decimal.Decimal {
	mid := c.CurrentRange.Midpoint()
	if mid.IsZero() {
		return decimal.Zero
	}
	return c.CurrentPrice.Value.Sub(mid).DivRound(mid, 28)
}

// ActionKind is the closed set of actions a strategy may return.
type ActionKind string

const (
	ActionHold      ActionKind = "hold"
	ActionRebalance ActionKind = "rebalance"
	ActionClose     ActionKind = "close"
)

// Action is a tagged union over {Hold, Rebalance{NewRange,Reason},
// Close{Reason}}, represented as a struct with a Kind discriminator rather
// than a Go interface so the simulator and optimizer can pattern-match on
// Kind directly.
type Action struct {
	Kind     ActionKind
	NewRange types.PriceRange // set when Kind == ActionRebalance
	Reason   types.RebalanceReason
}

// Hold is the canonical Hold action.
var Hold = Action{Kind: ActionHold}

// Strategy maps a StrategyContext to an Action.
type Strategy interface {
	Evaluate(ctx StrategyContext) Action
	Name() string
}

// Static always holds; it is the no-rebalance baseline used for comparison.
type Static struct{}

func (Static) Evaluate(ctx StrategyContext) Action { return Hold }
func (Static) Name() string                        { return "static" }
