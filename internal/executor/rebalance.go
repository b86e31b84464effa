package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
	"clmmstrat/internal/collab"
	"clmmstrat/internal/lifecycle"
	"clmmstrat/pkg/types"
)

// RebalanceParams is the typed input to a single rebalance operation.
type RebalanceParams struct {
	Position         types.Position
	Pool             types.PoolState
	OldRange         types.PriceRange
	NewRange         types.PriceRange
	CurrentLiquidity decimal.Decimal
	Reason           types.RebalanceReason
	CurrentIL        decimal.Decimal
}

// RebalanceConfig tunes the executor's profitability gate and phase
// ordering.
type RebalanceConfig struct {
	MinProfitMultiplier decimal.Decimal
	CollectFeesFirst    bool
	DryRun              bool
	EstimatedTxCostUSD  decimal.Decimal
}

// ExpectedBenefitFn estimates the USD benefit of rebalancing into NewRange,
// typically a short Monte-Carlo evaluation or a simpler heuristic; kept as
// an injected function so the executor's phase sequencing stays decoupled
// from simulation internals.
type ExpectedBenefitFn func(p RebalanceParams) decimal.Decimal

// RebalanceOutcome reports which of the five phases completed and the
// final result.
type RebalanceOutcome struct {
	PhasesCompleted []string
	Signature       string
	Err             error
}

// RebalanceExecutor carries out RebalanceParams via the CLMMProgram
// collaborator. It records two kinds of event to the LifecycleTracker: a
// FeesCollected event when the optional fee collection succeeds, and a
// single Rebalanced event once all five phases have completed. The
// decrease, close, open and increase phases are not recorded individually,
// and a failed sequence records no Rebalanced event.
type RebalanceExecutor struct {
	program         collab.CLMMProgram
	tracker         *lifecycle.Tracker
	cfg             RebalanceConfig
	expectedBenefit ExpectedBenefitFn
	logger          *slog.Logger
}

// NewRebalanceExecutor wires a RebalanceExecutor against a CLMMProgram
// collaborator and the shared LifecycleTracker singleton.
func NewRebalanceExecutor(program collab.CLMMProgram, tracker *lifecycle.Tracker, cfg RebalanceConfig, benefit ExpectedBenefitFn, logger *slog.Logger) *RebalanceExecutor {
	return &RebalanceExecutor{
		program:         program,
		tracker:         tracker,
		cfg:             cfg,
		expectedBenefit: benefit,
		logger:          logger.With("component", "rebalance_executor"),
	}
}

// Execute runs the five-phase sequence:
//  1. profitability check
//  2. optional fee collection (non-fatal on failure)
//  3. decrease liquidity on the old position
//  4. close old position, open new position at the new range
//  5. increase liquidity on the new position
//
// Failures in phase 3 or later are fatal and returned as a structured
// Partial failure without compensation; the reconciler is expected to
// observe the resulting inconsistent state on its next sweep.
func (ex *RebalanceExecutor) Execute(ctx context.Context, p RebalanceParams) RebalanceOutcome {
	expected := ex.expectedBenefit(p)
	minBenefit := ex.cfg.MinProfitMultiplier.Mul(ex.cfg.EstimatedTxCostUSD)
	if expected.LessThan(minBenefit) {
		return RebalanceOutcome{Err: clmmerr.New("executor.rebalance", clmmerr.Rejected, fmt.Errorf("not profitable: expected %s < required %s", expected, minBenefit))}
	}

	if ex.cfg.DryRun {
		return RebalanceOutcome{PhasesCompleted: []string{"profitability_check", "dry_run"}, Signature: "dry-run"}
	}

	completed := []string{"profitability_check"}

	if ex.cfg.CollectFeesFirst {
		if _, err := ex.program.CollectFees(ctx, collab.CollectFeesParams{PositionID: p.Position.ID}); err != nil {
			ex.logger.Warn("fee collection failed, continuing", "position", p.Position.ID, "error", err)
		} else {
			completed = append(completed, "collect_fees")
			ex.recordFeesCollected(p)
		}
	}

	decOut, err := ex.program.DecreaseLiquidity(ctx, collab.DecreaseLiquidityParams{PositionID: p.Position.ID})
	if err != nil || !decOut.OK {
		return ex.fatal(p, completed, "decrease_liquidity", err, decOut.Error)
	}
	completed = append(completed, "decrease_liquidity")

	closeOut, err := ex.program.ClosePosition(ctx, collab.ClosePositionParams{PositionID: p.Position.ID})
	if err != nil || !closeOut.OK {
		return ex.fatal(p, completed, "close_position", err, closeOut.Error)
	}
	completed = append(completed, "close_position")

	lowerTick, _ := tickFromPrice(p.NewRange.Lower)
	upperTick, _ := tickFromPrice(p.NewRange.Upper)
	openOut, err := ex.program.OpenPosition(ctx, collab.OpenPositionParams{
		Pool: p.Position.Pool, Owner: p.Position.Owner, TickLower: lowerTick, TickUpper: upperTick,
	})
	if err != nil || !openOut.OK {
		return ex.fatal(p, completed, "open_position", err, openOut.Error)
	}
	completed = append(completed, "open_position")

	incOut, err := ex.program.IncreaseLiquidity(ctx, collab.IncreaseLiquidityParams{PositionID: p.Position.ID})
	if err != nil || !incOut.OK {
		return ex.fatal(p, completed, "increase_liquidity", err, incOut.Error)
	}
	completed = append(completed, "increase_liquidity")

	ex.recordRebalanced(p)
	return RebalanceOutcome{PhasesCompleted: completed, Signature: incOut.Signature}
}

// fatal handles a phase-3-or-later failure: it is returned to the caller as
// a structured Partial failure and logged, but per spec §4.I's closed event
// set a failed, uncompleted rebalance is not a Rebalanced event — the
// reconciler is expected to observe the resulting inconsistent state on its
// next sweep instead.
func (ex *RebalanceExecutor) fatal(p RebalanceParams, completed []string, failedPhase string, err error, onChainErr string) RebalanceOutcome {
	msg := onChainErr
	if err != nil {
		msg = err.Error()
	}
	ex.logger.Error("rebalance phase failed", "position", p.Position.ID, "phase", failedPhase, "error", msg)
	return RebalanceOutcome{
		PhasesCompleted: completed,
		Err:             clmmerr.New("executor.rebalance."+failedPhase, clmmerr.Partial, fmt.Errorf("completed phases %v, failed at %s: %s", completed, failedPhase, msg)),
	}
}

// recordRebalanced logs the completed five-phase sequence to the lifecycle
// tracker once the new position's liquidity is actually in place.
func (ex *RebalanceExecutor) recordRebalanced(p RebalanceParams) {
	oldLower, _ := tickFromPrice(p.OldRange.Lower)
	oldUpper, _ := tickFromPrice(p.OldRange.Upper)
	newLower, _ := tickFromPrice(p.NewRange.Lower)
	newUpper, _ := tickFromPrice(p.NewRange.Upper)

	ex.tracker.Record(types.LifecycleEvent{
		Kind:       types.EventRebalanced,
		PositionID: p.Position.ID,
		PoolID:     p.Position.Pool,
		Timestamp:  time.Now(),
		Payload: types.RebalanceData{
			OldTickLower:  oldLower,
			OldTickUpper:  oldUpper,
			NewTickLower:  newLower,
			NewTickUpper:  newUpper,
			TxCost:        ex.cfg.EstimatedTxCostUSD,
			ILAtRebalance: p.CurrentIL,
			Reason:        p.Reason,
		},
	})
}

// recordFeesCollected logs the mid-rebalance fee-collection phase. The
// CLMMProgram collaborator reports only a bare TxOutcome (signature/ok/slot,
// per spec §4.M), so the per-side amounts are not available here and are
// left zero; the event still exists so PositionSummary.TotalFeesUSD isn't
// silently missing a collection that actually happened.
func (ex *RebalanceExecutor) recordFeesCollected(p RebalanceParams) {
	ex.tracker.Record(types.LifecycleEvent{
		Kind:       types.EventFeesCollected,
		PositionID: p.Position.ID,
		PoolID:     p.Position.Pool,
		Timestamp:  time.Now(),
		Payload:    types.FeesCollectedData{},
	})
}
