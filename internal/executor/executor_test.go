package executor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
	"clmmstrat/internal/collab"
	"clmmstrat/internal/lifecycle"
	"clmmstrat/internal/monitor"
	"clmmstrat/pkg/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func price(s string) types.Price { return types.NewPrice(dec(s)) }

func mustRange(lower, upper string) types.PriceRange {
	r, err := types.NewPriceRange(price(lower), price(upper))
	if err != nil {
		panic(err)
	}
	return r
}

func testDecisionConfig() DecisionConfig {
	return DecisionConfig{
		RebalanceOnOutOfRange:     true,
		ILThresholdPct:            dec("0.05"),
		MinHoursBetweenRebalances: 6,
		TargetHalfWidthPct:        dec("0.05"),
	}
}

func monitored(inRange bool, il string) monitor.MonitoredPosition {
	return monitor.MonitoredPosition{
		Address: "owner-1",
		Pool:    "pool-1",
		Snapshot: types.Position{
			ID:    "pos-1",
			Owner: "owner-1",
			Pool:  "pool-1",
			Range: mustRange("90", "110"),
		},
		InRange: inRange,
		ILPct:   dec(il),
	}
}

func poolAt(p string) types.PoolState {
	return types.PoolState{CurrentPrice: price(p), FeeRate: dec("0.003")}
}

func TestDecideHoldsInRangeUnderThreshold(t *testing.T) {
	t.Parallel()
	e := NewDecisionEngine(testDecisionConfig())

	d := e.Decide(monitored(true, "-0.01"), poolAt("100"), 48)
	if d.Kind != DecisionHold {
		t.Fatalf("expected hold, got %s", d.Kind)
	}
	if d.RequiresTransaction() {
		t.Error("hold must not require a transaction")
	}
}

func TestDecideRebalancesOnILThreshold(t *testing.T) {
	t.Parallel()
	e := NewDecisionEngine(testDecisionConfig())

	d := e.Decide(monitored(true, "-0.08"), poolAt("100"), 48)
	if d.Kind != DecisionRebalance {
		t.Fatalf("expected rebalance on IL breach, got %s", d.Kind)
	}
	if d.NewTickLower >= d.NewTickUpper {
		t.Errorf("degenerate tick bounds [%d, %d]", d.NewTickLower, d.NewTickUpper)
	}
	if !d.RequiresTransaction() {
		t.Error("rebalance must require a transaction")
	}
}

func TestDecideRebalancesWhenOutOfRange(t *testing.T) {
	t.Parallel()
	e := NewDecisionEngine(testDecisionConfig())

	d := e.Decide(monitored(false, "-0.01"), poolAt("120"), 48)
	if d.Kind != DecisionRebalance {
		t.Fatalf("expected rebalance when out of range, got %s", d.Kind)
	}
}

func TestDecideRespectsRebalanceCooldown(t *testing.T) {
	t.Parallel()
	e := NewDecisionEngine(testDecisionConfig())

	// Both triggers fire, but only 2h have elapsed against a 6h minimum.
	d := e.Decide(monitored(false, "-0.10"), poolAt("120"), 2)
	if d.Kind != DecisionHold {
		t.Fatalf("expected hold inside cooldown, got %s", d.Kind)
	}
}

func TestDecideIgnoresOutOfRangeWhenDisabled(t *testing.T) {
	t.Parallel()
	cfg := testDecisionConfig()
	cfg.RebalanceOnOutOfRange = false
	e := NewDecisionEngine(cfg)

	d := e.Decide(monitored(false, "-0.01"), poolAt("120"), 48)
	if d.Kind != DecisionHold {
		t.Fatalf("expected hold with out-of-range trigger disabled, got %s", d.Kind)
	}
}

// fakeProgram records instruction calls and can be told to fail a given
// phase, mirroring emergency's fake but with call-order capture.
type fakeProgram struct {
	calls        []string
	failCollect  bool
	failDecrease bool
	failClose    bool
	failOpen     bool
	failIncrease bool
}

func (p *fakeProgram) outcome(name string, fail bool) (collab.TxOutcome, error) {
	p.calls = append(p.calls, name)
	if fail {
		return collab.TxOutcome{}, errors.New(name + " failed")
	}
	return collab.TxOutcome{OK: true, Signature: "sig-" + name}, nil
}

func (p *fakeProgram) OpenPosition(ctx context.Context, params collab.OpenPositionParams) (collab.TxOutcome, error) {
	return p.outcome("open", p.failOpen)
}
func (p *fakeProgram) IncreaseLiquidity(ctx context.Context, params collab.IncreaseLiquidityParams) (collab.TxOutcome, error) {
	return p.outcome("increase", p.failIncrease)
}
func (p *fakeProgram) DecreaseLiquidity(ctx context.Context, params collab.DecreaseLiquidityParams) (collab.TxOutcome, error) {
	return p.outcome("decrease", p.failDecrease)
}
func (p *fakeProgram) CollectFees(ctx context.Context, params collab.CollectFeesParams) (collab.TxOutcome, error) {
	return p.outcome("collect", p.failCollect)
}
func (p *fakeProgram) ClosePosition(ctx context.Context, params collab.ClosePositionParams) (collab.TxOutcome, error) {
	return p.outcome("close", p.failClose)
}

func testRebalanceParams() RebalanceParams {
	return RebalanceParams{
		Position: types.Position{
			ID:    "pos-1",
			Owner: "owner-1",
			Pool:  "pool-1",
			Range: mustRange("95", "105"),
		},
		Pool:             poolAt("110"),
		OldRange:         mustRange("95", "105"),
		NewRange:         mustRange("104.5", "115.5"),
		CurrentLiquidity: dec("1000"),
		Reason:           types.ReasonPriceThreshold,
		CurrentIL:        dec("-0.02"),
	}
}

func setupExecutor(program *fakeProgram, cfg RebalanceConfig, benefit decimal.Decimal) (*RebalanceExecutor, *lifecycle.Tracker) {
	tracker := lifecycle.New()
	ex := NewRebalanceExecutor(program, tracker, cfg, func(p RebalanceParams) decimal.Decimal {
		return benefit
	}, testLogger())
	return ex, tracker
}

func TestExecuteRejectsUnprofitableRebalance(t *testing.T) {
	t.Parallel()

	program := &fakeProgram{}
	cfg := RebalanceConfig{MinProfitMultiplier: dec("2"), EstimatedTxCostUSD: dec("5")}
	ex, tracker := setupExecutor(program, cfg, dec("9")) // needs >= 10

	out := ex.Execute(context.Background(), testRebalanceParams())
	if !errors.Is(out.Err, clmmerr.KindRejected) {
		t.Fatalf("expected Rejected, got %v", out.Err)
	}
	if len(program.calls) != 0 {
		t.Errorf("no instruction may run after a profitability rejection, got %v", program.calls)
	}
	if len(tracker.Events("pos-1")) != 0 {
		t.Error("rejected rebalance must not record lifecycle events")
	}
}

func TestExecuteDryRunShortCircuits(t *testing.T) {
	t.Parallel()

	program := &fakeProgram{}
	cfg := RebalanceConfig{MinProfitMultiplier: dec("2"), EstimatedTxCostUSD: dec("5"), DryRun: true, CollectFeesFirst: true}
	ex, _ := setupExecutor(program, cfg, dec("100"))

	out := ex.Execute(context.Background(), testRebalanceParams())
	if out.Err != nil {
		t.Fatalf("dry run must report synthetic success, got %v", out.Err)
	}
	if len(program.calls) != 0 {
		t.Errorf("dry run must not touch the chain, got %v", program.calls)
	}
	if out.Signature != "dry-run" {
		t.Errorf("expected synthetic signature, got %q", out.Signature)
	}
}

func TestExecuteRunsAllFivePhases(t *testing.T) {
	t.Parallel()

	program := &fakeProgram{}
	cfg := RebalanceConfig{MinProfitMultiplier: dec("2"), EstimatedTxCostUSD: dec("5"), CollectFeesFirst: true}
	ex, tracker := setupExecutor(program, cfg, dec("100"))

	out := ex.Execute(context.Background(), testRebalanceParams())
	if out.Err != nil {
		t.Fatalf("expected full success, got %v", out.Err)
	}

	want := []string{"collect", "decrease", "close", "open", "increase"}
	if len(program.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, program.calls)
	}
	for i, name := range want {
		if program.calls[i] != name {
			t.Fatalf("phase order mismatch at %d: expected %v, got %v", i, want, program.calls)
		}
	}

	events := tracker.Events("pos-1")
	var rebalanced, feesCollected int
	for _, ev := range events {
		switch ev.Kind {
		case types.EventRebalanced:
			rebalanced++
		case types.EventFeesCollected:
			feesCollected++
		}
	}
	if rebalanced != 1 {
		t.Errorf("expected exactly one rebalanced event, got %d", rebalanced)
	}
	if feesCollected != 1 {
		t.Errorf("expected exactly one fees_collected event, got %d", feesCollected)
	}
}

func TestExecuteToleratesFeeCollectionFailure(t *testing.T) {
	t.Parallel()

	program := &fakeProgram{failCollect: true}
	cfg := RebalanceConfig{MinProfitMultiplier: dec("2"), EstimatedTxCostUSD: dec("5"), CollectFeesFirst: true}
	ex, tracker := setupExecutor(program, cfg, dec("100"))

	out := ex.Execute(context.Background(), testRebalanceParams())
	if out.Err != nil {
		t.Fatalf("fee collection failure must be non-fatal, got %v", out.Err)
	}

	for _, ev := range tracker.Events("pos-1") {
		if ev.Kind == types.EventFeesCollected {
			t.Error("failed fee collection must not record a fees_collected event")
		}
	}
}

func TestExecuteDecreaseFailureIsPartial(t *testing.T) {
	t.Parallel()

	program := &fakeProgram{failDecrease: true}
	cfg := RebalanceConfig{MinProfitMultiplier: dec("2"), EstimatedTxCostUSD: dec("5")}
	ex, tracker := setupExecutor(program, cfg, dec("100"))

	out := ex.Execute(context.Background(), testRebalanceParams())
	if !errors.Is(out.Err, clmmerr.KindPartial) {
		t.Fatalf("expected Partial, got %v", out.Err)
	}
	if len(out.PhasesCompleted) != 1 || out.PhasesCompleted[0] != "profitability_check" {
		t.Errorf("expected only the profitability check completed, got %v", out.PhasesCompleted)
	}
	for _, call := range program.calls {
		if call == "close" || call == "open" || call == "increase" {
			t.Fatalf("no compensation or continuation after a fatal phase, got %v", program.calls)
		}
	}
	for _, ev := range tracker.Events("pos-1") {
		if ev.Kind == types.EventRebalanced {
			t.Error("failed rebalance must not record a rebalanced event")
		}
	}
}

func TestExecuteOpenFailureListsCompletedPhases(t *testing.T) {
	t.Parallel()

	program := &fakeProgram{failOpen: true}
	cfg := RebalanceConfig{MinProfitMultiplier: dec("2"), EstimatedTxCostUSD: dec("5")}
	ex, _ := setupExecutor(program, cfg, dec("100"))

	out := ex.Execute(context.Background(), testRebalanceParams())
	if !errors.Is(out.Err, clmmerr.KindPartial) {
		t.Fatalf("expected Partial, got %v", out.Err)
	}

	want := []string{"profitability_check", "decrease_liquidity", "close_position"}
	if len(out.PhasesCompleted) != len(want) {
		t.Fatalf("expected phases %v, got %v", want, out.PhasesCompleted)
	}
	for i, name := range want {
		if out.PhasesCompleted[i] != name {
			t.Fatalf("expected phases %v, got %v", want, out.PhasesCompleted)
		}
	}
}
