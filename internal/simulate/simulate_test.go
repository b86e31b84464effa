package simulate

import (
	"testing"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/models"
	"clmmstrat/internal/rebalance"
	"clmmstrat/pkg/types"
)

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

func flatPath(p string, n int) []types.Price {
	prices := make([]types.Price, n+1)
	for i := range prices {
		prices[i] = price(p)
	}
	return prices
}

func pricePath(values ...string) []types.Price {
	prices := make([]types.Price, len(values))
	for i, v := range values {
		prices[i] = price(v)
	}
	return prices
}

// Scenario S1: flat price, no rebalance, constant fee accrual.
func TestScenarioS1FlatPriceConstantFees(t *testing.T) {
	t.Parallel()

	cfg := types.SimulationConfig{
		InitialCapital: dec("10000"),
		InitialRange:   mustRange("90", "110"),
		FeeRate:        dec("0.003"),
		LPLiquidity:    dec("500000"),
		RebalanceCost:  dec("0"),
		Steps:          10,
	}
	summary := Simulate(cfg, flatPath("100", 10), rebalance.Static{}, models.ConstantVolume{Amount: dec("10000")}, models.ConstantLiquidity{PoolLiquidity: dec("500000")})

	if !summary.TotalFeesEarned.Equal(dec("300")) {
		t.Errorf("fees = %s, want 300", summary.TotalFeesEarned)
	}
	if !summary.MaxIL.IsZero() {
		t.Errorf("max IL = %s, want 0", summary.MaxIL)
	}
	if summary.RebalanceCount != 0 {
		t.Errorf("rebalance count = %d, want 0", summary.RebalanceCount)
	}
	if !summary.TimeInRangePct.Equal(dec("1")) {
		t.Errorf("time in range = %s, want 1", summary.TimeInRangePct)
	}
	if !summary.FinalValue.Equal(dec("10300")) {
		t.Errorf("final value = %s, want 10300", summary.FinalValue)
	}
}

// Scenario S2: a single out-of-range jump triggers exactly one threshold
// rebalance, centered on the new price.
func TestScenarioS2ThresholdRebalanceOnJump(t *testing.T) {
	t.Parallel()

	cfg := types.SimulationConfig{
		InitialCapital: dec("10000"),
		InitialRange:   mustRange("95", "105"),
		FeeRate:        dec("0.003"),
		LPLiquidity:    dec("500000"),
		RebalanceCost:  dec("1"),
		Steps:          4,
	}
	strategy := rebalance.Threshold{ThresholdPct: dec("0.05"), RangeWidthPct: dec("0.1"), RebalanceOnOutOfRange: true}
	summary := Simulate(cfg, pricePath("100", "100", "110", "110", "110"), strategy, models.ConstantVolume{Amount: dec("10000")}, models.ConstantLiquidity{PoolLiquidity: dec("500000")})

	if summary.RebalanceCount != 1 {
		t.Fatalf("rebalance count = %d, want 1", summary.RebalanceCount)
	}
	if !summary.TotalRebalanceCost.Equal(dec("1")) {
		t.Errorf("rebalance cost = %s, want 1", summary.TotalRebalanceCost)
	}

	var found bool
	for _, e := range summary.Events {
		if e.Kind == string(types.EventRebalanced) {
			found = true
			if e.Step != 2 {
				t.Errorf("rebalance event at step %d, want 2", e.Step)
			}
		}
	}
	if !found {
		t.Fatalf("no rebalance event recorded")
	}
	if !summary.RangeHistory[len(summary.RangeHistory)-1].Lower.Value.Equal(dec("104.5")) {
		t.Errorf("final range lower = %s, want 104.5", summary.RangeHistory[len(summary.RangeHistory)-1].Lower)
	}
	if !summary.RangeHistory[len(summary.RangeHistory)-1].Upper.Value.Equal(dec("115.5")) {
		t.Errorf("final range upper = %s, want 115.5", summary.RangeHistory[len(summary.RangeHistory)-1].Upper)
	}
}

// Scenario S3: periodic rebalancing on a flat path fires at the expected
// cadence over 20 steps with a 5-step interval.
func TestScenarioS3PeriodicCadence(t *testing.T) {
	t.Parallel()

	cfg := types.SimulationConfig{
		InitialCapital: dec("10000"),
		InitialRange:   mustRange("90", "110"),
		FeeRate:        dec("0.003"),
		LPLiquidity:    dec("500000"),
		RebalanceCost:  dec("1"),
		Steps:          20,
	}
	strategy := rebalance.Periodic{RebalanceInterval: 5, RangeWidthPct: dec("0.1")}
	summary := Simulate(cfg, flatPath("100", 20), strategy, models.ConstantVolume{Amount: dec("10000")}, models.ConstantLiquidity{PoolLiquidity: dec("500000")})

	if summary.RebalanceCount != 3 {
		t.Errorf("rebalance count = %d, want 3", summary.RebalanceCount)
	}
}

// The conservation identity: final_value must equal
// C0 - C0*|final_il| + fees - rebalance_cost exactly, for every run.
func TestSimulatorConservation(t *testing.T) {
	t.Parallel()

	cfg := types.SimulationConfig{
		InitialCapital: dec("10000"),
		InitialRange:   mustRange("95", "105"),
		FeeRate:        dec("0.003"),
		LPLiquidity:    dec("500000"),
		RebalanceCost:  dec("1"),
		Steps:          8,
	}
	strategy := rebalance.Threshold{ThresholdPct: dec("0.03"), RangeWidthPct: dec("0.1"), RebalanceOnOutOfRange: true}
	summary := Simulate(cfg, pricePath("100", "101", "103", "108", "112", "112", "112", "112", "112"), strategy, models.ConstantVolume{Amount: dec("5000")}, models.ConstantLiquidity{PoolLiquidity: dec("500000")})

	want := cfg.InitialCapital.Sub(cfg.InitialCapital.Mul(summary.FinalIL.Abs())).Add(summary.TotalFeesEarned).Sub(summary.TotalRebalanceCost)
	if !summary.FinalValue.Equal(want) {
		t.Errorf("final value = %s, want %s (conservation equation)", summary.FinalValue, want)
	}
}

// time_in_range_pct always lies in [0, 1].
func TestTimeInRangeBounds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		path     []types.Price
		strategy rebalance.Strategy
	}{
		{"static-out-of-range", pricePath("100", "150", "160", "170"), rebalance.Static{}},
		{"threshold-chasing", pricePath("100", "101", "102", "150"), rebalance.Threshold{ThresholdPct: dec("0.01"), RangeWidthPct: dec("0.05"), RebalanceOnOutOfRange: true}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()
			cfg := types.SimulationConfig{
				InitialCapital: dec("10000"),
				InitialRange:   mustRange("95", "105"),
				FeeRate:        dec("0.003"),
				LPLiquidity:    dec("500000"),
				RebalanceCost:  dec("1"),
				Steps:          len(c.path) - 1,
			}
			summary := Simulate(cfg, c.path, c.strategy, models.ConstantVolume{Amount: dec("1000")}, models.ConstantLiquidity{PoolLiquidity: dec("500000")})
			if summary.TimeInRangePct.LessThan(decimal.Zero) || summary.TimeInRangePct.GreaterThan(decimal.NewFromInt(1)) {
				t.Errorf("time in range = %s, out of [0,1]", summary.TimeInRangePct)
			}
		})
	}
}

func TestEmptyPricePathYieldsZeroActivity(t *testing.T) {
	t.Parallel()

	cfg := types.SimulationConfig{
		InitialCapital: dec("10000"),
		InitialRange:   mustRange("95", "105"),
		FeeRate:        dec("0.003"),
		LPLiquidity:    dec("500000"),
		Steps:          10,
	}
	summary := Simulate(cfg, nil, rebalance.Static{}, models.ConstantVolume{Amount: dec("1000")}, models.ConstantLiquidity{PoolLiquidity: dec("500000")})

	if !summary.FinalValue.Equal(dec("10000")) {
		t.Errorf("final value = %s, want 10000 (zero activity)", summary.FinalValue)
	}
	if summary.StepsExecuted != 0 {
		t.Errorf("steps executed = %d, want 0", summary.StepsExecuted)
	}
}

// A Close action ends the run immediately: no further steps are executed
// and rebalance count is unaffected.
func TestCloseActionEndsRun(t *testing.T) {
	t.Parallel()

	maxIL := dec("0.01")
	cfg := types.SimulationConfig{
		InitialCapital: dec("10000"),
		InitialRange:   mustRange("95", "105"),
		FeeRate:        dec("0.003"),
		LPLiquidity:    dec("500000"),
		Steps:          10,
	}
	strategy := rebalance.Threshold{ThresholdPct: dec("0.5"), RangeWidthPct: dec("0.1"), MaxILPct: &maxIL}
	summary := Simulate(cfg, pricePath("100", "100", "200", "200", "200"), strategy, models.ConstantVolume{Amount: dec("1000")}, models.ConstantLiquidity{PoolLiquidity: dec("500000")})

	if !summary.Closed {
		t.Fatalf("expected Closed = true")
	}
	if summary.StepsExecuted != 2 {
		t.Errorf("steps executed = %d, want 2 (closes as soon as IL exceeds bound)", summary.StepsExecuted)
	}
}
