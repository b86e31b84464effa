// Command optimize runs the Monte-Carlo range optimizer over a scenario
// file and prints the recommended range plus the evaluated candidate grid.
//
// Usage:
//
//	optimize -scenario scenarios/flat.yaml
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/montecarlo"
	"clmmstrat/internal/scenario"
	"clmmstrat/pkg/types"
)

var hundred = decimal.NewFromInt(100)

func main() {
	path := flag.String("scenario", "scenarios/flat.yaml", "path to a scenario YAML file")
	logLevel := flag.String("log-level", "info", "debug|info|warn|error")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(*logLevel)}))

	sc, err := scenario.Load(*path)
	if err != nil {
		logger.Error("failed to load scenario", "error", err, "path", *path)
		os.Exit(1)
	}

	obj, err := objectiveFor(sc.Optimize.Objective)
	if err != nil {
		logger.Error("invalid objective", "error", err)
		os.Exit(1)
	}

	halfWidths := make([]decimal.Decimal, 0, len(sc.Optimize.HalfWidthsPct))
	for _, hw := range sc.Optimize.HalfWidthsPct {
		halfWidths = append(halfWidths, decimal.NewFromFloat(hw))
	}

	in := montecarlo.OptimizeInput{
		CurrentPrice:         types.NewPrice(decimal.NewFromFloat(sc.InitialPrice)),
		AnnualizedVolatility: sc.Optimize.AnnualizedVolatility,
		RiskFreeRate:         decimal.NewFromFloat(sc.Optimize.RiskFreeRate),
		Volume:               sc.VolumeModel(),
		PoolLiquidity:        sc.LiquidityModel(),
		FeeRate:              decimal.NewFromFloat(sc.FeeRate),
		Iterations:           sc.Optimize.Iterations,
		HorizonSteps:         sc.Optimize.HorizonSteps,
		Dt:                   sc.Optimize.Dt,
		Objective:            obj,
		InitialCapital:       decimal.NewFromFloat(sc.InitialCapital),
		RebalanceCost:        decimal.NewFromFloat(sc.RebalanceCost),
		LPLiquidity:          decimal.NewFromFloat(sc.LPLiquidity),
		Seed:                 int64(sc.PriceModel.Seed),
	}
	if len(halfWidths) > 0 {
		in.HalfWidths = halfWidths
	}

	result, err := montecarlo.Optimize(in)
	if err != nil {
		logger.Error("optimization failed", "error", err)
		os.Exit(1)
	}

	fmt.Printf("recommended_range:  [%s, %s]\n", result.RecommendedRange.Lower, result.RecommendedRange.Upper)
	fmt.Printf("expected_pnl:       %s\n", result.ExpectedPnL.StringFixed(4))
	fmt.Printf("expected_fees:      %s\n", result.ExpectedFees.StringFixed(4))
	fmt.Printf("expected_il:        %s%%\n", result.ExpectedIL.Mul(hundred).StringFixed(2))
	if result.SharpeRatio != nil {
		fmt.Printf("sharpe_ratio:       %s\n", result.SharpeRatio.StringFixed(4))
	}

	fmt.Printf("\ncandidates:\n")
	for _, c := range result.Candidates {
		fmt.Printf("  [%s, %s]  pnl=%s  fees=%s  il=%s%%  score=%s\n",
			c.Range.Lower.Value.StringFixed(2), c.Range.Upper.Value.StringFixed(2),
			c.Agg.MeanNetPnL.StringFixed(4), c.Agg.MeanFees.StringFixed(4),
			c.Agg.MeanIL.Mul(hundred).StringFixed(2), c.Score.StringFixed(4))
	}
}

func objectiveFor(kind string) (montecarlo.Objective, error) {
	switch kind {
	case "fees":
		return montecarlo.MaximizeFees, nil
	case "sharpe":
		return montecarlo.MaximizeSharpe, nil
	case "pnl", "":
		return montecarlo.MaximizeNetPnL, nil
	default:
		return "", fmt.Errorf("unknown objective %q: must be one of pnl, fees, sharpe", kind)
	}
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
