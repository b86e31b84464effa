// Command backtest runs one CLMM position simulation from a YAML scenario
// file and prints a plain-text summary.
//
// Usage:
//
//	backtest -scenario scenarios/flat.yaml
//
// Same config-load/slog-setup skeleton as cmd/executor, scoped down to a
// single synchronous run instead of a long-lived engine.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/scenario"
	"clmmstrat/internal/simulate"
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

	cfg, err := sc.SimulationConfig()
	if err != nil {
		logger.Error("invalid scenario", "error", err)
		os.Exit(1)
	}

	strategy, err := sc.BuildStrategy()
	if err != nil {
		logger.Error("invalid strategy config", "error", err)
		os.Exit(1)
	}

	prices := sc.PricePath().Generate(cfg.Steps)
	summary := simulate.Simulate(cfg, prices, strategy, sc.VolumeModel(), sc.LiquidityModel())

	logger.Info("simulation complete",
		"steps_executed", summary.StepsExecuted,
		"closed", summary.Closed,
		"rebalances", summary.RebalanceCount,
	)

	printSummary(summary)
}

func printSummary(s types.SimulationSummary) {
	fmt.Printf("final_value:        %s\n", s.FinalValue.StringFixed(4))
	fmt.Printf("net_pnl:            %s (%s%%)\n", s.NetPnL.StringFixed(4), s.NetPnLPct.Mul(hundred).StringFixed(2))
	fmt.Printf("hodl_value:         %s\n", s.HodlValue.StringFixed(4))
	fmt.Printf("vs_hodl:            %s\n", s.VsHodl.StringFixed(4))
	fmt.Printf("total_fees:         %s\n", s.TotalFeesEarned.StringFixed(4))
	fmt.Printf("max_il:             %s%%\n", s.MaxIL.Mul(hundred).StringFixed(2))
	fmt.Printf("final_il:           %s%%\n", s.FinalIL.Mul(hundred).StringFixed(2))
	fmt.Printf("max_drawdown:       %s%%\n", s.MaxDrawdown.Mul(hundred).StringFixed(2))
	fmt.Printf("rebalance_count:    %d\n", s.RebalanceCount)
	fmt.Printf("total_rebal_cost:   %s\n", s.TotalRebalanceCost.StringFixed(4))
	fmt.Printf("time_in_range:      %s%%\n", s.TimeInRangePct.Mul(hundred).StringFixed(2))
	fmt.Printf("steps_executed:     %d\n", s.StepsExecuted)
	fmt.Printf("closed:             %t\n", s.Closed)
	if len(s.StepErrors) > 0 {
		fmt.Printf("step_errors:        %d (swallowed, treated as zero-impact)\n", len(s.StepErrors))
	}
	for _, ev := range s.Events {
		fmt.Printf("  [step %d] %s %s\n", ev.Step, ev.Kind, ev.Note)
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
