// Command executor runs the live CLMM rebalancing loop: Scheduler ticks
// drive Monitor.Refresh and DecisionEngine.Decide, gated by the
// CircuitBreaker, carried out by the RebalanceExecutor, and recorded by the
// LifecycleTracker. In parallel an AccountListener keeps the Reconciler's
// cached on-chain state fresh.
//
// Standard config-load/slog-setup/signal-wait skeleton wired to
// internal/engine, which owns all subsystem lifecycles.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/config"
	"clmmstrat/internal/engine"
	"clmmstrat/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("CLMM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	for _, pc := range cfg.Positions {
		rng, err := types.NewPriceRange(types.NewPrice(decimal.NewFromFloat(pc.Lower)), types.NewPrice(decimal.NewFromFloat(pc.Upper)))
		if err != nil {
			logger.Error("invalid tracked position range", "position", pc.ID, "error", err)
			os.Exit(1)
		}
		eng.TrackPosition(types.Position{
			ID:     pc.ID,
			Owner:  pc.Owner,
			Pool:   pc.Pool,
			Range:  rng,
			Status: types.PositionOpen,
		})
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real transactions will be sent")
	}

	logger.Info("clmm rebalancing executor started",
		"strategy", cfg.Strategy.Kind,
		"auto_execute", cfg.Executor.AutoExecute,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
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
