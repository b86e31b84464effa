// Package config defines all configuration for the CLMM strategy engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via CLMM_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	DryRun    bool             `mapstructure:"dry_run"`
	Wallet    WalletConfig     `mapstructure:"wallet"`
	Chain     ChainConfig      `mapstructure:"chain"`
	Strategy  StrategyConfig   `mapstructure:"strategy"`
	Executor  ExecutorConfig   `mapstructure:"executor"`
	Rebalance RebalanceConfig  `mapstructure:"rebalance"`
	Breaker   BreakerConfig    `mapstructure:"breaker"`
	Monitor   MonitorConfig    `mapstructure:"monitor"`
	Store     StoreConfig      `mapstructure:"store"`
	Logging   LoggingConfig    `mapstructure:"logging"`
	Positions []PositionConfig `mapstructure:"positions"`
}

// PositionConfig seeds the live monitor at startup with the set of
// existing on-chain positions to track. Only the identifying fields are
// required here — the reconciler's first refresh overwrites liquidity,
// amounts, and status from the chain, so this is a pointer to state, not
// a cache of it.
type PositionConfig struct {
	ID    string  `mapstructure:"id"`
	Owner string  `mapstructure:"owner"`
	Pool  string  `mapstructure:"pool"`
	Lower float64 `mapstructure:"lower"`
	Upper float64 `mapstructure:"upper"`
}

// WalletConfig holds the wallet used for signing on-chain transactions.
// PrivateKey signs outgoing transactions; Address is the account that
// owns opened positions.
type WalletConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	Address    string `mapstructure:"address"`
}

// ChainConfig holds RPC endpoints and the target pool/program.
type ChainConfig struct {
	RPCURL      string `mapstructure:"rpc_url"`
	WSURL       string `mapstructure:"ws_url"`
	ProgramID   string `mapstructure:"program_id"`
	PoolAddress string `mapstructure:"pool_address"`
	Token0      string `mapstructure:"token0"`
	Token1      string `mapstructure:"token1"`
}

// StrategyConfig tunes the live decision engine. The engine reads
// RangeWidthPct, RebalanceOnOutOfRange and EvalInterval; Kind,
// RebalanceIntervalSteps and ThresholdPct are checked by Validate (and Kind
// is logged at startup) but the engine does not build a rebalance strategy
// from them. The backtest reads its strategy from the scenario file, not
// from this config.
//
//   - Kind: one of "static", "periodic", "threshold".
//   - RangeWidthPct: total width of a freshly opened/rebalanced range, as a
//     fraction of the center price (e.g. 0.1 = ±5%).
//   - RebalanceIntervalSteps: for "periodic", how many steps/ticks between
//     forced rebalances.
//   - ThresholdPct: for "threshold", the price-move fraction from the
//     range center that triggers a rebalance.
//   - RebalanceOnOutOfRange: for "periodic"/"threshold", also rebalance as
//     soon as price exits the current range, independent of the other
//     trigger.
type StrategyConfig struct {
	Kind                   string        `mapstructure:"kind"`
	RangeWidthPct          float64       `mapstructure:"range_width_pct"`
	RebalanceIntervalSteps uint64        `mapstructure:"rebalance_interval_steps"`
	ThresholdPct           float64       `mapstructure:"threshold_pct"`
	RebalanceOnOutOfRange  bool          `mapstructure:"rebalance_on_out_of_range"`
	EvalInterval           time.Duration `mapstructure:"eval_interval"`
}

// ExecutorConfig tunes the live decision engine's gating behavior.
type ExecutorConfig struct {
	AutoExecute               bool    `mapstructure:"auto_execute"`
	RequireConfirmation       bool    `mapstructure:"require_confirmation"`
	MaxSlippagePct            float64 `mapstructure:"max_slippage_pct"`
	ILThresholdPct            float64 `mapstructure:"il_threshold_pct"`
	MinHoursBetweenRebalances uint64  `mapstructure:"min_hours_between_rebalances"`
}

// RebalanceConfig tunes the five-phase on-chain rebalance sequence.
type RebalanceConfig struct {
	MaxSlippageBps      int     `mapstructure:"max_slippage_bps"`
	MinProfitMultiplier float64 `mapstructure:"min_profit_multiplier"`
	CollectFeesFirst    bool    `mapstructure:"collect_fees_first"`
	PriorityLevel       string  `mapstructure:"priority_level"`
	EstimatedTxCostUSD  float64 `mapstructure:"estimated_tx_cost_usd"`
}

// BreakerConfig tunes the circuit breaker's trip and recovery behavior.
type BreakerConfig struct {
	MaxFailures      int           `mapstructure:"max_failures"`
	MaxLossPct       float64       `mapstructure:"max_loss_pct"`
	MaxPriorityFee   float64       `mapstructure:"max_priority_fee"`
	RecoveryTimeout  time.Duration `mapstructure:"recovery_timeout"`
	SuccessThreshold int           `mapstructure:"success_threshold"`
}

// MonitorConfig tunes the live position monitor's refresh cadence and the
// reconciler's periodic staleness sweep.
type MonitorConfig struct {
	RefreshInterval   time.Duration `mapstructure:"refresh_interval"`
	ReconcileInterval time.Duration `mapstructure:"reconcile_interval"`
}

// StoreConfig sets where lifecycle event logs are persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars: CLMM_PRIVATE_KEY, CLMM_RPC_URL.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("CLMM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("CLMM_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if url := os.Getenv("CLMM_RPC_URL"); url != "" {
		cfg.Chain.RPCURL = url
	}
	if os.Getenv("CLMM_DRY_RUN") == "true" || os.Getenv("CLMM_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	if c.Wallet.PrivateKey == "" {
		return fmt.Errorf("wallet.private_key is required (set CLMM_PRIVATE_KEY)")
	}
	if c.Chain.RPCURL == "" {
		return fmt.Errorf("chain.rpc_url is required (set CLMM_RPC_URL)")
	}
	if c.Chain.PoolAddress == "" {
		return fmt.Errorf("chain.pool_address is required")
	}
	switch c.Strategy.Kind {
	case "static", "periodic", "threshold":
	default:
		return fmt.Errorf("strategy.kind must be one of: static, periodic, threshold")
	}
	if c.Strategy.RangeWidthPct <= 0 {
		return fmt.Errorf("strategy.range_width_pct must be > 0")
	}
	if c.Strategy.Kind == "periodic" && c.Strategy.RebalanceIntervalSteps == 0 {
		return fmt.Errorf("strategy.rebalance_interval_steps must be > 0 when strategy.kind is periodic")
	}
	if c.Strategy.Kind == "threshold" && c.Strategy.ThresholdPct <= 0 {
		return fmt.Errorf("strategy.threshold_pct must be > 0 when strategy.kind is threshold")
	}
	if c.Rebalance.MinProfitMultiplier <= 0 {
		return fmt.Errorf("rebalance.min_profit_multiplier must be > 0")
	}
	if c.Breaker.MaxFailures <= 0 {
		return fmt.Errorf("breaker.max_failures must be > 0")
	}
	return nil
}
