// Package scenario loads the YAML scenario files cmd/backtest and
// cmd/optimize run, grounded on internal/config's viper/mapstructure
// loading idiom but scoped to simulation inputs rather than live wiring.
package scenario

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"clmmstrat/internal/models"
	"clmmstrat/internal/rebalance"
	"clmmstrat/pkg/types"
)

// Scenario is the YAML shape both backtest and optimize read.
type Scenario struct {
	InitialPrice   float64       `mapstructure:"initial_price"`
	InitialCapital float64       `mapstructure:"initial_capital"`
	RangeWidthPct  float64       `mapstructure:"range_width_pct"`
	FeeRate        float64       `mapstructure:"fee_rate"`
	LPLiquidity    float64       `mapstructure:"lp_liquidity"`
	RebalanceCost  float64       `mapstructure:"rebalance_cost"`
	Steps          int           `mapstructure:"steps"`
	StepDuration   time.Duration `mapstructure:"step_duration"`

	PriceModel struct {
		Kind       string    `mapstructure:"kind"`   // "deterministic" | "gbm"
		Prices     []float64 `mapstructure:"prices"` // explicit sequence for "deterministic"; if empty, the initial price is held flat for Steps+1 ticks
		Drift      float64   `mapstructure:"drift"`
		Volatility float64   `mapstructure:"volatility"`
		TimeStep   float64   `mapstructure:"time_step"`
		Seed       int64     `mapstructure:"seed"`
	} `mapstructure:"price_model"`

	Volume struct {
		Amount float64 `mapstructure:"amount"`
	} `mapstructure:"volume"`

	PoolLiquidity struct {
		Amount float64 `mapstructure:"amount"`
	} `mapstructure:"pool_liquidity"`

	Strategy struct {
		Kind                   string   `mapstructure:"kind"` // "static" | "periodic" | "threshold"
		RebalanceIntervalSteps uint64   `mapstructure:"rebalance_interval_steps"`
		OnlyWhenOutOfRange     bool     `mapstructure:"only_when_out_of_range"`
		ThresholdPct           float64  `mapstructure:"threshold_pct"`
		RebalanceOnOutOfRange  bool     `mapstructure:"rebalance_on_out_of_range"`
		MaxILPct               *float64 `mapstructure:"max_il_pct"`
	} `mapstructure:"strategy"`

	Optimize struct {
		AnnualizedVolatility float64   `mapstructure:"annualized_volatility"`
		RiskFreeRate         float64   `mapstructure:"risk_free_rate"`
		Iterations           int       `mapstructure:"iterations"`
		HorizonSteps         int       `mapstructure:"horizon_steps"`
		Dt                   float64   `mapstructure:"dt"`
		Objective            string    `mapstructure:"objective"`
		HalfWidthsPct        []float64 `mapstructure:"half_widths_pct"`
	} `mapstructure:"optimize"`
}

// Load reads a Scenario from a YAML file at path.
func Load(path string) (*Scenario, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}

	var sc Scenario
	if err := v.Unmarshal(&sc); err != nil {
		return nil, fmt.Errorf("unmarshal scenario: %w", err)
	}
	return &sc, nil
}

// SimulationConfig builds the types.SimulationConfig the simulator needs.
func (sc *Scenario) SimulationConfig() (types.SimulationConfig, error) {
	initialPrice := decimal.NewFromFloat(sc.InitialPrice)
	initialRange, err := types.CenteredRange(types.NewPrice(initialPrice), decimal.NewFromFloat(sc.RangeWidthPct))
	if err != nil {
		return types.SimulationConfig{}, fmt.Errorf("build initial range: %w", err)
	}

	return types.SimulationConfig{
		InitialCapital: decimal.NewFromFloat(sc.InitialCapital),
		InitialRange:   initialRange,
		FeeRate:        decimal.NewFromFloat(sc.FeeRate),
		LPLiquidity:    decimal.NewFromFloat(sc.LPLiquidity),
		RebalanceCost:  decimal.NewFromFloat(sc.RebalanceCost),
		Steps:          sc.Steps,
		StepDuration:   sc.StepDuration,
	}, nil
}

// PricePath builds the models.PricePath the scenario's price_model selects.
// For "deterministic" with an explicit prices list, that sequence is
// replayed verbatim; with no list, the initial price is held flat for
// Steps+1 ticks, which is the shape a flat-price/constant-fee scenario
// needs.
func (sc *Scenario) PricePath() models.PricePath {
	initialPrice := decimal.NewFromFloat(sc.InitialPrice)
	if sc.PriceModel.Kind == "gbm" {
		seed := sc.PriceModel.Seed
		if seed == 0 {
			seed = 1
		}
		return models.GBM{
			InitialPrice: initialPrice,
			Drift:        sc.PriceModel.Drift,
			Volatility:   sc.PriceModel.Volatility,
			TimeStep:     sc.PriceModel.TimeStep,
			Rand:         rand.New(rand.NewSource(seed)),
		}
	}
	if len(sc.PriceModel.Prices) > 0 {
		prices := make([]types.Price, len(sc.PriceModel.Prices))
		for i, p := range sc.PriceModel.Prices {
			prices[i] = types.NewPrice(decimal.NewFromFloat(p))
		}
		return models.Deterministic{Prices: prices}
	}
	prices := make([]types.Price, sc.Steps+1)
	for i := range prices {
		prices[i] = types.NewPrice(initialPrice)
	}
	return models.Deterministic{Prices: prices}
}

// VolumeModel builds the scenario's constant-volume model.
func (sc *Scenario) VolumeModel() models.VolumeModel {
	return models.ConstantVolume{Amount: decimal.NewFromFloat(sc.Volume.Amount)}
}

// LiquidityModel builds the scenario's constant-liquidity model.
func (sc *Scenario) LiquidityModel() models.LiquidityModel {
	return models.ConstantLiquidity{PoolLiquidity: decimal.NewFromFloat(sc.PoolLiquidity.Amount)}
}

// BuildStrategy builds the rebalance.Strategy the scenario's strategy.kind
// selects.
func (sc *Scenario) BuildStrategy() (rebalance.Strategy, error) {
	widthPct := decimal.NewFromFloat(sc.RangeWidthPct)

	switch sc.Strategy.Kind {
	case "static", "":
		return rebalance.Static{}, nil
	case "periodic":
		return rebalance.Periodic{
			RebalanceInterval:  sc.Strategy.RebalanceIntervalSteps,
			RangeWidthPct:      widthPct,
			OnlyWhenOutOfRange: sc.Strategy.OnlyWhenOutOfRange,
		}, nil
	case "threshold":
		th := rebalance.Threshold{
			ThresholdPct:          decimal.NewFromFloat(sc.Strategy.ThresholdPct),
			RangeWidthPct:         widthPct,
			RebalanceOnOutOfRange: sc.Strategy.RebalanceOnOutOfRange,
		}
		if sc.Strategy.MaxILPct != nil {
			maxIL := decimal.NewFromFloat(*sc.Strategy.MaxILPct)
			th.MaxILPct = &maxIL
		}
		return th, nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", sc.Strategy.Kind)
	}
}
