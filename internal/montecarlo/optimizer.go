package montecarlo

import (
	"math/rand"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/models"
	"clmmstrat/internal/rebalance"
	"clmmstrat/pkg/types"
)

// Objective is the closed set of scoring functions the range optimizer can
// maximize.
type Objective string

const (
	MaximizeNetPnL Objective = "maximize_net_pnl"
	MaximizeFees   Objective = "maximize_fees"
	MaximizeSharpe Objective = "maximize_sharpe"
)

// defaultHalfWidths is the default candidate grid: half-widths in
// {1%, 2%, 5%, 10%, 20%, 50%}.
var defaultHalfWidths = []decimal.Decimal{
	decimal.NewFromFloat(0.01),
	decimal.NewFromFloat(0.02),
	decimal.NewFromFloat(0.05),
	decimal.NewFromFloat(0.10),
	decimal.NewFromFloat(0.20),
	decimal.NewFromFloat(0.50),
}

// OptimizeInput parameterizes a range-optimization search.
type OptimizeInput struct {
	CurrentPrice         types.Price
	AnnualizedVolatility float64
	RiskFreeRate         decimal.Decimal
	Volume               models.VolumeModel
	PoolLiquidity        models.LiquidityModel
	FeeRate              decimal.Decimal
	Iterations           int
	HorizonSteps         int
	Dt                   float64
	Objective            Objective
	InitialCapital       decimal.Decimal
	RebalanceCost        decimal.Decimal
	LPLiquidity          decimal.Decimal
	Seed                 int64
	HalfWidths           []decimal.Decimal // nil = defaultHalfWidths
}

// Optimize enumerates candidate ranges around CurrentPrice on a grid of
// half-widths, runs a Monte-Carlo evaluation per candidate, scores each by
// Objective, and returns the highest-scoring result. Ties are broken by
// smaller range width (tighter), then lexicographically on the lower
// bound.
func Optimize(in OptimizeInput) (types.OptimizationResult, error) {
	halfWidths := in.HalfWidths
	if halfWidths == nil {
		halfWidths = defaultHalfWidths
	}

	type candidate struct {
		rng    types.PriceRange
		agg    types.AggregateResult
		score  decimal.Decimal
		sharpe *decimal.Decimal
	}

	var best *candidate
	candidates := make([]types.CandidateResult, 0, len(halfWidths))
	for _, hw := range halfWidths {
		widthPct := hw.Mul(decimal.NewFromInt(2))
		rng, err := types.CenteredRange(in.CurrentPrice, widthPct)
		if err != nil {
			continue
		}

		cfg := types.SimulationConfig{
			InitialCapital: in.InitialCapital,
			InitialRange:   rng,
			FeeRate:        in.FeeRate,
			LPLiquidity:    in.LPLiquidity,
			RebalanceCost:  in.RebalanceCost,
			Steps:          in.HorizonSteps,
		}

		seed := in.Seed
		factory := func(iteration int) models.PricePath {
			p, _ := in.CurrentPrice.Value.Float64()
			return models.GBM{
				InitialPrice: decimal.NewFromFloat(p),
				Drift:        0,
				Volatility:   in.AnnualizedVolatility,
				TimeStep:     in.Dt,
				Rand:         rand.New(rand.NewSource(seed + int64(iteration))),
			}
		}

		agg := Run(cfg, factory, rebalance.Static{}, in.Volume, in.PoolLiquidity, in.Iterations)

		sharpe := sharpeRatio(agg, in.RiskFreeRate, in.InitialCapital)
		score := scoreFor(in.Objective, agg, sharpe)

		candidates = append(candidates, types.CandidateResult{Range: rng, Agg: agg, Score: score})

		cand := &candidate{rng: rng, agg: agg, score: score, sharpe: sharpe}
		if best == nil || isBetter(cand.score, cand.rng, best.score, best.rng) {
			best = cand
		}
	}

	if best == nil {
		return types.OptimizationResult{}, errNoCandidates
	}

	return types.OptimizationResult{
		RecommendedRange: best.rng,
		ExpectedPnL:      best.agg.MeanNetPnL,
		ExpectedFees:     best.agg.MeanFees,
		ExpectedIL:       best.agg.MeanIL,
		SharpeRatio:      best.sharpe,
		Candidates:       candidates,
	}, nil
}

// sharpeRatio computes the Sharpe ratio of a candidate's net-PnL
// distribution: excess return over the risk-free rate, divided by the
// standard deviation of returns. Returns nil when the distribution has zero
// spread (e.g. a single iteration), since the ratio is undefined there.
func sharpeRatio(agg types.AggregateResult, riskFreeRate, initialCapital decimal.Decimal) *decimal.Decimal {
	if agg.StdNetPnL.IsZero() || initialCapital.IsZero() {
		return nil
	}
	meanReturn := agg.MeanNetPnL.Div(initialCapital)
	stdReturn := agg.StdNetPnL.Div(initialCapital)
	s := meanReturn.Sub(riskFreeRate).Div(stdReturn)
	return &s
}

func scoreFor(obj Objective, agg types.AggregateResult, sharpe *decimal.Decimal) decimal.Decimal {
	switch obj {
	case MaximizeFees:
		return agg.MeanFees
	case MaximizeSharpe:
		if sharpe == nil {
			return agg.MeanNetPnL
		}
		return *sharpe
	default:
		return agg.MeanNetPnL
	}
}

// isBetter reports whether candidate (score, rng) beats (bestScore,
// bestRng): higher score wins; ties go to the narrower range, then to the
// lexicographically smaller lower bound.
func isBetter(score decimal.Decimal, rng types.PriceRange, bestScore decimal.Decimal, bestRng types.PriceRange) bool {
	if score.GreaterThan(bestScore) {
		return true
	}
	if score.LessThan(bestScore) {
		return false
	}
	w, bw := rng.Width(), bestRng.Width()
	if w.LessThan(bw) {
		return true
	}
	if w.GreaterThan(bw) {
		return false
	}
	return rng.Lower.Value.LessThan(bestRng.Lower.Value)
}

type optimizerError string

func (e optimizerError) Error() string { return string(e) }

const errNoCandidates = optimizerError("no valid range candidates")
