package types

import "github.com/shopspring/decimal"

// AggregateResult summarizes I independent simulation runs over a
// stochastic price model.
type AggregateResult struct {
	MeanNetPnL   decimal.Decimal
	MedianNetPnL decimal.Decimal
	VaR95NetPnL  decimal.Decimal // 5th percentile of net PnL, ascending sort
	StdNetPnL    decimal.Decimal // population std dev of net PnL across iterations
	MeanFees     decimal.Decimal
	MeanIL       decimal.Decimal
	Iterations   int
}

// CandidateResult is one evaluated range half-width in the optimizer's
// search grid, alongside the aggregate it scored.
type CandidateResult struct {
	Range PriceRange
	Agg   AggregateResult
	Score decimal.Decimal
}

// OptimizationResult is the highest-scoring candidate range the range
// optimizer found, the Monte-Carlo aggregate that produced its score, and
// every candidate the grid search evaluated.
type OptimizationResult struct {
	RecommendedRange PriceRange
	ExpectedPnL      decimal.Decimal
	ExpectedFees     decimal.Decimal
	ExpectedIL       decimal.Decimal
	SharpeRatio      *decimal.Decimal
	Candidates       []CandidateResult
}
