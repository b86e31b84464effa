// Package models implements the pluggable price-path, volume, and
// liquidity generators the simulator drives steps from.
package models

import (
	"math"
	"math/rand"

	"github.com/shopspring/decimal"

	"clmmstrat/pkg/types"
)

// PricePath produces a finite, known-length sequence of prices.
type PricePath interface {
	// Generate returns the price sequence for a run. GBM returns steps+1
	// prices (the initial price plus one per step); the replay
	// implementations (Deterministic, Historical) return their stored
	// sequence unchanged whatever steps is, and so return the same sequence
	// on repeated calls.
	Generate(steps int) []types.Price
}

// Deterministic replays a stored ordered sequence verbatim. Restartable.
type Deterministic struct {
	Prices []types.Price
}

func (d Deterministic) Generate(steps int) []types.Price {
	return d.Prices
}

// Historical replays a sequence sourced from the market-data collaborator
// (already fetched by the caller into Prices). Restartable, identical shape
// to Deterministic — the distinction is provenance, not behavior.
type Historical struct {
	Prices []types.Price
}

func (h Historical) Generate(steps int) []types.Price {
	return h.Prices
}

// GBM generates a geometric Brownian motion path:
// P_{k+1} = P_k * exp((mu - sigma^2/2)*dt + sigma*sqrt(dt)*Z_k), Z_k ~ N(0,1).
// A caller-supplied *rand.Rand makes the sequence reproducible and
// independently seedable per Monte-Carlo iteration.
type GBM struct {
	InitialPrice decimal.Decimal
	Drift        float64 // annualized mu
	Volatility   float64 // annualized sigma
	TimeStep     float64 // dt, e.g. 1/365 for daily steps
	Rand         *rand.Rand
}

func (g GBM) Generate(steps int) []types.Price {
	prices := make([]types.Price, 0, steps+1)
	prices = append(prices, types.NewPrice(g.InitialPrice))

	dt := g.TimeStep
	driftTerm := (g.Drift - 0.5*g.Volatility*g.Volatility) * dt
	volTerm := g.Volatility * math.Sqrt(dt)

	current, _ := g.InitialPrice.Float64()
	r := g.Rand
	if r == nil {
		r = rand.New(rand.NewSource(1))
	}

	for i := 0; i < steps; i++ {
		z := r.NormFloat64()
		change := math.Exp(driftTerm + volTerm*z)
		current *= change
		prices = append(prices, types.PriceFromFloat(current))
	}
	return prices
}
