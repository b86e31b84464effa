// Package clmath implements the fixed-point CLMM arithmetic: tick/price
// conversion, liquidity/amount deltas, the constant-product comparison
// baseline, and impermanent-loss formulas. Every stored quantity is a
// decimal.Decimal; square roots, logarithms, and exponentials are computed
// in float64 as transient internal steps and immediately re-materialized
// into decimals, never retained as floats.
package clmath

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"clmmstrat/internal/clmmerr"
)

// tickBase is 1.0001, the per-tick price ratio.
const tickBase = 1.0001

// MinTick and MaxTick bound the representable tick range.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// TickToPrice computes 1.0001^tick. Defined for every int32 tick; ticks far
// outside [MinTick, MaxTick] overflow float64 range and report Overflow.
func TickToPrice(tick int32) (decimal.Decimal, error) {
	p := math.Pow(tickBase, float64(tick))
	if math.IsInf(p, 0) || math.IsNaN(p) || p <= 0 {
		return decimal.Decimal{}, clmmerr.New("clmath.tick_to_price", clmmerr.Overflow, fmt.Errorf("tick %d is out of representable range", tick))
	}
	return decimal.NewFromFloat(p), nil
}

// PriceToTick computes round(log_1.0001(p)). Requires p > 0.
func PriceToTick(p decimal.Decimal) (int32, error) {
	if p.Sign() <= 0 {
		return 0, clmmerr.New("clmath.price_to_tick", clmmerr.InvalidInput, fmt.Errorf("price must be > 0, got %s", p))
	}
	f, _ := p.Float64()
	t := math.Log(f) / math.Log(tickBase)
	return int32(math.Round(t)), nil
}

// Sqrt computes the square root of a decimal via a float64 round trip.
func Sqrt(d decimal.Decimal) decimal.Decimal {
	f, _ := d.Float64()
	if f < 0 {
		f = 0
	}
	return decimal.NewFromFloat(math.Sqrt(f))
}
